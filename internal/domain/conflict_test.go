package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasVersionConflict(t *testing.T) {
	base := func(v int64) *int64 { return &v }

	tests := []struct {
		name        string
		baseVersion *int64
		current     int64
		want        bool
	}{
		{"mismatched versions conflict", base(2), 3, true},
		{"exact match accepted", base(3), 3, false},
		{"missing base version conflicts", nil, 1, true},
		{"stale base behind current", base(1), 2, true},
		{"base ahead of current still conflicts", base(5), 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasVersionConflict(tt.baseVersion, tt.current))
		})
	}
}
