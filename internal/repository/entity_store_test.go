package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPatchNilBecomesEmptyObject(t *testing.T) {
	raw, err := marshalPatch(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestMarshalPatchKeepsFields(t *testing.T) {
	raw, err := marshalPatch(map[string]any{"pen": "B", "weight": 85})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pen":"B","weight":85}`, string(raw))
}
