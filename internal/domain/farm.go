package domain

import (
	"time"

	"github.com/google/uuid"
)

// Farm represents a tenant in the system. All sync state is partitioned
// by farm id.
type Farm struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFarm creates a new farm with immutable pattern
func NewFarm(name, location string) Farm {
	now := time.Now()
	return Farm{
		ID:        uuid.New(),
		Name:      name,
		Location:  location,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
