package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceRegistration is a farm-scoped record of a client device,
// created on first push and touched on every subsequent one. Devices
// themselves are not versioned.
type DeviceRegistration struct {
	ID         string    `json:"id"`
	FarmID     uuid.UUID `json:"farm_id"`
	UserID     string    `json:"user_id"`
	DeviceName string    `json:"device_name"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
