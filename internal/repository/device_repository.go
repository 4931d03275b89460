package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

// deviceRepository implements DeviceRepository over client_devices.
type deviceRepository struct {
	q db.Querier
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(q db.Querier) DeviceRepository {
	return &deviceRepository{q: q}
}

// Upsert registers a device on first push and touches last_seen_at on
// every later one.
func (r *deviceRepository) Upsert(ctx context.Context, device domain.DeviceRegistration) (domain.DeviceRegistration, error) {
	name := device.DeviceName
	if name == "" {
		name = "Unknown"
	}

	err := r.q.QueryRow(ctx,
		`INSERT INTO client_devices (id, farm_id, user_id, device_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET last_seen_at = now()
		 RETURNING id, farm_id, user_id, device_name, last_seen_at, created_at`,
		device.ID, device.FarmID, device.UserID, name).Scan(
		&device.ID,
		&device.FarmID,
		&device.UserID,
		&device.DeviceName,
		&device.LastSeenAt,
		&device.CreatedAt,
	)
	if err != nil {
		return domain.DeviceRegistration{}, fmt.Errorf("failed to upsert device: %w", err)
	}

	return device, nil
}

// GetByID retrieves a device registration by ID
func (r *deviceRepository) GetByID(ctx context.Context, id string) (domain.DeviceRegistration, bool, error) {
	var device domain.DeviceRegistration
	err := r.q.QueryRow(ctx,
		`SELECT id, farm_id, user_id, device_name, last_seen_at, created_at
		 FROM client_devices WHERE id = $1`,
		id).Scan(
		&device.ID,
		&device.FarmID,
		&device.UserID,
		&device.DeviceName,
		&device.LastSeenAt,
		&device.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DeviceRegistration{}, false, nil
		}
		return domain.DeviceRegistration{}, false, fmt.Errorf("failed to get device: %w", err)
	}

	return device, true, nil
}
