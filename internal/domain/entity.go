package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncEntity is one synchronized row of any supported entity type. The
// engine never interprets Properties; entity-specific shape lives in the
// clients and the per-type business modules. Version starts at 1 on
// create and increases by exactly 1 on every accepted mutation.
// A non-nil DeletedAt marks a soft-deleted row that still occupies a
// version slot.
type SyncEntity struct {
	ID         uuid.UUID      `json:"id"`
	FarmID     uuid.UUID      `json:"farm_id"`
	EntityType string         `json:"entity_type"`
	Properties map[string]any `json:"properties"`
	Version    int64          `json:"version"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewSyncEntity creates an entity at version 1 from a client payload.
func NewSyncEntity(farmID uuid.UUID, entityType string, id uuid.UUID, properties map[string]any) SyncEntity {
	now := time.Now()
	return SyncEntity{
		ID:         id,
		FarmID:     farmID,
		EntityType: entityType,
		Properties: copyProperties(properties),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithPatch returns a new entity with the payload merged over the
// current properties and the version advanced by one.
func (e SyncEntity) WithPatch(patch map[string]any) SyncEntity {
	merged := copyProperties(e.Properties)
	for key, value := range patch {
		merged[key] = value
	}

	return SyncEntity{
		ID:         e.ID,
		FarmID:     e.FarmID,
		EntityType: e.EntityType,
		Properties: merged,
		Version:    e.Version + 1,
		DeletedAt:  e.DeletedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  time.Now(),
	}
}

// WithTombstone returns a new soft-deleted entity with the version
// advanced by one. The row is retained, not physically removed.
func (e SyncEntity) WithTombstone(at time.Time) SyncEntity {
	return SyncEntity{
		ID:         e.ID,
		FarmID:     e.FarmID,
		EntityType: e.EntityType,
		Properties: copyProperties(e.Properties),
		Version:    e.Version + 1,
		DeletedAt:  &at,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  time.Now(),
	}
}

// IsDeleted reports whether the entity carries a tombstone.
func (e SyncEntity) IsDeleted() bool {
	return e.DeletedAt != nil
}

func (e *SyncEntity) GetPropertiesAsJSONB() (json.RawMessage, error) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return json.Marshal(e.Properties)
}

// FromJSONBProperties creates properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	var properties map[string]any
	err := json.Unmarshal(propertiesJSON, &properties)
	return properties, err
}

func copyProperties(properties map[string]any) map[string]any {
	copied := make(map[string]any, len(properties))
	for key, value := range properties {
		copied[key] = value
	}
	return copied
}
