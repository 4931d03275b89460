package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies what produced an audit entry.
type AuditAction string

const (
	AuditSyncApply AuditAction = "SYNC_APPLY"
)

// AuditEntry is one durable audit record, written once per accepted
// mutation and once per conflict resolution.
type AuditEntry struct {
	ID          uuid.UUID   `json:"id"`
	FarmID      uuid.UUID   `json:"farm_id"`
	ActorUserID string      `json:"actor_user_id,omitempty"`
	EntityType  string      `json:"entity_type"`
	EntityID    uuid.UUID   `json:"entity_id"`
	Action      AuditAction `json:"action"`
	DeviceID    string      `json:"device_id,omitempty"`
	Before      any         `json:"before,omitempty"`
	After       any         `json:"after,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
