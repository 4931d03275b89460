package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation tags a client mutation. Delete is a versioned state
// transition like update, not a special case.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ParseOperation validates a wire-level operation tag.
func ParseOperation(raw string) (Operation, error) {
	switch Operation(raw) {
	case OpCreate, OpUpdate, OpDelete:
		return Operation(raw), nil
	}
	return "", fmt.Errorf("unknown sync operation %q", raw)
}

// MutationRecord is one client-submitted change. The pair
// (deviceId, clientMutationId) is the idempotency key: it identifies the
// client's intent regardless of how many times the push is retried.
type MutationRecord struct {
	EntityType       string         `json:"entityType"`
	EntityID         uuid.UUID      `json:"entityId"`
	Op               Operation      `json:"op"`
	BaseVersion      *int64         `json:"baseVersion,omitempty"`
	Payload          map[string]any `json:"payload,omitempty"`
	ClientTimestamp  string         `json:"clientTimestamp,omitempty"`
	ClientMutationID string         `json:"clientMutationId"`
}

// MutationStatus is the outcome of one pushed mutation.
type MutationStatus string

const (
	StatusApplied  MutationStatus = "applied"
	StatusConflict MutationStatus = "conflict"
	StatusRejected MutationStatus = "rejected"
)

// ConflictDetail carries the authoritative state back to the client so
// it can drive explicit resolution. The engine never silently picks a
// winner.
type ConflictDetail struct {
	EntityID      uuid.UUID      `json:"entityId"`
	ServerVersion int64          `json:"serverVersion"`
	ServerState   SyncEntity     `json:"serverState"`
	ClientAttempt MutationRecord `json:"clientAttempt"`
}

// MutationResult is the per-mutation outcome, returned in input order.
type MutationResult struct {
	EntityID         uuid.UUID       `json:"entityId"`
	ClientMutationID string          `json:"clientMutationId"`
	Status           MutationStatus  `json:"status"`
	Idempotent       bool            `json:"idempotent,omitempty"`
	NewVersion       int64           `json:"newVersion,omitempty"`
	ServerTimestamp  time.Time       `json:"serverTimestamp,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	Conflict         *ConflictDetail `json:"conflict,omitempty"`
}

// AppliedMutation is one immutable entry of the mutation log, created
// only when a mutation commits. Its existence is the sole source of
// truth for idempotency.
type AppliedMutation struct {
	ID               uuid.UUID      `json:"id"`
	FarmID           uuid.UUID      `json:"farm_id"`
	DeviceID         string         `json:"device_id"`
	UserID           string         `json:"user_id"`
	ClientMutationID string         `json:"client_mutation_id"`
	EntityType       string         `json:"entity_type"`
	EntityID         uuid.UUID      `json:"entity_id"`
	Op               Operation      `json:"operation"`
	Result           MutationResult `json:"result"`
	AppliedAt        time.Time      `json:"applied_at"`
}
