package repository

import (
	"context"
	"errors"
	"time"

	"github.com/teeroy47/murimi/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when the target entity row does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrAlreadyExists is returned when a create collides with an
	// existing row.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrStaleVersion is returned when the compare-and-swap update
	// matched no row because another writer advanced the version first.
	ErrStaleVersion = errors.New("entity version moved")
)

// EntityStore is the per-entity-type storage contract the sync engine
// drives. One store exists per supported entity type; all sync logic
// stays outside it. Writes advance the version by exactly 1 and are
// guarded by a compare-and-swap on the expected version.
type EntityStore interface {
	// WithTx returns a store bound to the given transaction so the
	// entity write commits atomically with the mutation log and the
	// change feed append.
	WithTx(tx pgx.Tx) EntityStore
	EntityType() string
	// FindByID returns the current row, if any. Inside a transaction
	// the row is locked until commit so concurrent writers to the same
	// entity are linearized.
	FindByID(ctx context.Context, farmID, id uuid.UUID) (domain.SyncEntity, bool, error)
	// Create inserts the row at version 1.
	Create(ctx context.Context, entity domain.SyncEntity) (domain.SyncEntity, error)
	// ApplyPatch merges the payload over the stored properties and
	// advances the version, only if the stored version still equals
	// expectedVersion.
	ApplyPatch(ctx context.Context, farmID, id uuid.UUID, expectedVersion int64, patch map[string]any) (domain.SyncEntity, error)
	// SoftDelete sets the tombstone and advances the version under the
	// same compare-and-swap guard. The row is retained.
	SoftDelete(ctx context.Context, farmID, id uuid.UUID, expectedVersion int64, at time.Time) (domain.SyncEntity, error)
}

// MutationLogRepository is the durable idempotency guard. Entries are
// immutable and only ever written inside the transaction that applies
// the mutation they record.
type MutationLogRepository interface {
	WithTx(tx pgx.Tx) MutationLogRepository
	FindApplied(ctx context.Context, deviceID, clientMutationID string) (domain.AppliedMutation, bool, error)
	RecordApplied(ctx context.Context, entry domain.AppliedMutation) error
}

// ChangeCursorRepository owns the per-farm append-only change feed.
type ChangeCursorRepository interface {
	WithTx(tx pgx.Tx) ChangeCursorRepository
	Append(ctx context.Context, entry domain.ChangeCursorEntry) (domain.ChangeCursorEntry, error)
	// ListSince returns entries positioned strictly after the
	// (since, sinceSeq) pair, ascending, capped at limit.
	ListSince(ctx context.Context, farmID uuid.UUID, since time.Time, sinceSeq int64, limit int) ([]domain.ChangeCursorEntry, error)
}

// DeviceRepository tracks client devices per farm.
type DeviceRepository interface {
	// Upsert registers the device on first contact and touches
	// last_seen_at on every subsequent push.
	Upsert(ctx context.Context, device domain.DeviceRegistration) (domain.DeviceRegistration, error)
	GetByID(ctx context.Context, id string) (domain.DeviceRegistration, bool, error)
}

// FarmRepository defines the interface for tenant records.
type FarmRepository interface {
	Create(ctx context.Context, farm domain.Farm) (domain.Farm, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Farm, error)
	GetByName(ctx context.Context, name string) (domain.Farm, error)
	List(ctx context.Context) ([]domain.Farm, error)
}

// AuditRepository persists audit entries for observability.
type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	ListByFarm(ctx context.Context, farmID uuid.UUID, limit int, offset int) ([]domain.AuditEntry, error)
}
