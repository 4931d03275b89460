// Package sync is the offline-first synchronization engine: it applies
// batched client mutations exactly once, detects version conflicts
// deterministically under concurrent multi-device writes, and exposes a
// resumable ordered change feed per farm.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/domain"
	"github.com/teeroy47/murimi/internal/repository"
)

// Transactor runs fn atomically: every repository bound to the provided
// transaction commits or rolls back together.
type Transactor interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// PermissionChecker decides whether a caller may perform a sync
// operation on an entity type. Evaluated once per mutation before any
// state is touched.
type PermissionChecker interface {
	Allowed(ctx context.Context, farmID uuid.UUID, userID, entityType string, op domain.Operation) bool
}

// AuditSink receives one record per accepted mutation and one per
// conflict resolution, fire-and-forget.
type AuditSink interface {
	LogWrite(ctx context.Context, entry domain.AuditEntry)
}

// DefaultPullPageSize bounds one pull response.
const DefaultPullPageSize = 500

// Service orchestrates push, pull and conflict resolution.
type Service struct {
	tx           Transactor
	registry     *repository.Registry
	mutations    repository.MutationLogRepository
	cursors      repository.ChangeCursorRepository
	devices      repository.DeviceRepository
	farms        repository.FarmRepository
	perms        PermissionChecker
	audit        AuditSink
	pullPageSize int
}

// NewService wires the sync engine.
func NewService(
	tx Transactor,
	registry *repository.Registry,
	mutations repository.MutationLogRepository,
	cursors repository.ChangeCursorRepository,
	devices repository.DeviceRepository,
	farms repository.FarmRepository,
	perms PermissionChecker,
	auditSink AuditSink,
	pullPageSize int,
) *Service {
	if pullPageSize <= 0 {
		pullPageSize = DefaultPullPageSize
	}
	return &Service{
		tx:           tx,
		registry:     registry,
		mutations:    mutations,
		cursors:      cursors,
		devices:      devices,
		farms:        farms,
		perms:        perms,
		audit:        auditSink,
		pullPageSize: pullPageSize,
	}
}

// PushRequest is one batch of client mutations for a single farm and
// device, applied in submitted order.
type PushRequest struct {
	FarmID    uuid.UUID
	DeviceID  string
	UserID    string
	Mutations []domain.MutationRecord
}

// PushResponse carries one result per input mutation, in input order.
type PushResponse struct {
	Results []domain.MutationResult `json:"results"`
}

// Push applies a batch of client mutations. Each mutation is applied in
// its own transaction covering the entity write, the change feed append
// and the mutation log entry; one failing mutation never aborts its
// siblings. Cancellation stops further processing but already committed
// mutations stay committed.
func (s *Service) Push(ctx context.Context, req PushRequest) (PushResponse, error) {
	if req.FarmID == uuid.Nil {
		return PushResponse{}, ErrFarmRequired
	}
	if req.DeviceID == "" {
		return PushResponse{}, ErrDeviceRequired
	}

	// Device registration references the farm row, so an unknown farm
	// must be rejected before it surfaces as a foreign key violation.
	if _, err := s.farms.GetByID(ctx, req.FarmID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return PushResponse{}, ErrUnknownFarm
		}
		return PushResponse{}, fmt.Errorf("failed to verify farm: %w", err)
	}

	device := domain.DeviceRegistration{
		ID:     req.DeviceID,
		FarmID: req.FarmID,
		UserID: req.UserID,
	}
	if _, err := s.devices.Upsert(ctx, device); err != nil {
		return PushResponse{}, fmt.Errorf("failed to register device: %w", err)
	}

	results := make([]domain.MutationResult, 0, len(req.Mutations))
	for _, mutation := range req.Mutations {
		if err := ctx.Err(); err != nil {
			return PushResponse{}, err
		}
		results = append(results, s.applyMutation(ctx, req, mutation))
	}

	return PushResponse{Results: results}, nil
}

// applyMutation runs one mutation through the idempotency, permission
// and conflict gates and commits it atomically.
func (s *Service) applyMutation(ctx context.Context, req PushRequest, m domain.MutationRecord) domain.MutationResult {
	rejected := func(reason string) domain.MutationResult {
		return domain.MutationResult{
			EntityID:         m.EntityID,
			ClientMutationID: m.ClientMutationID,
			Status:           domain.StatusRejected,
			Reason:           reason,
		}
	}

	store, supported := s.registry.Store(m.EntityType)
	if !supported || !s.perms.Allowed(ctx, req.FarmID, req.UserID, m.EntityType, m.Op) {
		return rejected(reasonUnsupportedOrDenied)
	}

	var (
		result  domain.MutationResult
		before  *domain.SyncEntity
		after   domain.SyncEntity
		applied bool
	)

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		mutationLog := s.mutations.WithTx(tx)

		cached, found, err := mutationLog.FindApplied(ctx, req.DeviceID, m.ClientMutationID)
		if err != nil {
			return err
		}
		if found {
			// Replay of an already applied mutation: return the recorded
			// result unchanged, byte for byte.
			result = cached.Result
			result.Idempotent = true
			return nil
		}

		txStore := store.WithTx(tx)
		current, exists, err := txStore.FindByID(ctx, req.FarmID, m.EntityID)
		if err != nil {
			return err
		}
		if exists {
			snapshot := current
			before = &snapshot
		}

		var next domain.SyncEntity
		switch m.Op {
		case domain.OpCreate:
			if exists {
				return repository.ErrAlreadyExists
			}
			next, err = txStore.Create(ctx, domain.NewSyncEntity(req.FarmID, m.EntityType, m.EntityID, m.Payload))
			if err != nil {
				return err
			}
		case domain.OpUpdate:
			if !exists {
				return repository.ErrNotFound
			}
			if domain.HasVersionConflict(m.BaseVersion, current.Version) {
				result = conflictResult(m, current)
				return nil
			}
			next, err = txStore.ApplyPatch(ctx, req.FarmID, m.EntityID, current.Version, m.Payload)
			if err != nil {
				return err
			}
		case domain.OpDelete:
			if !exists {
				return repository.ErrNotFound
			}
			if domain.HasVersionConflict(m.BaseVersion, current.Version) {
				result = conflictResult(m, current)
				return nil
			}
			next, err = txStore.SoftDelete(ctx, req.FarmID, m.EntityID, current.Version, time.Now())
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown sync operation %q", m.Op)
		}

		if _, err := s.cursors.WithTx(tx).Append(ctx, cursorEntryFor(next)); err != nil {
			return err
		}

		result = domain.MutationResult{
			EntityID:         m.EntityID,
			ClientMutationID: m.ClientMutationID,
			Status:           domain.StatusApplied,
			NewVersion:       next.Version,
			ServerTimestamp:  time.Now().UTC(),
		}

		if err := mutationLog.RecordApplied(ctx, domain.AppliedMutation{
			FarmID:           req.FarmID,
			DeviceID:         req.DeviceID,
			UserID:           req.UserID,
			ClientMutationID: m.ClientMutationID,
			EntityType:       m.EntityType,
			EntityID:         m.EntityID,
			Op:               m.Op,
			Result:           result,
		}); err != nil {
			return err
		}

		applied = true
		after = next
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return rejected(reasonAlreadyExists)
		case errors.Is(err, repository.ErrNotFound):
			return rejected(reasonNotFound)
		default:
			return rejected(err.Error())
		}
	}

	// Audit only after the transaction committed; a rolled back
	// mutation must leave no trace.
	if applied {
		var beforeSnapshot any
		if before != nil {
			beforeSnapshot = *before
		}
		s.audit.LogWrite(ctx, domain.AuditEntry{
			FarmID:      req.FarmID,
			ActorUserID: req.UserID,
			EntityType:  m.EntityType,
			EntityID:    m.EntityID,
			Action:      domain.AuditSyncApply,
			DeviceID:    req.DeviceID,
			Before:      beforeSnapshot,
			After:       after,
		})
	}

	return result
}

func conflictResult(m domain.MutationRecord, current domain.SyncEntity) domain.MutationResult {
	return domain.MutationResult{
		EntityID:         m.EntityID,
		ClientMutationID: m.ClientMutationID,
		Status:           domain.StatusConflict,
		Conflict: &domain.ConflictDetail{
			EntityID:      m.EntityID,
			ServerVersion: current.Version,
			ServerState:   current,
			ClientAttempt: m,
		},
	}
}

func cursorEntryFor(entity domain.SyncEntity) domain.ChangeCursorEntry {
	return domain.ChangeCursorEntry{
		FarmID:     entity.FarmID,
		EntityType: entity.EntityType,
		EntityID:   entity.ID,
		Version:    entity.Version,
		DeletedAt:  entity.DeletedAt,
	}
}

// PullResponse is one page of the change feed plus the cursor to resume
// from.
type PullResponse struct {
	Changes   []domain.ChangeCursorEntry `json:"changes"`
	NewCursor string                     `json:"newCursor"`
}

// Pull returns feed entries positioned after sinceCursor, oldest first,
// capped at the configured page size. Clients persist NewCursor and
// pass it back verbatim; the cursor carries both the timestamp and the
// feed sequence of the last returned entry, so resuming never skips an
// entry even when a page boundary falls inside a group of entries
// sharing one timestamp.
func (s *Service) Pull(ctx context.Context, farmID uuid.UUID, sinceCursor string) (PullResponse, error) {
	if farmID == uuid.Nil {
		return PullResponse{}, ErrFarmRequired
	}

	since, sinceSeq, err := domain.ParseCursor(sinceCursor)
	if err != nil {
		return PullResponse{}, err
	}

	entries, err := s.cursors.ListSince(ctx, farmID, since, sinceSeq, s.pullPageSize)
	if err != nil {
		return PullResponse{}, fmt.Errorf("failed to pull changes: %w", err)
	}

	newCursor := sinceCursor
	if newCursor == "" {
		newCursor = domain.FormatCursor(since, sinceSeq)
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		newCursor = domain.FormatCursor(last.ChangedAt, last.Seq)
	}

	return PullResponse{Changes: entries, NewCursor: newCursor}, nil
}

// Resolution is the client's explicit choice for a previously reported
// conflict.
type Resolution string

const (
	KeepServer Resolution = "KEEP_SERVER"
	KeepMine   Resolution = "KEEP_MINE"
)

// ResolveRequest is the second phase of the conflict protocol.
type ResolveRequest struct {
	FarmID            uuid.UUID
	DeviceID          string
	UserID            string
	EntityType        string
	EntityID          uuid.UUID
	Resolution        Resolution
	BaseServerVersion int64
	PayloadIfKeepMine map[string]any
}

// ResolveResponse returns the chosen resolution and the resulting
// authoritative state.
type ResolveResponse struct {
	Resolution  Resolution        `json:"resolution"`
	ServerState domain.SyncEntity `json:"serverState"`
}

// Resolve settles a conflict. KEEP_SERVER is a read-only
// acknowledgement. KEEP_MINE is a guarded retry: it applies only while
// the entity still sits at the version the client conflicted with, so a
// stale client can never overwrite a version it has not re-examined.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResponse, error) {
	store, supported := s.registry.Store(req.EntityType)
	if !supported {
		return ResolveResponse{}, ErrUnsupportedEntityType
	}

	switch req.Resolution {
	case KeepServer:
		current, exists, err := store.FindByID(ctx, req.FarmID, req.EntityID)
		if err != nil {
			return ResolveResponse{}, fmt.Errorf("failed to load entity for resolution: %w", err)
		}
		if !exists {
			return ResolveResponse{}, ErrEntityNotFound
		}

		s.audit.LogWrite(ctx, domain.AuditEntry{
			FarmID:      req.FarmID,
			ActorUserID: req.UserID,
			EntityType:  req.EntityType,
			EntityID:    req.EntityID,
			Action:      domain.AuditSyncApply,
			DeviceID:    req.DeviceID,
			After:       map[string]any{"resolution": KeepServer, "serverState": current},
		})
		return ResolveResponse{Resolution: KeepServer, ServerState: current}, nil

	case KeepMine:
		if !s.perms.Allowed(ctx, req.FarmID, req.UserID, req.EntityType, domain.OpUpdate) {
			return ResolveResponse{}, ErrPermissionDenied
		}

		var (
			before  domain.SyncEntity
			updated domain.SyncEntity
		)
		err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			txStore := store.WithTx(tx)
			current, exists, err := txStore.FindByID(ctx, req.FarmID, req.EntityID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrEntityNotFound
			}
			if current.Version != req.BaseServerVersion {
				return ErrVersionChangedAgain
			}
			before = current

			updated, err = txStore.ApplyPatch(ctx, req.FarmID, req.EntityID, current.Version, req.PayloadIfKeepMine)
			if err != nil {
				return err
			}

			_, err = s.cursors.WithTx(tx).Append(ctx, cursorEntryFor(updated))
			return err
		})
		if err != nil {
			return ResolveResponse{}, err
		}

		s.audit.LogWrite(ctx, domain.AuditEntry{
			FarmID:      req.FarmID,
			ActorUserID: req.UserID,
			EntityType:  req.EntityType,
			EntityID:    req.EntityID,
			Action:      domain.AuditSyncApply,
			DeviceID:    req.DeviceID,
			Before:      before,
			After:       map[string]any{"resolution": KeepMine, "applied": updated},
		})
		return ResolveResponse{Resolution: KeepMine, ServerState: updated}, nil

	default:
		return ResolveResponse{}, ErrInvalidResolution
	}
}
