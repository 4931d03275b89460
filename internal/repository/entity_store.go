package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

const uniqueViolation = "23505"

// pgEntityStore implements EntityStore over the shared sync_entities
// table, one instance per entity type.
type pgEntityStore struct {
	q          db.Querier
	entityType string
	inTx       bool
}

// NewEntityStore creates an entity store for one entity type.
func NewEntityStore(q db.Querier, entityType string) EntityStore {
	return &pgEntityStore{q: q, entityType: entityType}
}

func (s *pgEntityStore) WithTx(tx pgx.Tx) EntityStore {
	return &pgEntityStore{q: tx, entityType: s.entityType, inTx: true}
}

func (s *pgEntityStore) EntityType() string {
	return s.entityType
}

// FindByID retrieves the current row. Inside a transaction the row is
// selected FOR UPDATE so the version check and the later write are one
// linearized step per entity.
func (s *pgEntityStore) FindByID(ctx context.Context, farmID, id uuid.UUID) (domain.SyncEntity, bool, error) {
	query := `SELECT farm_id, entity_type, id, properties, version, deleted_at, created_at, updated_at
		 FROM sync_entities
		 WHERE farm_id = $1 AND entity_type = $2 AND id = $3`
	if s.inTx {
		query += " FOR UPDATE"
	}

	entity, err := scanEntity(s.q.QueryRow(ctx, query, farmID, s.entityType, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncEntity{}, false, nil
		}
		return domain.SyncEntity{}, false, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, true, nil
}

// Create inserts the row at version 1.
func (s *pgEntityStore) Create(ctx context.Context, entity domain.SyncEntity) (domain.SyncEntity, error) {
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return domain.SyncEntity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := s.q.QueryRow(ctx,
		`INSERT INTO sync_entities (farm_id, entity_type, id, properties, version)
		 VALUES ($1, $2, $3, $4, 1)
		 RETURNING farm_id, entity_type, id, properties, version, deleted_at, created_at, updated_at`,
		entity.FarmID, s.entityType, entity.ID, propertiesJSON)

	created, err := scanEntity(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.SyncEntity{}, ErrAlreadyExists
		}
		return domain.SyncEntity{}, fmt.Errorf("failed to create entity: %w", err)
	}

	return created, nil
}

// ApplyPatch merges the payload into the stored properties and bumps
// the version, guarded by a compare-and-swap on expectedVersion.
func (s *pgEntityStore) ApplyPatch(ctx context.Context, farmID, id uuid.UUID, expectedVersion int64, patch map[string]any) (domain.SyncEntity, error) {
	patchJSON, err := marshalPatch(patch)
	if err != nil {
		return domain.SyncEntity{}, fmt.Errorf("failed to marshal patch: %w", err)
	}

	row := s.q.QueryRow(ctx,
		`UPDATE sync_entities
		 SET properties = properties || $5::jsonb, version = version + 1, updated_at = now()
		 WHERE farm_id = $1 AND entity_type = $2 AND id = $3 AND version = $4
		 RETURNING farm_id, entity_type, id, properties, version, deleted_at, created_at, updated_at`,
		farmID, s.entityType, id, expectedVersion, patchJSON)

	updated, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncEntity{}, s.classifyMiss(ctx, farmID, id)
		}
		return domain.SyncEntity{}, fmt.Errorf("failed to update entity: %w", err)
	}

	return updated, nil
}

// SoftDelete sets the tombstone under the same compare-and-swap guard.
func (s *pgEntityStore) SoftDelete(ctx context.Context, farmID, id uuid.UUID, expectedVersion int64, at time.Time) (domain.SyncEntity, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE sync_entities
		 SET deleted_at = $5, version = version + 1, updated_at = now()
		 WHERE farm_id = $1 AND entity_type = $2 AND id = $3 AND version = $4
		 RETURNING farm_id, entity_type, id, properties, version, deleted_at, created_at, updated_at`,
		farmID, s.entityType, id, expectedVersion, at)

	deleted, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncEntity{}, s.classifyMiss(ctx, farmID, id)
		}
		return domain.SyncEntity{}, fmt.Errorf("failed to soft-delete entity: %w", err)
	}

	return deleted, nil
}

// marshalPatch encodes a patch for the jsonb merge operator. A nil map
// marshals to the JSON literal null, which `properties || $n::jsonb`
// does not treat as an empty merge, so a payload-less update must send
// the empty object to stay a pure version bump.
func marshalPatch(patch map[string]any) (json.RawMessage, error) {
	if patch == nil {
		patch = map[string]any{}
	}
	return json.Marshal(patch)
}

// classifyMiss distinguishes a missing row from a version race after a
// compare-and-swap update matched nothing.
func (s *pgEntityStore) classifyMiss(ctx context.Context, farmID, id uuid.UUID) error {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sync_entities WHERE farm_id = $1 AND entity_type = $2 AND id = $3)`,
		farmID, s.entityType, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to classify version miss: %w", err)
	}
	if exists {
		return ErrStaleVersion
	}
	return ErrNotFound
}

func scanEntity(row pgx.Row) (domain.SyncEntity, error) {
	var (
		entity         domain.SyncEntity
		propertiesJSON json.RawMessage
	)
	if err := row.Scan(
		&entity.FarmID,
		&entity.EntityType,
		&entity.ID,
		&propertiesJSON,
		&entity.Version,
		&entity.DeletedAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return domain.SyncEntity{}, err
	}

	properties, err := domain.FromJSONBProperties(propertiesJSON)
	if err != nil {
		return domain.SyncEntity{}, fmt.Errorf("failed to decode properties for entity %s: %w", entity.ID, err)
	}
	entity.Properties = properties

	return entity, nil
}
