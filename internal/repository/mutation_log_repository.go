package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

// mutationLogRepository implements MutationLogRepository over the
// sync_mutation_log table.
type mutationLogRepository struct {
	q db.Querier
}

// NewMutationLogRepository wires the idempotency guard backed by pgx.
func NewMutationLogRepository(q db.Querier) MutationLogRepository {
	return &mutationLogRepository{q: q}
}

func (r *mutationLogRepository) WithTx(tx pgx.Tx) MutationLogRepository {
	return &mutationLogRepository{q: tx}
}

// FindApplied looks up a previously applied mutation by its idempotency
// key. Called inside the same transaction as the entity write so a
// retried mutation can never slip between the check and the apply.
func (r *mutationLogRepository) FindApplied(ctx context.Context, deviceID, clientMutationID string) (domain.AppliedMutation, bool, error) {
	var (
		entry      domain.AppliedMutation
		resultJSON json.RawMessage
	)
	err := r.q.QueryRow(ctx,
		`SELECT id, farm_id, device_id, user_id, client_mutation_id, entity_type, entity_id, operation, result, applied_at
		 FROM sync_mutation_log
		 WHERE device_id = $1 AND client_mutation_id = $2`,
		deviceID, clientMutationID).Scan(
		&entry.ID,
		&entry.FarmID,
		&entry.DeviceID,
		&entry.UserID,
		&entry.ClientMutationID,
		&entry.EntityType,
		&entry.EntityID,
		&entry.Op,
		&resultJSON,
		&entry.AppliedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AppliedMutation{}, false, nil
		}
		return domain.AppliedMutation{}, false, fmt.Errorf("failed to look up applied mutation: %w", err)
	}

	if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
		return domain.AppliedMutation{}, false, fmt.Errorf("failed to decode cached mutation result: %w", err)
	}

	return entry, true, nil
}

// RecordApplied persists the log entry. Must run inside the transaction
// that applied the mutation; if that transaction aborts, no entry
// persists.
func (r *mutationLogRepository) RecordApplied(ctx context.Context, entry domain.AppliedMutation) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation result: %w", err)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO sync_mutation_log (farm_id, device_id, user_id, client_mutation_id, entity_type, entity_id, operation, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.FarmID,
		entry.DeviceID,
		entry.UserID,
		entry.ClientMutationID,
		entry.EntityType,
		entry.EntityID,
		entry.Op,
		resultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record applied mutation: %w", err)
	}

	return nil
}
