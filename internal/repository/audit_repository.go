package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

// auditRepository implements AuditRepository over audit_log.
type auditRepository struct {
	q db.Querier
}

// NewAuditRepository wires a repository backed by pgx.
func NewAuditRepository(q db.Querier) AuditRepository {
	return &auditRepository{q: q}
}

func (r *auditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	beforeJSON, err := marshalIfPresent(entry.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal audit before snapshot: %w", err)
	}
	afterJSON, err := marshalIfPresent(entry.After)
	if err != nil {
		return fmt.Errorf("failed to marshal audit after snapshot: %w", err)
	}

	_, err = r.q.Exec(ctx,
		`INSERT INTO audit_log (farm_id, actor_user_id, entity_type, entity_id, action, device_id, before_json, after_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.FarmID,
		nullableText(entry.ActorUserID),
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		nullableText(entry.DeviceID),
		beforeJSON,
		afterJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

func (r *auditRepository) ListByFarm(ctx context.Context, farmID uuid.UUID, limit int, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, farm_id, actor_user_id, entity_type, entity_id, action, device_id, before_json, after_json, created_at
		 FROM audit_log
		 WHERE farm_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		farmID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry      domain.AuditEntry
			actor      pgtype.Text
			deviceID   pgtype.Text
			beforeJSON []byte
			afterJSON  []byte
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.FarmID,
			&actor,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&deviceID,
			&beforeJSON,
			&afterJSON,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", scanErr)
		}

		entry.ActorUserID = actor.String
		entry.DeviceID = deviceID.String
		if len(beforeJSON) > 0 {
			var before any
			if err := json.Unmarshal(beforeJSON, &before); err == nil {
				entry.Before = before
			}
		}
		if len(afterJSON) > 0 {
			var after any
			if err := json.Unmarshal(afterJSON, &after); err == nil {
				entry.After = after
			}
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", rowsErr)
	}

	return entries, nil
}

func marshalIfPresent(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullableText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
