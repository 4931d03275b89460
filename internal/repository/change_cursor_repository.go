package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

// changeCursorRepository implements ChangeCursorRepository over the
// change_cursor table.
type changeCursorRepository struct {
	q db.Querier
}

// NewChangeCursorRepository wires the change feed backed by pgx.
func NewChangeCursorRepository(q db.Querier) ChangeCursorRepository {
	return &changeCursorRepository{q: q}
}

func (r *changeCursorRepository) WithTx(tx pgx.Tx) ChangeCursorRepository {
	return &changeCursorRepository{q: tx}
}

// Append inserts one feed entry and returns it with the assigned
// sequence and timestamp. Entries are never updated or deleted.
func (r *changeCursorRepository) Append(ctx context.Context, entry domain.ChangeCursorEntry) (domain.ChangeCursorEntry, error) {
	err := r.q.QueryRow(ctx,
		`INSERT INTO change_cursor (farm_id, entity_type, entity_id, version, deleted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, changed_at`,
		entry.FarmID,
		entry.EntityType,
		entry.EntityID,
		entry.Version,
		entry.DeletedAt,
	).Scan(&entry.Seq, &entry.ChangedAt)
	if err != nil {
		return domain.ChangeCursorEntry{}, fmt.Errorf("failed to append change cursor entry: %w", err)
	}

	return entry, nil
}

// ListSince returns entries positioned strictly after (since, sinceSeq),
// oldest first, insertion order breaking timestamp ties. The row
// comparison lets a pull resume inside a group of entries sharing one
// changed_at without skipping the rest of the group.
func (r *changeCursorRepository) ListSince(ctx context.Context, farmID uuid.UUID, since time.Time, sinceSeq int64, limit int) ([]domain.ChangeCursorEntry, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.q.Query(ctx,
		`SELECT seq, farm_id, entity_type, entity_id, version, deleted_at, changed_at
		 FROM change_cursor
		 WHERE farm_id = $1 AND (changed_at, seq) > ($2, $3)
		 ORDER BY changed_at ASC, seq ASC
		 LIMIT $4`,
		farmID, since, sinceSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list change cursor entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.ChangeCursorEntry{}
	for rows.Next() {
		var entry domain.ChangeCursorEntry
		if scanErr := rows.Scan(
			&entry.Seq,
			&entry.FarmID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Version,
			&entry.DeletedAt,
			&entry.ChangedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan change cursor entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate change cursor entries: %w", rowsErr)
	}

	return entries, nil
}
