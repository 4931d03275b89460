package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/domain"
)

// farmRepository implements FarmRepository interface
type farmRepository struct {
	q db.Querier
}

// NewFarmRepository creates a new farm repository
func NewFarmRepository(q db.Querier) FarmRepository {
	return &farmRepository{q: q}
}

// Create creates a new farm
func (r *farmRepository) Create(ctx context.Context, farm domain.Farm) (domain.Farm, error) {
	err := r.q.QueryRow(ctx,
		`INSERT INTO farms (name, location)
		 VALUES ($1, $2)
		 RETURNING id, name, location, created_at, updated_at`,
		farm.Name, farm.Location).Scan(
		&farm.ID, &farm.Name, &farm.Location, &farm.CreatedAt, &farm.UpdatedAt,
	)
	if err != nil {
		return domain.Farm{}, fmt.Errorf("failed to create farm: %w", err)
	}

	return farm, nil
}

// GetByID retrieves a farm by ID
func (r *farmRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Farm, error) {
	var farm domain.Farm
	err := r.q.QueryRow(ctx,
		`SELECT id, name, location, created_at, updated_at FROM farms WHERE id = $1`,
		id).Scan(&farm.ID, &farm.Name, &farm.Location, &farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Farm{}, ErrNotFound
		}
		return domain.Farm{}, fmt.Errorf("failed to get farm: %w", err)
	}

	return farm, nil
}

// GetByName retrieves a farm by name
func (r *farmRepository) GetByName(ctx context.Context, name string) (domain.Farm, error) {
	var farm domain.Farm
	err := r.q.QueryRow(ctx,
		`SELECT id, name, location, created_at, updated_at FROM farms WHERE name = $1`,
		name).Scan(&farm.ID, &farm.Name, &farm.Location, &farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Farm{}, ErrNotFound
		}
		return domain.Farm{}, fmt.Errorf("failed to get farm by name: %w", err)
	}

	return farm, nil
}

// List retrieves all farms
func (r *farmRepository) List(ctx context.Context) ([]domain.Farm, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name, location, created_at, updated_at FROM farms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer rows.Close()

	farms := []domain.Farm{}
	for rows.Next() {
		var farm domain.Farm
		if scanErr := rows.Scan(&farm.ID, &farm.Name, &farm.Location, &farm.CreatedAt, &farm.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", scanErr)
		}
		farms = append(farms, farm)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate farms: %w", rowsErr)
	}

	return farms, nil
}
