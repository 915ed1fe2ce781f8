package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, name, COALESCE(external_location_id, 0), COALESCE(external_consumables_storage_id, 0), COALESCE(external_sales_storage_id, 0), is_distribution_center, is_active, COALESCE(timezone, '')`

// Get returns the warehouse by id.
func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Name, &w.ExternalLocationID, &w.ExternalConsumablesStorageID, &w.ExternalSalesStorageID, &w.IsDistributionCenter, &w.IsActive, &w.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// ListActive returns all active warehouses ordered by id.
func (r *Repository) ListActive(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM warehouses WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.ExternalLocationID, &w.ExternalConsumablesStorageID, &w.ExternalSalesStorageID, &w.IsDistributionCenter, &w.IsActive, &w.Timezone); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
