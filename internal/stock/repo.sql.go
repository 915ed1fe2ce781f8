package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for stock units.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const unitColumns = `id, barcode, COALESCE(description, ''), COALESCE(current_warehouse_id, 0), COALESCE(current_cabinet_id, 0), is_being_used, is_kit, is_deleted, is_empty, number_of_uses, COALESCE(first_used_at, '0001-01-01'), COALESCE(last_used_at, '0001-01-01'), COALESCE(last_used_by_employee_id, 0), created_at`

// Get returns the unit by id.
func (r *Repository) Get(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM product_stock_units WHERE id=$1`, id).
		Scan(&u.ID, &u.Barcode, &u.Description, &u.CurrentWarehouseID, &u.CurrentCabinetID, &u.IsBeingUsed, &u.IsKit, &u.IsDeleted, &u.IsEmpty, &u.NumberOfUses, &u.FirstUsedAt, &u.LastUsedAt, &u.LastUsedByEmployeeID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrNotFound
		}
		return Unit{}, err
	}
	return u, nil
}

// CountNonDeleted returns, for one warehouse, the number of non-deleted units
// per barcode. One batched query regardless of how many barcodes are asked.
func (r *Repository) CountNonDeleted(ctx context.Context, warehouseID int64, barcodes []int32) (map[int32]int, error) {
	counts := make(map[int32]int, len(barcodes))
	if len(barcodes) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT barcode, COUNT(*) FROM product_stock_units
		 WHERE current_warehouse_id=$1 AND NOT is_deleted AND barcode = ANY($2)
		 GROUP BY barcode`, warehouseID, barcodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var barcode int32
		var count int
		if err := rows.Scan(&barcode, &count); err != nil {
			return nil, err
		}
		counts[barcode] = count
	}
	return counts, rows.Err()
}

// PlaceholderInput describes a unit row created to mirror remote stock.
type PlaceholderInput struct {
	Barcode     int32
	Description string
	WarehouseID int64
}

// InsertPlaceholders bulk-inserts placeholder units in chunks of chunkSize
// rows per statement, writing one usage-history entry per created unit in the
// same transaction. Returns the ids of the inserted rows in order.
func (r *Repository) InsertPlaceholders(ctx context.Context, inputs []PlaceholderInput, chunkSize int, actorID int64) ([]int64, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("stock: chunk size must be positive")
	}
	ids := make([]int64, 0, len(inputs))
	for start := 0; start < len(inputs); start += chunkSize {
		end := start + chunkSize
		if end > len(inputs) {
			end = len(inputs)
		}
		chunk := inputs[start:end]
		var chunkIDs []int64
		err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			var err error
			chunkIDs, err = insertPlaceholderChunk(ctx, tx, chunk, actorID)
			return err
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func insertPlaceholderChunk(ctx context.Context, tx pgx.Tx, chunk []PlaceholderInput, actorID int64) ([]int64, error) {
	query := `INSERT INTO product_stock_units (barcode, description, current_warehouse_id, created_at) VALUES `
	args := make([]any, 0, len(chunk)*4)
	now := time.Now().UTC()
	for i, input := range chunk {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, input.Barcode, input.Description, input.WarehouseID, now)
	}
	query += " RETURNING id"
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(chunk))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		entry := UsageEntry{
			UnitID:      id,
			Action:      UsageActionCreated,
			ActorID:     actorID,
			WarehouseID: chunk[i].WarehouseID,
			Note:        "placeholder created by inventory sync",
			At:          now,
		}
		if err := InsertUsageTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// InsertUsageTx writes one usage-history row inside the caller's transaction.
func InsertUsageTx(ctx context.Context, tx pgx.Tx, entry UsageEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO usage_history (unit_id, action, actor_id, warehouse_id, transfer_id, note, occurred_at)
		 VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), $6, $7)`,
		entry.UnitID, entry.Action, entry.ActorID, entry.WarehouseID, entry.TransferID, entry.Note, at)
	return err
}
