package shrinkage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. The ledger is pure
// append: no update or delete statements exist here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertEventSQL = `INSERT INTO shrinkage_events
	(source, reason, quantity, product_stock_unit_id, product_barcode, product_description,
	 warehouse_id, transfer_id, transfer_number, source_warehouse_id, destination_warehouse_id,
	 created_by_user_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), NULLIF($9, ''), NULLIF($10, 0), NULLIF($11, 0), $12, $13)
	RETURNING id`

// Insert appends one event.
func (r *Repository) Insert(ctx context.Context, event Event) (int64, error) {
	if err := event.validate(); err != nil {
		return 0, err
	}
	return insertEvent(ctx, r.pool, event)
}

// InsertTx appends one event inside the caller's transaction. Used by the
// transfer completion transition so the event lands atomically with the
// status flip.
func InsertTx(ctx context.Context, tx pgx.Tx, event Event) (int64, error) {
	if err := event.validate(); err != nil {
		return 0, err
	}
	return insertEvent(ctx, tx, event)
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertEvent(ctx context.Context, q execer, event Event) (int64, error) {
	at := event.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var id int64
	err := q.QueryRow(ctx, insertEventSQL,
		event.Source, event.Reason, event.Quantity, event.ProductStockUnitID,
		event.ProductBarcode, event.ProductDescription, event.WarehouseID,
		event.TransferID, event.TransferNumber, event.SourceWarehouseID,
		event.DestinationWarehouseID, event.CreatedByUserID, at).Scan(&id)
	return id, err
}

// ListFilter narrows ledger reads for reporting consumers.
type ListFilter struct {
	WarehouseID int64
	Source      Source
	Limit       int
}

// List returns events newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, source, reason, quantity, product_stock_unit_id, product_barcode,
		        COALESCE(product_description, ''), warehouse_id, COALESCE(transfer_id, 0),
		        COALESCE(transfer_number, ''), COALESCE(source_warehouse_id, 0),
		        COALESCE(destination_warehouse_id, 0), created_by_user_id, created_at
		 FROM shrinkage_events
		 WHERE ($1 = 0 OR warehouse_id = $1) AND ($2 = '' OR source = $2)
		 ORDER BY created_at DESC, id DESC LIMIT $3`,
		filter.WarehouseID, string(filter.Source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Source, &e.Reason, &e.Quantity, &e.ProductStockUnitID,
			&e.ProductBarcode, &e.ProductDescription, &e.WarehouseID, &e.TransferID,
			&e.TransferNumber, &e.SourceWarehouseID, &e.DestinationWarehouseID,
			&e.CreatedByUserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
