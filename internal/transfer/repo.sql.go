package transfer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/shrinkage"
	"github.com/stocktrail/stocktrail/internal/stock"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const transferColumns = `id, number, type, source_warehouse_id, destination_warehouse_id,
	COALESCE(cabinet_id, 0), initiated_by, total_items, COALESCE(priority, ''), COALESCE(notes, ''),
	is_completed, is_pending, is_cancelled, COALESCE(completed_by, 0),
	COALESCE(completed_at, '0001-01-01'), created_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.Number, &t.Type, &t.SourceWarehouseID, &t.DestinationWarehouseID,
		&t.CabinetID, &t.InitiatedBy, &t.TotalItems, &t.Priority, &t.Notes,
		&t.IsCompleted, &t.IsPending, &t.IsCancelled, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, err
	}
	return t, nil
}

// Get returns the transfer and its details.
func (r *Repository) Get(ctx context.Context, id int64) (Transfer, []Detail, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM warehouse_transfers WHERE id=$1`, id))
	if err != nil {
		return Transfer{}, nil, err
	}
	details, err := listDetails(ctx, r.pool, id)
	if err != nil {
		return Transfer{}, nil, err
	}
	return t, details, nil
}

const detailColumns = `d.id, d.transfer_id, d.product_stock_unit_id, u.barcode, d.quantity_transferred,
	d.item_condition, d.is_received, COALESCE(d.received_by, 0), COALESCE(d.received_at, '0001-01-01'),
	COALESCE(d.notes, ''), u.is_deleted, u.is_empty`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDetails(ctx context.Context, q querier, transferID int64) ([]Detail, error) {
	rows, err := q.Query(ctx,
		`SELECT `+detailColumns+` FROM warehouse_transfer_details d
		 JOIN product_stock_units u ON u.id = d.product_stock_unit_id
		 WHERE d.transfer_id=$1 ORDER BY d.id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.TransferID, &d.ProductStockUnitID, &d.UnitBarcode,
			&d.QuantityTransferred, &d.ItemCondition, &d.IsReceived, &d.ReceivedBy,
			&d.ReceivedAt, &d.Notes, &d.UnitDeleted, &d.UnitEmpty); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *txRepo) InsertTransfer(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO warehouse_transfers
		 (number, type, source_warehouse_id, destination_warehouse_id, cabinet_id, initiated_by,
		  total_items, priority, notes, is_completed, is_pending, is_cancelled, completed_by, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, $8, $9, $10, $11, $12, NULLIF($13, 0), NULLIF($14, '0001-01-01'::timestamptz), $15)
		 RETURNING id`,
		t.Number, t.Type, t.SourceWarehouseID, t.DestinationWarehouseID, t.CabinetID, t.InitiatedBy,
		t.TotalItems, t.Priority, t.Notes, t.IsCompleted, t.IsPending, t.IsCancelled,
		t.CompletedBy, t.CompletedAt, t.CreatedAt).Scan(&id)
	if err != nil && db.IsUniqueViolation(err) {
		return 0, ErrDuplicateNumber
	}
	return id, err
}

func (r *txRepo) InsertDetail(ctx context.Context, d Detail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO warehouse_transfer_details
		 (transfer_id, product_stock_unit_id, quantity_transferred, item_condition, is_received, notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.TransferID, d.ProductStockUnitID, d.QuantityTransferred, d.ItemCondition, d.IsReceived, d.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM warehouse_transfers WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) GetDetailForUpdate(ctx context.Context, transferID, detailID int64) (Detail, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+detailColumns+` FROM warehouse_transfer_details d
		 JOIN product_stock_units u ON u.id = d.product_stock_unit_id
		 WHERE d.id=$1 AND d.transfer_id=$2 FOR UPDATE OF d`, detailID, transferID)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return Detail{}, ErrNotFound
	}
	var d Detail
	if err := rows.Scan(&d.ID, &d.TransferID, &d.ProductStockUnitID, &d.UnitBarcode,
		&d.QuantityTransferred, &d.ItemCondition, &d.IsReceived, &d.ReceivedBy,
		&d.ReceivedAt, &d.Notes, &d.UnitDeleted, &d.UnitEmpty); err != nil {
		return Detail{}, err
	}
	return d, rows.Err()
}

func (r *txRepo) ListDetails(ctx context.Context, transferID int64) ([]Detail, error) {
	return listDetails(ctx, r.tx, transferID)
}

func (r *txRepo) MarkDetailReceived(ctx context.Context, detailID int64, d Detail) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE warehouse_transfer_details
		 SET is_received=true, received_by=$2, received_at=$3, item_condition=$4, notes=$5
		 WHERE id=$1`,
		detailID, d.ReceivedBy, d.ReceivedAt, d.ItemCondition, d.Notes)
	return err
}

func (r *txRepo) UpdateFlags(ctx context.Context, t Transfer) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE warehouse_transfers
		 SET is_completed=$2, is_pending=$3, is_cancelled=$4, completed_by=NULLIF($5, 0),
		     completed_at=NULLIF($6, '0001-01-01'::timestamptz), notes=$7
		 WHERE id=$1`,
		t.ID, t.IsCompleted, t.IsPending, t.IsCancelled, t.CompletedBy, t.CompletedAt, t.Notes)
	return err
}

func (r *txRepo) GetUnit(ctx context.Context, unitID int64) (stock.Unit, error) {
	var u stock.Unit
	err := r.tx.QueryRow(ctx,
		`SELECT id, barcode, COALESCE(description, ''), COALESCE(current_warehouse_id, 0),
		        COALESCE(current_cabinet_id, 0), is_being_used, is_kit, is_deleted, is_empty
		 FROM product_stock_units WHERE id=$1 FOR UPDATE`, unitID).
		Scan(&u.ID, &u.Barcode, &u.Description, &u.CurrentWarehouseID, &u.CurrentCabinetID,
			&u.IsBeingUsed, &u.IsKit, &u.IsDeleted, &u.IsEmpty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Unit{}, stock.ErrNotFound
		}
		return stock.Unit{}, err
	}
	return u, nil
}

func (r *txRepo) RelocateUnit(ctx context.Context, unitID, warehouseID, cabinetID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE product_stock_units
		 SET current_warehouse_id=NULLIF($2, 0), current_cabinet_id=NULLIF($3, 0)
		 WHERE id=$1 AND NOT is_deleted`, unitID, warehouseID, cabinetID)
	return err
}

func (r *txRepo) SoftDeleteUnit(ctx context.Context, unitID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE product_stock_units SET is_deleted=true, is_being_used=false WHERE id=$1`, unitID)
	return err
}

func (r *txRepo) InsertUsage(ctx context.Context, entry stock.UsageEntry) error {
	return stock.InsertUsageTx(ctx, r.tx, entry)
}

func (r *txRepo) InsertShrinkage(ctx context.Context, event shrinkage.Event) (int64, error) {
	return shrinkage.InsertTx(ctx, r.tx, event)
}
