package transfer

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/shrinkage"
	"github.com/stocktrail/stocktrail/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Transfer, []Detail, error)
}

// TxRepository exposes the transactional operations the state machine needs.
// Unit and shrinkage writes live here so a completion transition commits or
// rolls back as one unit of work.
type TxRepository interface {
	InsertTransfer(ctx context.Context, t Transfer) (int64, error)
	InsertDetail(ctx context.Context, d Detail) (int64, error)
	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	GetDetailForUpdate(ctx context.Context, transferID, detailID int64) (Detail, error)
	ListDetails(ctx context.Context, transferID int64) ([]Detail, error)
	MarkDetailReceived(ctx context.Context, detailID int64, d Detail) error
	UpdateFlags(ctx context.Context, t Transfer) error
	GetUnit(ctx context.Context, unitID int64) (stock.Unit, error)
	RelocateUnit(ctx context.Context, unitID, warehouseID, cabinetID int64) error
	SoftDeleteUnit(ctx context.Context, unitID int64) error
	InsertUsage(ctx context.Context, entry stock.UsageEntry) error
	InsertShrinkage(ctx context.Context, event shrinkage.Event) (int64, error)
}
