package shrinkage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/shared"
	"github.com/stocktrail/stocktrail/internal/stock"
)

// LedgerPort abstracts persistence for the service.
type LedgerPort interface {
	WriteOffUnit(ctx context.Context, input WriteOffInput) (Event, error)
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles manual write-offs, the second producer of ledger events
// besides transfer completion.
type Service struct {
	repo   LedgerPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo LedgerPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// WriteOffInput describes a manual write-off of one unit.
type WriteOffInput struct {
	UnitID  int64
	Reason  Reason
	Note    string
	ActorID int64
}

// ManualWriteOff soft-deletes the unit and appends one ledger event, both in
// one transaction.
func (s *Service) ManualWriteOff(ctx context.Context, identity *shared.Identity, input WriteOffInput) (Event, error) {
	if input.UnitID == 0 {
		return Event{}, fmt.Errorf("%w: unit id required", ErrValidation)
	}
	switch input.Reason {
	case ReasonConsumed, ReasonDamaged, ReasonOther:
	default:
		return Event{}, fmt.Errorf("%w: unknown reason %q", ErrValidation, input.Reason)
	}
	if identity != nil {
		input.ActorID = identity.UserID
	}
	event, err := s.repo.WriteOffUnit(ctx, input)
	if err != nil {
		return Event{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "shrinkage:manual",
			Entity:   "product_stock_unit",
			EntityID: fmt.Sprintf("%d", input.UnitID),
			Meta:     map[string]any{"reason": string(input.Reason), "note": input.Note},
		})
	}
	return event, nil
}

// ListEvents reads the ledger for reporting.
func (s *Service) ListEvents(ctx context.Context, filter ListFilter) ([]Event, error) {
	return s.repo.List(ctx, filter)
}

// WriteOffUnit implements LedgerPort on Repository: loads and locks the unit,
// soft-deletes it, appends the event and the usage-history row atomically.
func (r *Repository) WriteOffUnit(ctx context.Context, input WriteOffInput) (Event, error) {
	var event Event
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			barcode     int32
			description string
			warehouseID int64
			isDeleted   bool
		)
		err := tx.QueryRow(ctx,
			`SELECT barcode, COALESCE(description, ''), COALESCE(current_warehouse_id, 0), is_deleted
			 FROM product_stock_units WHERE id=$1 FOR UPDATE`, input.UnitID).
			Scan(&barcode, &description, &warehouseID, &isDeleted)
		if err != nil {
			return unitLookupError(err)
		}
		if isDeleted {
			return stock.ErrDeleted
		}
		if _, err := tx.Exec(ctx,
			`UPDATE product_stock_units SET is_deleted=true, is_being_used=false WHERE id=$1`, input.UnitID); err != nil {
			return err
		}
		event = Event{
			Source:             SourceManual,
			Reason:             input.Reason,
			Quantity:           1,
			ProductStockUnitID: input.UnitID,
			ProductBarcode:     barcode,
			ProductDescription: description,
			WarehouseID:        warehouseID,
			CreatedByUserID:    input.ActorID,
		}
		id, err := InsertTx(ctx, tx, event)
		if err != nil {
			return err
		}
		event.ID = id
		usage := stock.UsageEntry{
			UnitID:      input.UnitID,
			Action:      stock.UsageActionWrittenOff,
			ActorID:     input.ActorID,
			WarehouseID: warehouseID,
			Note:        input.Note,
		}
		return stock.InsertUsageTx(ctx, tx, usage)
	})
	if err != nil {
		return Event{}, err
	}
	return event, nil
}

// unitLookupError keeps not-found distinct from infrastructure failures: only
// a missing row maps to stock.ErrNotFound, everything else surfaces as-is so
// callers see a retriable failure instead of a 404.
func unitLookupError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return stock.ErrNotFound
	}
	return err
}
