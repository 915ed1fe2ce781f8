package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stocktrail/stocktrail/internal/shared"
	"github.com/stocktrail/stocktrail/internal/shrinkage"
	"github.com/stocktrail/stocktrail/internal/stock"
	"github.com/stocktrail/stocktrail/internal/warehouse"
)

// WarehousePort exposes warehouse lookups required by the service.
type WarehousePort interface {
	Get(ctx context.Context, id int64) (warehouse.Warehouse, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the transfer state machine.
type Service struct {
	repo               RepositoryPort
	warehouses         WarehousePort
	remote             RemotePort
	audit              AuditPort
	logger             *slog.Logger
	replicationEnabled bool
}

// ServiceConfig groups optional settings. ReplicationEnabled is an explicit
// construction-time value, not mutable global state.
type ServiceConfig struct {
	ReplicationEnabled bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, warehouses WarehousePort, remote RemotePort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	return &Service{
		repo:               repo,
		warehouses:         warehouses,
		remote:             remote,
		audit:              audit,
		logger:             logger,
		replicationEnabled: cfg.ReplicationEnabled,
	}
}

// ItemInput names one unit to move.
type ItemInput struct {
	UnitID    int64
	Quantity  int
	Condition ItemCondition
	Notes     string
}

// CreateInput describes a transfer to create.
type CreateInput struct {
	Number                 string
	Type                   Type
	SourceWarehouseID      int64
	DestinationWarehouseID int64
	CabinetID              int64
	Priority               string
	Notes                  string
	Items                  []ItemInput
}

// Create inserts the transfer header and one detail per unit. Internal
// transfers relocate their units and complete inside the same transaction;
// external transfers go pending until items are received individually.
func (s *Service) Create(ctx context.Context, identity *shared.Identity, input CreateInput) (Transfer, error) {
	if len(input.Items) == 0 {
		return Transfer{}, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	if input.SourceWarehouseID == 0 {
		return Transfer{}, fmt.Errorf("%w: source warehouse required", ErrValidation)
	}
	var actorID int64
	if identity != nil {
		actorID = identity.UserID
	}
	now := time.Now().UTC()
	t := Transfer{
		Number:            input.Number,
		Type:              input.Type,
		SourceWarehouseID: input.SourceWarehouseID,
		InitiatedBy:       actorID,
		TotalItems:        len(input.Items),
		Priority:          input.Priority,
		Notes:             input.Notes,
		CreatedAt:         now,
	}
	if t.Number == "" {
		t.Number = generateNumber()
	}
	switch input.Type {
	case TypeInternal:
		if input.CabinetID == 0 {
			return Transfer{}, fmt.Errorf("%w: internal transfer requires a cabinet", ErrValidation)
		}
		// Source and destination coincide; only the cabinet changes, so the
		// transfer is created already completed.
		t.DestinationWarehouseID = input.SourceWarehouseID
		t.CabinetID = input.CabinetID
		t.IsCompleted = true
		t.CompletedBy = actorID
		t.CompletedAt = now
	case TypeExternal:
		if input.DestinationWarehouseID == 0 || input.DestinationWarehouseID == input.SourceWarehouseID {
			return Transfer{}, fmt.Errorf("%w: external transfer requires distinct source and destination", ErrValidation)
		}
		t.DestinationWarehouseID = input.DestinationWarehouseID
		t.IsPending = true
	default:
		return Transfer{}, fmt.Errorf("%w: unknown transfer type %q", ErrValidation, input.Type)
	}
	if _, err := s.warehouses.Get(ctx, t.SourceWarehouseID); err != nil {
		return Transfer{}, err
	}
	if t.Type == TypeExternal {
		if _, err := s.warehouses.Get(ctx, t.DestinationWarehouseID); err != nil {
			return Transfer{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransfer(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		for _, item := range input.Items {
			unit, err := tx.GetUnit(ctx, item.UnitID)
			if err != nil {
				return err
			}
			if unit.IsDeleted {
				return fmt.Errorf("%w: unit %d is deleted", ErrValidation, unit.ID)
			}
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			condition := item.Condition
			if condition == "" {
				condition = ConditionGood
			}
			detail := Detail{
				TransferID:          id,
				ProductStockUnitID:  unit.ID,
				QuantityTransferred: qty,
				ItemCondition:       condition,
				Notes:               item.Notes,
			}
			if _, err := tx.InsertDetail(ctx, detail); err != nil {
				return err
			}
			if t.Type == TypeInternal {
				if err := tx.RelocateUnit(ctx, unit.ID, t.SourceWarehouseID, t.CabinetID); err != nil {
					return err
				}
			}
			entry := stock.UsageEntry{
				UnitID:      unit.ID,
				Action:      stock.UsageActionTransferred,
				ActorID:     actorID,
				WarehouseID: t.SourceWarehouseID,
				TransferID:  id,
				Note:        fmt.Sprintf("transfer %s created", t.Number),
				At:          now,
			}
			if t.Type == TypeInternal {
				entry.Action = stock.UsageActionRelocated
				entry.Note = fmt.Sprintf("transfer %s moved unit to cabinet %d", t.Number, t.CabinetID)
			}
			if err := tx.InsertUsage(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:create", t.ID, map[string]any{"number": t.Number, "type": string(t.Type)})
	return t, nil
}

// ReceiveInput describes one item receipt.
type ReceiveInput struct {
	Condition ItemCondition
	Notes     string
}

// ReceiveItem flips one detail's isReceived flag and relocates the unit to
// the destination warehouse. Only permitted while the parent transfer is not
// completed, and only for callers authorized for the destination warehouse.
func (s *Service) ReceiveItem(ctx context.Context, identity *shared.Identity, transferID, detailID int64, input ReceiveInput) (Detail, error) {
	var received Detail
	var actorID int64
	if identity != nil {
		actorID = identity.UserID
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.IsCompleted {
			return ErrLocked
		}
		if t.IsCancelled {
			return ErrCancelled
		}
		if identity == nil || !identity.CanActOn(t.DestinationWarehouseID) {
			return ErrForbidden
		}
		detail, err := tx.GetDetailForUpdate(ctx, transferID, detailID)
		if err != nil {
			return err
		}
		if detail.IsReceived {
			return ErrAlreadyReceived
		}
		now := time.Now().UTC()
		detail.IsReceived = true
		detail.ReceivedBy = actorID
		detail.ReceivedAt = now
		if input.Condition != "" {
			detail.ItemCondition = input.Condition
		}
		if input.Notes != "" {
			detail.Notes = input.Notes
		}
		if err := tx.MarkDetailReceived(ctx, detailID, detail); err != nil {
			return err
		}
		if err := tx.RelocateUnit(ctx, detail.ProductStockUnitID, t.DestinationWarehouseID, 0); err != nil {
			return err
		}
		entry := stock.UsageEntry{
			UnitID:      detail.ProductStockUnitID,
			Action:      stock.UsageActionReceived,
			ActorID:     actorID,
			WarehouseID: t.DestinationWarehouseID,
			TransferID:  t.ID,
			Note:        fmt.Sprintf("received via transfer %s", t.Number),
			At:          now,
		}
		if err := tx.InsertUsage(ctx, entry); err != nil {
			return err
		}
		received = detail
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:receive_item", transferID, map[string]any{"detail_id": detailID})
	return received, nil
}

// CompleteResult reports what the completion transition did locally, plus the
// outcome of the replication side channel when it ran.
type CompleteResult struct {
	Transfer        Transfer
	ShrinkageEvents int
	DeletedUnits    int
	Replication     *ReplicationResult
}

// Complete transitions an external transfer to completed. The flag flip, the
// conversion of unreceived details into shrinkage events, and the soft delete
// of the missing units commit as one transaction; the transfer can never be
// observed completed with unresolved missing items. Remote replication runs
// after the local commit and its failure never rolls local state back.
func (s *Service) Complete(ctx context.Context, identity *shared.Identity, transferID int64, costs []CostEntry) (CompleteResult, error) {
	var result CompleteResult
	var receivedDetails []Detail
	var actorID int64
	if identity != nil {
		actorID = identity.UserID
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if identity == nil || !identity.CanActOn(t.DestinationWarehouseID) {
			return ErrForbidden
		}
		completed := true
		if err := t.Apply(Patch{IsCompleted: &completed, CompletedBy: actorID}, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateFlags(ctx, t); err != nil {
			return err
		}
		details, err := tx.ListDetails(ctx, transferID)
		if err != nil {
			return err
		}
		for _, d := range details {
			if d.IsReceived {
				receivedDetails = append(receivedDetails, d)
				continue
			}
			if d.UnitDeleted || d.UnitEmpty {
				continue
			}
			unit, err := tx.GetUnit(ctx, d.ProductStockUnitID)
			if err != nil {
				return err
			}
			event := shrinkage.Event{
				Source:                 shrinkage.SourceTransferMissing,
				Reason:                 shrinkage.ReasonOther,
				Quantity:               d.QuantityTransferred,
				ProductStockUnitID:     unit.ID,
				ProductBarcode:         unit.Barcode,
				ProductDescription:     unit.Description,
				WarehouseID:            t.SourceWarehouseID,
				TransferID:             t.ID,
				TransferNumber:         t.Number,
				SourceWarehouseID:      t.SourceWarehouseID,
				DestinationWarehouseID: t.DestinationWarehouseID,
				CreatedByUserID:        actorID,
			}
			if _, err := tx.InsertShrinkage(ctx, event); err != nil {
				return err
			}
			if err := tx.SoftDeleteUnit(ctx, unit.ID); err != nil {
				return err
			}
			entry := stock.UsageEntry{
				UnitID:      unit.ID,
				Action:      stock.UsageActionWrittenOff,
				ActorID:     actorID,
				WarehouseID: t.SourceWarehouseID,
				TransferID:  t.ID,
				Note:        fmt.Sprintf("missing at completion of transfer %s", t.Number),
			}
			if err := tx.InsertUsage(ctx, entry); err != nil {
				return err
			}
			result.ShrinkageEvents++
			result.DeletedUnits++
		}
		result.Transfer = t
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:complete", transferID, map[string]any{
		"number":           result.Transfer.Number,
		"shrinkage_events": result.ShrinkageEvents,
	})

	if s.replicationEnabled && result.Transfer.Type == TypeExternal {
		replication := s.replicate(ctx, result.Transfer, receivedDetails, costs)
		result.Replication = &replication
		if replication.Err != "" && s.logger != nil {
			s.logger.Error("transfer replication failed",
				slog.Int64("transfer_id", transferID),
				slog.String("error", replication.Err))
		}
	}
	return result, nil
}

// Cancel marks a not-yet-completed transfer cancelled. No shrinkage and no
// replication side effects.
func (s *Service) Cancel(ctx context.Context, identity *shared.Identity, transferID int64) (Transfer, error) {
	var cancelled Transfer
	var actorID int64
	if identity != nil {
		actorID = identity.UserID
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		flag := true
		if err := t.Apply(Patch{IsCancelled: &flag}, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateFlags(ctx, t); err != nil {
			return err
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:cancel", transferID, map[string]any{"number": cancelled.Number})
	return cancelled, nil
}

// Get returns the transfer and its details.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, []Detail, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, transferID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "warehouse_transfer",
		EntityID: fmt.Sprintf("%d", transferID),
		Meta:     meta,
	})
}

func generateNumber() string {
	return "TRF-" + strings.ToUpper(uuid.NewString()[:8])
}
