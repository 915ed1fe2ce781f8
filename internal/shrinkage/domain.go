// Package shrinkage keeps the append-only ledger of inventory write-offs.
package shrinkage

import (
	"errors"
	"time"
)

// Source identifies what produced a shrinkage event.
type Source string

const (
	// SourceManual marks an operator-declared write-off.
	SourceManual Source = "manual"
	// SourceTransferMissing marks a unit unreceived at transfer completion.
	SourceTransferMissing Source = "transfer_missing"
)

// Reason categorises the loss.
type Reason string

const (
	ReasonConsumed Reason = "consumed"
	ReasonDamaged  Reason = "damaged"
	ReasonOther    Reason = "other"
)

// Event is one ledger entry. Events are never updated or deleted after
// insertion; one event covers one written-off unit.
type Event struct {
	ID                     int64
	Source                 Source
	Reason                 Reason
	Quantity               int
	ProductStockUnitID     int64
	ProductBarcode         int32
	ProductDescription     string
	WarehouseID            int64
	TransferID             int64
	TransferNumber         string
	SourceWarehouseID      int64
	DestinationWarehouseID int64
	CreatedByUserID        int64
	CreatedAt              time.Time
}

// ErrValidation rejects malformed manual write-off input.
var ErrValidation = errors.New("shrinkage: validation failed")

func (e Event) validate() error {
	if e.Quantity <= 0 || e.ProductStockUnitID == 0 || e.WarehouseID == 0 {
		return ErrValidation
	}
	switch e.Source {
	case SourceManual, SourceTransferMissing:
	default:
		return ErrValidation
	}
	switch e.Reason {
	case ReasonConsumed, ReasonDamaged, ReasonOther:
	default:
		return ErrValidation
	}
	return nil
}
