// Package transfer implements the warehouse transfer state machine: creation,
// per-item receipt, completion with shortfall accounting, and cancellation.
package transfer

import (
	"errors"
	"time"
)

// Type distinguishes cross-warehouse moves from cabinet moves inside one
// warehouse.
type Type string

const (
	// TypeInternal moves units between a warehouse and one of its cabinets.
	// Internal transfers complete atomically at creation time.
	TypeInternal Type = "internal"
	// TypeExternal moves units between two warehouses through a pending state.
	TypeExternal Type = "external"
)

// ItemCondition records the state an item arrived in.
type ItemCondition string

const (
	ConditionGood            ItemCondition = "good"
	ConditionDamaged         ItemCondition = "damaged"
	ConditionNeedsInspection ItemCondition = "needs_inspection"
)

// Transfer is one movement header.
type Transfer struct {
	ID                     int64
	Number                 string
	Type                   Type
	SourceWarehouseID      int64
	DestinationWarehouseID int64
	CabinetID              int64
	InitiatedBy            int64
	TotalItems             int
	Priority               string
	Notes                  string
	IsCompleted            bool
	IsPending              bool
	IsCancelled            bool
	CompletedBy            int64
	CompletedAt            time.Time
	CreatedAt              time.Time
}

// Detail is one unit-granularity line of a transfer.
type Detail struct {
	ID                  int64
	TransferID          int64
	ProductStockUnitID  int64
	UnitBarcode         int32
	QuantityTransferred int
	ItemCondition       ItemCondition
	IsReceived          bool
	ReceivedBy          int64
	ReceivedAt          time.Time
	Notes               string
	UnitDeleted         bool
	UnitEmpty           bool
}

var (
	// ErrNotFound indicates an unknown transfer or detail.
	ErrNotFound = errors.New("transfer: not found")
	// ErrLocked rejects any flag mutation on a completed transfer.
	ErrLocked = errors.New("transfer: already completed")
	// ErrCancelled rejects mutations on a cancelled transfer.
	ErrCancelled = errors.New("transfer: cancelled")
	// ErrAlreadyReceived guards the one-way isReceived transition.
	ErrAlreadyReceived = errors.New("transfer: item already received")
	// ErrDuplicateNumber indicates a transfer number collision.
	ErrDuplicateNumber = errors.New("transfer: duplicate transfer number")
	// ErrValidation rejects malformed creation or mutation input.
	ErrValidation = errors.New("transfer: validation failed")
	// ErrForbidden rejects callers not authorized for the destination warehouse.
	ErrForbidden = errors.New("transfer: not authorized for destination warehouse")
)

// Patch names the mutable transfer flags. Setting IsCompleted also stamps
// CompletedAt/CompletedBy and clears IsPending; setting IsCancelled clears
// IsPending. Completion and cancellation are mutually exclusive.
type Patch struct {
	IsCompleted *bool
	IsCancelled *bool
	Notes       *string
	CompletedBy int64
}

// Apply mutates the transfer per the patch. A completed transfer accepts only
// note changes; anything else returns ErrLocked.
func (t *Transfer) Apply(p Patch, now time.Time) error {
	if t.IsCompleted && (p.IsCompleted != nil || p.IsCancelled != nil) {
		return ErrLocked
	}
	if p.IsCompleted != nil && *p.IsCompleted {
		if t.IsCancelled {
			return ErrCancelled
		}
		t.IsCompleted = true
		t.IsPending = false
		t.CompletedBy = p.CompletedBy
		t.CompletedAt = now
	}
	if p.IsCancelled != nil && *p.IsCancelled {
		t.IsCancelled = true
		t.IsPending = false
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return nil
}
