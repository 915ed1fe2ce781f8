// Package stock holds the ledger of individually numbered inventory units.
package stock

import (
	"errors"
	"time"
)

// Unit is one physically trackable inventory item. Quantity is never
// aggregated here: one row, one item.
type Unit struct {
	ID                   int64
	Barcode              int32
	Description          string
	CurrentWarehouseID   int64
	CurrentCabinetID     int64
	IsBeingUsed          bool
	IsKit                bool
	IsDeleted            bool
	IsEmpty              bool
	NumberOfUses         int
	FirstUsedAt          time.Time
	LastUsedAt           time.Time
	LastUsedByEmployeeID int64
	CreatedAt            time.Time
}

var (
	// ErrDeleted rejects location or usage mutations on a soft-deleted unit.
	ErrDeleted = errors.New("stock: unit is deleted")
	// ErrUsesDecreased guards the monotonic number-of-uses counter.
	ErrUsesDecreased = errors.New("stock: number of uses cannot decrease")
	// ErrNoEmployee rejects marking a unit in use without an employee.
	ErrNoEmployee = errors.New("stock: in-use unit requires an employee")
	// ErrNotFound indicates an unknown unit id.
	ErrNotFound = errors.New("stock: unit not found")
)

// Patch names every mutable unit field. Each set pointer is applied; unset
// pointers leave the field alone. Side effects:
//   - WarehouseID moves the unit to a warehouse and clears its cabinet.
//   - CabinetID moves the unit into a cabinet.
//   - IsBeingUsed=true requires an employee (from the patch or already on the
//     unit), bumps NumberOfUses and stamps First/LastUsedAt.
//   - IsDeleted=true also clears IsBeingUsed.
type Patch struct {
	Description          *string
	WarehouseID          *int64
	CabinetID            *int64
	IsBeingUsed          *bool
	IsDeleted            *bool
	IsEmpty              *bool
	LastUsedByEmployeeID *int64
}

// Apply mutates the unit per the patch, enforcing ledger invariants.
func (u *Unit) Apply(p Patch, now time.Time) error {
	if u.IsDeleted && (p.IsDeleted == nil || *p.IsDeleted) {
		return ErrDeleted
	}
	if p.Description != nil {
		u.Description = *p.Description
	}
	if p.WarehouseID != nil {
		u.CurrentWarehouseID = *p.WarehouseID
		u.CurrentCabinetID = 0
	}
	if p.CabinetID != nil {
		u.CurrentCabinetID = *p.CabinetID
	}
	if p.LastUsedByEmployeeID != nil {
		u.LastUsedByEmployeeID = *p.LastUsedByEmployeeID
	}
	if p.IsBeingUsed != nil {
		if *p.IsBeingUsed {
			if u.LastUsedByEmployeeID == 0 {
				return ErrNoEmployee
			}
			u.NumberOfUses++
			if u.FirstUsedAt.IsZero() {
				u.FirstUsedAt = now
			}
			u.LastUsedAt = now
		}
		u.IsBeingUsed = *p.IsBeingUsed
	}
	if p.IsEmpty != nil {
		u.IsEmpty = *p.IsEmpty
	}
	if p.IsDeleted != nil && *p.IsDeleted {
		u.IsDeleted = true
		u.IsBeingUsed = false
	}
	return nil
}
