// Package sync reconciles locally tracked unit counts against the remote
// inventory system's reported stock.
package sync

import (
	"errors"
	"time"
)

var (
	// ErrMissingCredentials aborts a run before any warehouse is touched.
	ErrMissingCredentials = errors.New("sync: remote credentials not configured")
	// ErrWarehouseNotFound indicates the requested warehouse does not exist.
	ErrWarehouseNotFound = errors.New("sync: warehouse not found")
	// ErrWarehouseInactive indicates the requested warehouse is not active.
	ErrWarehouseInactive = errors.New("sync: warehouse not active")
	// ErrNoEligibleWarehouses indicates nothing qualified for the run.
	ErrNoEligibleWarehouses = errors.New("sync: no eligible warehouses")
)

// CappedProduct reports a barcode whose shortfall exceeded the per-product
// insertion cap. The excess is never silently dropped.
type CappedProduct struct {
	Barcode  int32 `json:"barcode"`
	Target   int   `json:"target"`
	Existing int   `json:"existing"`
	Planned  int   `json:"planned"`
	Excess   int   `json:"excess"`
}

// WarehouseSummary is the per-warehouse outcome of a run.
type WarehouseSummary struct {
	WarehouseID        int64           `json:"warehouseId"`
	WarehouseName      string          `json:"warehouseName"`
	Fetched            int             `json:"fetched"`
	Processed          int             `json:"processed"`
	Existing           int             `json:"existing"`
	ToInsert           int             `json:"toInsert"`
	Inserted           int             `json:"inserted"`
	SkippedInvalid     int             `json:"skippedInvalid"`
	OverTargetExisting int             `json:"overTargetExisting"`
	CappedProducts     []CappedProduct `json:"cappedProducts"`
	InsertedUnitIDs    []int64         `json:"insertedUnitIds,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// Totals rolls the per-warehouse figures up across the run.
type Totals struct {
	Warehouses         int `json:"warehouses"`
	Failed             int `json:"failed"`
	Fetched            int `json:"fetched"`
	Processed          int `json:"processed"`
	Existing           int `json:"existing"`
	ToInsert           int `json:"toInsert"`
	Inserted           int `json:"inserted"`
	SkippedInvalid     int `json:"skippedInvalid"`
	OverTargetExisting int `json:"overTargetExisting"`
}

// Meta describes how the run was executed.
type Meta struct {
	DryRun    bool      `json:"dryRun"`
	Timestamp time.Time `json:"timestamp"`
	PageSize  int       `json:"pageSize"`
	InsertCap int       `json:"insertCap"`
}

// RunReport is the full structured result of one sync invocation.
type RunReport struct {
	Warehouses []WarehouseSummary `json:"warehouses"`
	Totals     Totals             `json:"totals"`
	Meta       Meta               `json:"meta"`
}
