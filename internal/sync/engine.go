package sync

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/stocktrail/stocktrail/internal/remote"
	"github.com/stocktrail/stocktrail/internal/stock"
	"github.com/stocktrail/stocktrail/internal/warehouse"
)

// RemotePort exposes the remote inventory reads the engine needs.
type RemotePort interface {
	Configured() bool
	FetchGoods(ctx context.Context, page, pageSize int) ([]remote.Good, error)
}

// WarehousePort exposes warehouse lookups.
type WarehousePort interface {
	Get(ctx context.Context, id int64) (warehouse.Warehouse, error)
	ListActive(ctx context.Context) ([]warehouse.Warehouse, error)
}

// StockPort exposes the unit-ledger operations the engine needs.
type StockPort interface {
	CountNonDeleted(ctx context.Context, warehouseID int64, barcodes []int32) (map[int32]int, error)
	InsertPlaceholders(ctx context.Context, inputs []stock.PlaceholderInput, chunkSize int, actorID int64) ([]int64, error)
}

// EngineConfig tunes pagination and insertion bounds.
type EngineConfig struct {
	PageSize    int
	InsertCap   int
	InsertChunk int
}

// Defaults chosen to bound remote load and worst-case transaction size.
const (
	defaultPageSize    = 100
	defaultInsertCap   = 2000
	defaultInsertChunk = 500
)

// Engine runs the reconciliation between local unit counts and remote targets.
type Engine struct {
	remote     RemotePort
	warehouses WarehousePort
	units      StockPort
	logger     *slog.Logger
	cfg        EngineConfig
}

// NewEngine builds Engine, filling zero config fields with defaults.
func NewEngine(remotePort RemotePort, warehouses WarehousePort, units StockPort, logger *slog.Logger, cfg EngineConfig) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.InsertCap <= 0 {
		cfg.InsertCap = defaultInsertCap
	}
	if cfg.InsertChunk <= 0 {
		cfg.InsertChunk = defaultInsertChunk
	}
	return &Engine{remote: remotePort, warehouses: warehouses, units: units, logger: logger, cfg: cfg}
}

// RunInput selects what to sync.
type RunInput struct {
	WarehouseID int64
	DryRun      bool
	ActorID     int64
}

// Run reconciles each eligible warehouse sequentially. In an all-warehouse
// run one warehouse's upstream failure is recorded in its summary and the run
// moves on; the remaining warehouses are unaffected. A run scoped to a single
// named warehouse has nothing to isolate, so its failure is returned as an
// error with the upstream cause intact.
func (e *Engine) Run(ctx context.Context, input RunInput) (RunReport, error) {
	if e.remote == nil || !e.remote.Configured() {
		return RunReport{}, ErrMissingCredentials
	}
	targets, err := e.eligibleWarehouses(ctx, input.WarehouseID)
	if err != nil {
		return RunReport{}, err
	}

	report := RunReport{
		Meta: Meta{
			DryRun:    input.DryRun,
			Timestamp: time.Now().UTC(),
			PageSize:  e.cfg.PageSize,
			InsertCap: e.cfg.InsertCap,
		},
	}
	for _, w := range targets {
		summary, err := e.syncWarehouse(ctx, w, input)
		if err != nil && input.WarehouseID != 0 {
			return RunReport{}, fmt.Errorf("warehouse %d: %w", w.ID, err)
		}
		report.Warehouses = append(report.Warehouses, summary)
		report.Totals.Warehouses++
		if summary.Error != "" {
			report.Totals.Failed++
		}
		report.Totals.Fetched += summary.Fetched
		report.Totals.Processed += summary.Processed
		report.Totals.Existing += summary.Existing
		report.Totals.ToInsert += summary.ToInsert
		report.Totals.Inserted += summary.Inserted
		report.Totals.SkippedInvalid += summary.SkippedInvalid
		report.Totals.OverTargetExisting += summary.OverTargetExisting
	}
	return report, nil
}

func (e *Engine) eligibleWarehouses(ctx context.Context, warehouseID int64) ([]warehouse.Warehouse, error) {
	if warehouseID != 0 {
		w, err := e.warehouses.Get(ctx, warehouseID)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d", ErrWarehouseNotFound, warehouseID)
		}
		if !w.IsActive {
			return nil, fmt.Errorf("%w: id %d", ErrWarehouseInactive, warehouseID)
		}
		if !w.RemoteEligible() {
			return nil, fmt.Errorf("%w: warehouse %d has no external mapping", ErrNoEligibleWarehouses, warehouseID)
		}
		return []warehouse.Warehouse{w}, nil
	}
	all, err := e.warehouses.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	eligible := make([]warehouse.Warehouse, 0, len(all))
	for _, w := range all {
		if w.RemoteEligible() {
			eligible = append(eligible, w)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleWarehouses
	}
	return eligible, nil
}

func (e *Engine) syncWarehouse(ctx context.Context, w warehouse.Warehouse, input RunInput) (WarehouseSummary, error) {
	summary := WarehouseSummary{WarehouseID: w.ID, WarehouseName: w.Name}

	goods, err := e.fetchAllGoods(ctx)
	if err != nil {
		summary.Error = fmt.Sprintf("warehouse %d: %v", w.ID, err)
		return summary, err
	}
	summary.Fetched = len(goods)

	// Aggregate remote target counts and descriptions per canonical barcode.
	targets := make(map[int32]int)
	descriptions := make(map[int32]string)
	barcodes := make([]int32, 0, len(goods))
	for _, good := range goods {
		barcode, ok := canonicalBarcode(good)
		if !ok {
			summary.SkippedInvalid++
			continue
		}
		summary.Processed++
		if _, seen := targets[barcode]; !seen {
			barcodes = append(barcodes, barcode)
		}
		targets[barcode] += good.AmountFor(w.ExternalConsumablesStorageID)
		if descriptions[barcode] == "" {
			descriptions[barcode] = good.Name
		}
	}

	existing, err := e.units.CountNonDeleted(ctx, w.ID, barcodes)
	if err != nil {
		summary.Error = fmt.Sprintf("warehouse %d: count existing units: %v", w.ID, err)
		return summary, err
	}

	var planned []stock.PlaceholderInput
	for _, barcode := range barcodes {
		target := targets[barcode]
		have := existing[barcode]
		summary.Existing += have
		difference := target - have
		if difference < 0 {
			// Units present locally beyond the remote target. Informational
			// only: no deletion is ever derived from sync.
			summary.OverTargetExisting += -difference
			continue
		}
		if difference == 0 {
			continue
		}
		plan := difference
		if plan > e.cfg.InsertCap {
			plan = e.cfg.InsertCap
			summary.CappedProducts = append(summary.CappedProducts, CappedProduct{
				Barcode:  barcode,
				Target:   target,
				Existing: have,
				Planned:  plan,
				Excess:   difference - plan,
			})
			if e.logger != nil {
				e.logger.Warn("sync insert cap reached",
					slog.Int64("warehouse_id", w.ID),
					slog.Int("barcode", int(barcode)),
					slog.Int("shortfall", difference),
					slog.Int("capped_at", e.cfg.InsertCap))
			}
		}
		summary.ToInsert += plan
		for i := 0; i < plan; i++ {
			planned = append(planned, stock.PlaceholderInput{
				Barcode:     barcode,
				Description: descriptions[barcode],
				WarehouseID: w.ID,
			})
		}
	}

	if input.DryRun || len(planned) == 0 {
		return summary, nil
	}
	ids, err := e.units.InsertPlaceholders(ctx, planned, e.cfg.InsertChunk, input.ActorID)
	summary.Inserted = len(ids)
	summary.InsertedUnitIDs = ids
	if err != nil {
		summary.Error = fmt.Sprintf("warehouse %d: insert units: %v", w.ID, err)
	}
	return summary, err
}

// fetchAllGoods pages through the remote listing sequentially. Pages are
// never fetched concurrently, keeping remote rate-limit behavior predictable.
func (e *Engine) fetchAllGoods(ctx context.Context) ([]remote.Good, error) {
	var goods []remote.Good
	for page := 1; ; page++ {
		batch, err := e.remote.FetchGoods(ctx, page, e.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch goods page %d: %w", page, err)
		}
		goods = append(goods, batch...)
		if len(batch) < e.cfg.PageSize {
			return goods, nil
		}
	}
}

// canonicalBarcode resolves the integer barcode for a remote good: the
// explicit barcode field when parsable and in int32 range, else the remote
// good id when in range, else nothing.
func canonicalBarcode(good remote.Good) (int32, bool) {
	if good.Barcode != "" {
		if parsed, err := strconv.ParseInt(good.Barcode, 10, 64); err == nil && inBarcodeRange(parsed) {
			return int32(parsed), true
		}
	}
	if inBarcodeRange(good.ID) {
		return int32(good.ID), true
	}
	return 0, false
}

func inBarcodeRange(v int64) bool {
	return v >= 0 && v <= math.MaxInt32
}
