package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/remote"
	"github.com/stocktrail/stocktrail/internal/stock"
	"github.com/stocktrail/stocktrail/internal/warehouse"
)

type fakeRemote struct {
	configured bool
	pages      [][]remote.Good
	failCalls  int
	failWith   error
	calls      int
}

func (f *fakeRemote) Configured() bool { return f.configured }

func (f *fakeRemote) FetchGoods(ctx context.Context, page, _ int) ([]remote.Good, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls++
	if f.failCalls > 0 {
		f.failCalls--
		if f.failWith != nil {
			return nil, f.failWith
		}
		return nil, errors.New("upstream unavailable")
	}
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return nil, nil
}

type fakeWarehouses struct {
	byID map[int64]warehouse.Warehouse
}

func (f *fakeWarehouses) Get(_ context.Context, id int64) (warehouse.Warehouse, error) {
	w, ok := f.byID[id]
	if !ok {
		return warehouse.Warehouse{}, warehouse.ErrNotFound
	}
	return w, nil
}

func (f *fakeWarehouses) ListActive(_ context.Context) ([]warehouse.Warehouse, error) {
	var out []warehouse.Warehouse
	for _, w := range f.byID {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeStock struct {
	existing map[int64]map[int32]int
	inserted []stock.PlaceholderInput
	chunk    int
	nextID   int64
}

func (f *fakeStock) CountNonDeleted(_ context.Context, warehouseID int64, barcodes []int32) (map[int32]int, error) {
	counts := make(map[int32]int)
	for _, b := range barcodes {
		if n := f.existing[warehouseID][b]; n > 0 {
			counts[b] = n
		}
	}
	return counts, nil
}

func (f *fakeStock) InsertPlaceholders(_ context.Context, inputs []stock.PlaceholderInput, chunkSize int, _ int64) ([]int64, error) {
	f.inserted = append(f.inserted, inputs...)
	f.chunk = chunkSize
	ids := make([]int64, len(inputs))
	for i := range ids {
		f.nextID++
		ids[i] = f.nextID
	}
	return ids, nil
}

func testWarehouse(id int64) warehouse.Warehouse {
	return warehouse.Warehouse{
		ID:                           id,
		Name:                         fmt.Sprintf("Location %d", id),
		ExternalLocationID:           id * 100,
		ExternalConsumablesStorageID: id * 10,
		IsActive:                     true,
	}
}

func good(id int64, barcode string, storageID int64, amount int) remote.Good {
	return remote.Good{
		ID:      id,
		Barcode: barcode,
		Name:    "Good " + strconv.FormatInt(id, 10),
		Amounts: []remote.StorageAmount{
			{StorageID: storageID, Amount: json.Number(strconv.Itoa(amount))},
		},
	}
}

func newTestEngine(r *fakeRemote, w *fakeWarehouses, s *fakeStock, cfg EngineConfig) *Engine {
	return NewEngine(r, w, s, slog.Default(), cfg)
}

func TestRunRequiresCredentials(t *testing.T) {
	engine := newTestEngine(&fakeRemote{configured: false}, &fakeWarehouses{}, &fakeStock{}, EngineConfig{})
	_, err := engine.Run(context.Background(), RunInput{})
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRunValidatesSingleWarehouse(t *testing.T) {
	inactive := testWarehouse(2)
	inactive.IsActive = false
	unmapped := testWarehouse(3)
	unmapped.ExternalConsumablesStorageID = 0

	warehouses := &fakeWarehouses{byID: map[int64]warehouse.Warehouse{2: inactive, 3: unmapped}}
	engine := newTestEngine(&fakeRemote{configured: true}, warehouses, &fakeStock{}, EngineConfig{})

	_, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.ErrorIs(t, err, ErrWarehouseNotFound)

	_, err = engine.Run(context.Background(), RunInput{WarehouseID: 2})
	require.ErrorIs(t, err, ErrWarehouseInactive)

	_, err = engine.Run(context.Background(), RunInput{WarehouseID: 3})
	require.ErrorIs(t, err, ErrNoEligibleWarehouses)
}

func TestRunRequiresEligibleWarehouses(t *testing.T) {
	unmapped := testWarehouse(1)
	unmapped.ExternalLocationID = 0
	warehouses := &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: unmapped}}
	engine := newTestEngine(&fakeRemote{configured: true}, warehouses, &fakeStock{}, EngineConfig{})

	_, err := engine.Run(context.Background(), RunInput{})
	require.ErrorIs(t, err, ErrNoEligibleWarehouses)
}

func TestRunInsertsShortfall(t *testing.T) {
	w := testWarehouse(1)
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{{
		good(1001, "1001", w.ExternalConsumablesStorageID, 50),
	}}}
	units := &fakeStock{}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, units, EngineConfig{InsertChunk: 500})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1, ActorID: 9})
	require.NoError(t, err)
	require.Len(t, report.Warehouses, 1)

	summary := report.Warehouses[0]
	require.Empty(t, summary.Error)
	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Processed)
	require.Zero(t, summary.Existing)
	require.Equal(t, 50, summary.ToInsert)
	require.Equal(t, 50, summary.Inserted)
	require.Len(t, summary.InsertedUnitIDs, 50)
	require.Zero(t, summary.SkippedInvalid)

	require.Len(t, units.inserted, 50)
	require.Equal(t, 500, units.chunk)
	require.Equal(t, int32(1001), units.inserted[0].Barcode)
	require.Equal(t, w.ID, units.inserted[0].WarehouseID)
	require.Equal(t, "Good 1001", units.inserted[0].Description)
}

func TestRunPaginatesUntilShortPage(t *testing.T) {
	w := testWarehouse(1)
	sid := w.ExternalConsumablesStorageID
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{
		{good(1, "1", sid, 1), good(2, "2", sid, 1)},
		{good(3, "3", sid, 1), good(4, "4", sid, 1)},
		{good(5, "5", sid, 1)},
	}}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, &fakeStock{}, EngineConfig{PageSize: 2})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, 3, remoteAPI.calls)
	require.Equal(t, 5, report.Warehouses[0].Fetched)
	require.Equal(t, 5, report.Warehouses[0].Inserted)
}

func TestRunCapsInsertsPerProduct(t *testing.T) {
	w := testWarehouse(1)
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{{
		good(1001, "1001", w.ExternalConsumablesStorageID, 10),
	}}}
	units := &fakeStock{}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, units, EngineConfig{InsertCap: 3})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.NoError(t, err)

	summary := report.Warehouses[0]
	require.Equal(t, 3, summary.ToInsert)
	require.Equal(t, 3, summary.Inserted)
	require.Len(t, summary.CappedProducts, 1)
	capped := summary.CappedProducts[0]
	require.Equal(t, int32(1001), capped.Barcode)
	require.Equal(t, 10, capped.Target)
	require.Zero(t, capped.Existing)
	require.Equal(t, 3, capped.Planned)
	require.Equal(t, 7, capped.Excess)
}

func TestRunDryRunSkipsInserts(t *testing.T) {
	w := testWarehouse(1)
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{{
		good(1001, "1001", w.ExternalConsumablesStorageID, 5),
	}}}
	units := &fakeStock{}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, units, EngineConfig{})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1, DryRun: true})
	require.NoError(t, err)

	summary := report.Warehouses[0]
	require.True(t, report.Meta.DryRun)
	require.Equal(t, 5, summary.ToInsert)
	require.Zero(t, summary.Inserted)
	require.Empty(t, units.inserted)
}

func TestRunSkipsInvalidBarcodes(t *testing.T) {
	w := testWarehouse(1)
	sid := w.ExternalConsumablesStorageID
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{{
		// non-numeric barcode with an id in range falls back to the id
		good(77, "not-a-number", sid, 1),
		// both barcode and id out of int32 range
		good(9_000_000_000, "9000000000", sid, 1),
		good(100, "", sid, 2),
	}}}
	units := &fakeStock{}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, units, EngineConfig{})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.NoError(t, err)

	summary := report.Warehouses[0]
	require.Equal(t, 3, summary.Fetched)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.SkippedInvalid)
	require.Equal(t, 3, summary.Inserted)

	barcodes := make(map[int32]int)
	for _, in := range units.inserted {
		barcodes[in.Barcode]++
	}
	require.Equal(t, map[int32]int{77: 1, 100: 2}, barcodes)
}

func TestRunReportsOverTargetWithoutDeleting(t *testing.T) {
	w := testWarehouse(1)
	remoteAPI := &fakeRemote{configured: true, pages: [][]remote.Good{{
		good(1001, "1001", w.ExternalConsumablesStorageID, 3),
	}}}
	units := &fakeStock{existing: map[int64]map[int32]int{1: {1001: 5}}}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, units, EngineConfig{})

	report, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.NoError(t, err)

	summary := report.Warehouses[0]
	require.Equal(t, 5, summary.Existing)
	require.Equal(t, 2, summary.OverTargetExisting)
	require.Zero(t, summary.ToInsert)
	require.Empty(t, units.inserted)
}

func TestRunSingleWarehouseSurfacesUpstreamFailure(t *testing.T) {
	w := testWarehouse(1)
	remoteAPI := &fakeRemote{
		configured: true,
		failCalls:  1,
		failWith:   &remote.RequestError{Status: 500, Body: "remote exploded"},
	}
	engine := newTestEngine(remoteAPI, &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: w}}, &fakeStock{}, EngineConfig{})

	_, err := engine.Run(context.Background(), RunInput{WarehouseID: 1})
	require.Error(t, err)
	var upstream *remote.RequestError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, 500, upstream.Status)
}

func TestRunIsolatesWarehouseFailures(t *testing.T) {
	a := testWarehouse(1)
	b := testWarehouse(2)
	remoteAPI := &fakeRemote{
		configured: true,
		failCalls:  1, // first warehouse's page fetch fails
		pages: [][]remote.Good{{
			good(1001, "1001", b.ExternalConsumablesStorageID, 2),
		}},
	}
	units := &fakeStock{}
	warehouses := &fakeWarehouses{byID: map[int64]warehouse.Warehouse{1: a, 2: b}}
	engine := newTestEngine(remoteAPI, warehouses, units, EngineConfig{})

	report, err := engine.Run(context.Background(), RunInput{})
	require.NoError(t, err)
	require.Len(t, report.Warehouses, 2)
	require.Equal(t, 2, report.Totals.Warehouses)
	require.Equal(t, 1, report.Totals.Failed)

	var failed, succeeded int
	for _, summary := range report.Warehouses {
		if summary.Error != "" {
			failed++
			require.Contains(t, summary.Error, "fetch goods page 1")
			require.Zero(t, summary.Inserted)
		} else {
			succeeded++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, succeeded)
}
