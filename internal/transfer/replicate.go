package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocktrail/stocktrail/internal/remote"
)

// RemotePort exposes the remote inventory calls replication needs.
type RemotePort interface {
	PostDocument(ctx context.Context, input remote.DocumentInput) (remote.Document, error)
	PostOperation(ctx context.Context, documentID int64, input remote.OperationInput) error
}

// CostEntry is a caller-supplied aggregate total for one barcode. The per-unit
// cost replicated remotely is derived from these totals, not from the units'
// own acquisition costs.
type CostEntry struct {
	Barcode       int32
	TotalQuantity int
	TotalCost     float64
}

// ReplicationResult reports the replication side channel's outcome. Err is
// set on failure; documents and operations already created stay counted so
// operators can reconcile.
type ReplicationResult struct {
	Attempted  bool
	Documents  int
	Operations int
	Err        string
}

const remoteUnitType = "pcs"

type goodLine struct {
	barcode     int32
	quantity    int
	costPerUnit float64
	totalCost   float64
}

// replicate mirrors the confirmed movement to the remote system: a departure
// document at the source side and an arrival document at the destination side,
// each followed by per-good operations. Sides designated as the distribution
// center are skipped. Only received details are aggregated.
func (s *Service) replicate(ctx context.Context, t Transfer, received []Detail, costs []CostEntry) ReplicationResult {
	result := ReplicationResult{Attempted: true}
	lines, err := buildGoodLines(received, costs)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	source, err := s.warehouses.Get(ctx, t.SourceWarehouseID)
	if err != nil {
		result.Err = fmt.Sprintf("load source warehouse: %v", err)
		return result
	}
	destination, err := s.warehouses.Get(ctx, t.DestinationWarehouseID)
	if err != nil {
		result.Err = fmt.Sprintf("load destination warehouse: %v", err)
		return result
	}

	now := time.Now().UTC()
	type side struct {
		typeID    int
		storageID int64
		timezone  string
		skip      bool
		eligible  bool
		label     string
	}
	order := []side{
		{
			typeID:    remote.DocumentTypeDeparture,
			storageID: source.ExternalConsumablesStorageID,
			timezone:  source.Timezone,
			skip:      source.IsDistributionCenter,
			eligible:  source.RemoteEligible(),
			label:     "departure",
		},
		{
			typeID:    remote.DocumentTypeArrival,
			storageID: destination.ExternalConsumablesStorageID,
			timezone:  destination.Timezone,
			skip:      destination.IsDistributionCenter,
			eligible:  destination.RemoteEligible(),
			label:     "arrival",
		},
	}
	for _, sd := range order {
		if sd.skip {
			continue
		}
		if !sd.eligible {
			result.Err = fmt.Sprintf("%s warehouse is not mapped for remote operations", sd.label)
			return result
		}
		doc, err := s.remote.PostDocument(ctx, remote.DocumentInput{
			TypeID:     sd.typeID,
			Comment:    fmt.Sprintf("transfer %s %s", t.Number, sd.label),
			StorageID:  sd.storageID,
			CreateDate: now,
			Timezone:   sd.timezone,
		})
		if err != nil {
			result.Err = fmt.Sprintf("post %s document: %v", sd.label, err)
			return result
		}
		result.Documents++
		for _, line := range lines {
			err := s.remote.PostOperation(ctx, doc.ID, remote.OperationInput{
				GoodID:      int64(line.barcode),
				Amount:      float64(line.quantity),
				CostPerUnit: line.costPerUnit,
				Cost:        line.totalCost,
				UnitType:    remoteUnitType,
			})
			if err != nil {
				result.Err = fmt.Sprintf("post %s operation for good %d: %v", sd.label, line.barcode, err)
				return result
			}
			result.Operations++
		}
	}
	return result
}

// buildGoodLines aggregates received detail quantities per barcode and joins
// them with the caller-supplied cost totals.
func buildGoodLines(received []Detail, costs []CostEntry) ([]goodLine, error) {
	if len(received) == 0 {
		return nil, fmt.Errorf("no received items to replicate")
	}
	quantities := make(map[int32]int)
	order := make([]int32, 0)
	for _, d := range received {
		if d.UnitBarcode <= 0 {
			return nil, fmt.Errorf("unit %d has no valid barcode", d.ProductStockUnitID)
		}
		if _, seen := quantities[d.UnitBarcode]; !seen {
			order = append(order, d.UnitBarcode)
		}
		quantities[d.UnitBarcode] += d.QuantityTransferred
	}
	costIndex := make(map[int32]CostEntry, len(costs))
	for _, c := range costs {
		costIndex[c.Barcode] = c
	}
	lines := make([]goodLine, 0, len(order))
	for _, barcode := range order {
		cost, ok := costIndex[barcode]
		if !ok || cost.TotalQuantity <= 0 {
			return nil, fmt.Errorf("no cost entry for barcode %d", barcode)
		}
		qty := quantities[barcode]
		perUnit := decimal.NewFromFloat(cost.TotalCost).
			Div(decimal.NewFromInt(int64(cost.TotalQuantity))).
			Round(4)
		total := perUnit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		lines = append(lines, goodLine{
			barcode:     barcode,
			quantity:    qty,
			costPerUnit: perUnit.InexactFloat64(),
			totalCost:   total.InexactFloat64(),
		})
	}
	return lines, nil
}
