// Package jobs wires background tasks onto the Asynq queue.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stocktrail/stocktrail/internal/sync"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventorySync reconciles local unit counts against the remote system.
	TaskInventorySync = "sync:inventory"
)

// InventorySyncPayload selects what a scheduled sync run covers. A zero
// WarehouseID syncs every eligible warehouse.
type InventorySyncPayload struct {
	WarehouseID int64 `json:"warehouse_id"`
	DryRun      bool  `json:"dry_run"`
}

// NewInventorySyncTask constructs an Asynq task.
func NewInventorySyncTask(payload InventorySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventorySync, data), nil
}

// NewInventorySyncHandler returns the handler processing TaskInventorySync.
func NewInventorySyncHandler(engine *sync.Engine, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InventorySyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		report, err := engine.Run(ctx, sync.RunInput{
			WarehouseID: payload.WarehouseID,
			DryRun:      payload.DryRun,
		})
		if err != nil {
			logger.Error("scheduled inventory sync failed", slog.Any("error", err))
			return err
		}
		logger.Info("scheduled inventory sync finished",
			slog.Int("warehouses", report.Totals.Warehouses),
			slog.Int("failed", report.Totals.Failed),
			slog.Int("inserted", report.Totals.Inserted),
			slog.Bool("dry_run", report.Meta.DryRun))
		return nil
	}
}
