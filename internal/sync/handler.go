package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/stocktrail/stocktrail/internal/platform/httpx"
	"github.com/stocktrail/stocktrail/internal/remote"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// EnqueuePort submits a deferred sync run to the job queue.
type EnqueuePort interface {
	EnqueueInventorySync(ctx context.Context, warehouseID int64, dryRun bool) (string, error)
}

// Handler wires HTTP endpoints for sync runs.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	enqueuer EnqueuePort
	group    singleflight.Group
}

// NewHandler constructs the handler. enqueuer may be nil when no job queue is
// wired; the enqueue endpoint then reports the queue unavailable.
func NewHandler(logger *slog.Logger, engine *Engine, enqueuer EnqueuePort) *Handler {
	return &Handler{logger: logger, engine: engine, enqueuer: enqueuer}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync/run", h.handleRun)
	r.Post("/sync/enqueue", h.handleEnqueue)
}

type runRequest struct {
	WarehouseID int64 `json:"warehouseId"`
	DryRun      bool  `json:"dryRun"`
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*shared.Identity, *runRequest) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, nil
	}
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return nil, nil
	}
	if !identity.IsAdmin() {
		if req.WarehouseID == 0 || req.WarehouseID != identity.HomeWarehouseID {
			httpx.RespondError(w, httpx.ErrForbidden)
			return nil, nil
		}
	}
	return identity, &req
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	identity, req := h.authorize(w, r)
	if req == nil {
		return
	}

	// Concurrent run requests for the same scope collapse into one execution.
	// The run is detached from the request context so a collapsed caller's
	// disconnect cannot abort the execution other callers are waiting on.
	runCtx := context.WithoutCancel(r.Context())
	key := fmt.Sprintf("run:%d:%t", req.WarehouseID, req.DryRun)
	result, err, _ := h.group.Do(key, func() (any, error) {
		return h.engine.Run(runCtx, RunInput{
			WarehouseID: req.WarehouseID,
			DryRun:      req.DryRun,
			ActorID:     identity.UserID,
		})
	})
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	identity, req := h.authorize(w, r)
	if req == nil {
		return
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "no job queue configured")
		return
	}
	taskID, err := h.enqueuer.EnqueueInventorySync(r.Context(), req.WarehouseID, req.DryRun)
	if err != nil {
		h.logger.Error("enqueue sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue sync run")
		return
	}
	h.logger.Info("sync run enqueued",
		slog.String("task_id", taskID),
		slog.Int64("warehouse_id", req.WarehouseID),
		slog.Int64("actor_id", identity.UserID))
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) respondRunError(w http.ResponseWriter, err error) {
	var upstream *remote.RequestError
	switch {
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrNoEligibleWarehouses):
		httpx.Problem(w, http.StatusBadRequest, "Sync Not Runnable", err.Error())
	case errors.Is(err, ErrWarehouseNotFound), errors.Is(err, ErrWarehouseInactive):
		httpx.Problem(w, http.StatusNotFound, "Warehouse Unavailable", err.Error())
	case errors.As(err, &upstream):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUpstream, err))
	default:
		h.logger.Error("sync run failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
