package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stocktrail/stocktrail/internal/shared"
	"github.com/stocktrail/stocktrail/internal/shrinkage"
	syncpkg "github.com/stocktrail/stocktrail/internal/sync"
	"github.com/stocktrail/stocktrail/internal/transfer"
	"github.com/stocktrail/stocktrail/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	TransferHandler  *transfer.Handler
	SyncHandler      *syncpkg.Handler
	ShrinkageHandler *shrinkage.Handler
	JobHandler       *jobs.Handler
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.TransferHandler != nil {
			params.TransferHandler.MountRoutes(api)
		}
		if params.SyncHandler != nil {
			params.SyncHandler.MountRoutes(api)
		}
		if params.ShrinkageHandler != nil {
			params.ShrinkageHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
	})
	return r
}
