package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cranefleet/cranefleet/internal/auth"
	"github.com/cranefleet/cranefleet/internal/ledger"
	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/monitoring"
	"github.com/cranefleet/cranefleet/internal/movements"
	"github.com/cranefleet/cranefleet/internal/notifier"
	"github.com/cranefleet/cranefleet/internal/observability"
	"github.com/cranefleet/cranefleet/internal/refs"
	"github.com/cranefleet/cranefleet/internal/reports"
	"github.com/cranefleet/cranefleet/internal/stock"
	"github.com/cranefleet/cranefleet/internal/terminalops"
	"github.com/cranefleet/cranefleet/internal/vendista"
	"github.com/cranefleet/cranefleet/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService *auth.Service

	AuthHandler        *auth.Handler
	MasterDataHandler  *masterdata.Handler
	RefsHandler        *refs.Handler
	LedgerHandler      *ledger.Handler
	StockHandler       *stock.Handler
	MovementsHandler   *movements.Handler
	TerminalOpsHandler *terminalops.Handler
	VendistaHandler    *vendista.Handler
	MonitoringHandler  *monitoring.Handler
	ReportsHandler     *reports.Handler
	NotifierHandler    *notifier.Handler
	JobsHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthService != nil {
			r.Use(auth.Middleware(params.AuthService))
		}
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.RefsHandler != nil {
			r.Route("/refs", params.RefsHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.MovementsHandler != nil {
			r.Route("/inventory-movements", params.MovementsHandler.MountRoutes)
		}
		r.Route("/terminal-operations", func(r chi.Router) {
			if params.TerminalOpsHandler != nil {
				params.TerminalOpsHandler.MountRoutes(r)
			}
			if params.VendistaHandler != nil {
				params.VendistaHandler.MountRoutes(r)
			}
		})
		if params.MonitoringHandler != nil {
			r.Route("/monitoring", params.MonitoringHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.NotifierHandler != nil {
			r.Route("/notifications", params.NotifierHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
