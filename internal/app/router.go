package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-ops/meridian/internal/catalog"
	"github.com/meridian-ops/meridian/internal/hierarchy"
	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/observability"
	"github.com/meridian-ops/meridian/internal/party"
	"github.com/meridian-ops/meridian/internal/placement"
	"github.com/meridian-ops/meridian/internal/purchasing"
	"github.com/meridian-ops/meridian/internal/receiving"
	"github.com/meridian-ops/meridian/internal/shared"
	"github.com/meridian-ops/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Authorizer shared.Authorizer

	CatalogHandler    *catalog.Handler
	LedgerHandler     *ledger.Handler
	PlacementHandler  *placement.Handler
	HierarchyHandler  *hierarchy.Handler
	PartyHandler      *party.Handler
	PurchasingHandler *purchasing.Handler
	ReceivingHandler  *receiving.Handler
	JobsHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with the full API surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:     params.Logger,
		Config:     params.Config,
		Authorizer: params.Authorizer,
		Metrics:    params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(params.Logger, params.Authorizer))
		r.Use(limitHeavyWrites)

		params.CatalogHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.PlacementHandler.MountRoutes(r)
		params.HierarchyHandler.MountRoutes(r)
		params.PartyHandler.MountRoutes(r)
		params.PurchasingHandler.MountRoutes(r)
		params.ReceivingHandler.MountRoutes(r)

		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

// limitHeavyWrites applies the tighter write limit to grid creation and
// GRN completion, which fan out into thousands of rows per request.
func limitHeavyWrites(next http.Handler) http.Handler {
	limited := WriteLimiter()(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost &&
			(strings.HasSuffix(r.URL.Path, "/warehouses/grid") || strings.HasSuffix(r.URL.Path, "/complete")) {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
