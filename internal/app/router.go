package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreframe/coreframe/internal/catalog"
	transporthttp "github.com/coreframe/coreframe/internal/transport/http"
)

// RouterParams groups the dependencies NewRouter mounts. Authentication and
// session issuance are out of scope (spec §1); the acting principal is
// resolved once per request by PrincipalResolver and threaded through
// context from there.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Catalog           *catalog.Catalog
	PrincipalResolver transporthttp.PrincipalResolver
	ExposeMetrics     bool
}

// NewRouter constructs the chi.Router serving the entity pipeline's REST
// surface plus health and metrics endpoints.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.ExposeMetrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	resolver := params.PrincipalResolver
	if resolver == nil {
		resolver = transporthttp.HeaderPrincipalResolver{}
	}

	r.Group(func(r chi.Router) {
		r.Use(transporthttp.PrincipalMiddleware(resolver))
		if params.Catalog != nil {
			transporthttp.MountCatalog(r, params.Catalog)
		}
	})

	return r
}
