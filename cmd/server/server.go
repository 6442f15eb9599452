package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Simplici0/dealplanner/internal/catalog"
	"github.com/Simplici0/dealplanner/internal/obs"
	"github.com/Simplici0/dealplanner/internal/planner"
	"github.com/Simplici0/dealplanner/internal/store"
)

type draftStore interface {
	Clear(ctx context.Context) error
}

type server struct {
	planner  *planner.Planner
	store    *store.Store
	drafts   draftStore
	catalog  *catalog.Index
	log      zerolog.Logger
	validate *validator.Validate
}

type routerConfig struct {
	AllowedOrigins []string
	Registry       *prometheus.Registry
}

func (s *server) routes(cfg routerConfig) http.Handler {
	if s.validate == nil {
		s.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if s.catalog == nil {
		s.catalog = catalog.NewIndex(nil, nil)
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: s.log}.Middleware)
	if cfg.Registry != nil {
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(metricsNamespace, cfg.Registry)}.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/customer", s.handleGetCustomer)
		api.Patch("/customer", s.handlePatchCustomer)
		api.Delete("/customer", s.handleResetCustomer)

		api.Get("/bundles", s.handleListBundles)
		api.Post("/bundles", s.handleCreateBundle)
		api.Route("/bundles/{id}", func(b chi.Router) {
			b.Get("/", s.handleGetBundle)
			b.Delete("/", s.handleDeleteBundle)
			b.Get("/totals", s.handleBundleTotals)
			b.Patch("/{group}", s.handlePatchBundle)
		})
		api.Get("/totals", s.handleTotals)

		api.Get("/snapshot", s.handleGetSnapshot)
		api.Put("/snapshot", s.handlePutSnapshot)
		api.Delete("/draft", s.handleClearDraft)

		api.Get("/deals", s.handleListDeals)
		api.Post("/deals", s.handleSaveDeal)
		api.Get("/deals/{id}", s.handleGetDeal)
		api.Delete("/deals/{id}", s.handleDeleteDeal)
		api.Post("/deals/{id}/load", s.handleLoadDeal)

		api.Get("/catalog/programs", s.handleCatalogPrograms)
		api.Get("/catalog/rams", s.handleCatalogRAMs)
		api.Get("/catalog/roms", s.handleCatalogROMs)
		api.Get("/catalog/customers", s.handleCatalogCustomers)

		api.Get("/export.xlsx", s.handleExport)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check")
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
