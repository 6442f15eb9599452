package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Simplici0/dealplanner/internal/config"
	"github.com/Simplici0/dealplanner/internal/db"
	"github.com/Simplici0/dealplanner/internal/draft"
	"github.com/Simplici0/dealplanner/internal/events"
	"github.com/Simplici0/dealplanner/internal/migrations"
	"github.com/Simplici0/dealplanner/internal/obs"
	"github.com/Simplici0/dealplanner/internal/planner"
	"github.com/Simplici0/dealplanner/internal/seed"
	"github.com/Simplici0/dealplanner/internal/store"
)

const metricsNamespace = "dealplanner"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
	for _, w := range cfg.Warnings {
		logger.Warn().Msg(w)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			logger.Fatal().Err(err).Msg("run database migrations")
		}
	}

	stats, err := seed.Run(database, seed.Config{CatalogPath: cfg.CatalogPath, CustomersPath: cfg.CustomersPath})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed datasets")
	}
	logger.Info().Int("inserts", stats.Inserts).Int("updates", stats.Updates).Msg("datasets seeded")

	deals := store.New(database)
	index, err := deals.CatalogIndex(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := events.NewBus(logger)
	bus.Subscribe("", func(ev events.Event) {
		logger.Debug().
			Str("kind", string(ev.Kind)).
			Str("bundle_id", ev.BundleID).
			Str("group", ev.Group).
			Str("stage", ev.Stage).
			Msg("planner event")
	})

	p := planner.New(planner.Options{
		Logger:   logger.With().Str("component", "planner").Logger(),
		Bus:      bus,
		Recorder: obs.NewPlannerMetrics(metricsNamespace, registry),
	})

	var drafts *draft.Store
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient := redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		drafts = draft.New(redisClient, cfg.DraftKey, cfg.DraftTTL, logger)
		restoreDraft(logger, p, drafts)
		p.SetPersister(drafts)
	}

	srv := &server{
		planner: p,
		store:   deals,
		catalog: index,
		log:     logger,
	}
	if drafts != nil {
		srv.drafts = drafts
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.routes(routerConfig{AllowedOrigins: cfg.CORSAllowedOrigins, Registry: registry}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", httpServer.Addr).Msg("server starting")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// restoreDraft loads the working draft into p. A missing or unreadable draft
// leaves p empty.
func restoreDraft(logger zerolog.Logger, p *planner.Planner, drafts *draft.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := drafts.Load(ctx)
	switch {
	case errors.Is(err, draft.ErrNoDraft):
		return
	case err != nil:
		logger.Warn().Err(err).Msg("restore draft")
		return
	}
	p.Restore(snap)
}
