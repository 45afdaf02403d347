// Package main is the entry point for the tripfeed ingestion job.
// It waits for the incoming CSV export, validates it, loads it into Postgres
// and archives it, once or on a fixed schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/tripfeed/internal/archive"
	"github.com/pkordes/tripfeed/internal/cache"
	"github.com/pkordes/tripfeed/internal/config"
	"github.com/pkordes/tripfeed/internal/ingest"
	"github.com/pkordes/tripfeed/internal/metrics"
	"github.com/pkordes/tripfeed/internal/repo"
	"github.com/pkordes/tripfeed/internal/validation"
	"github.com/pkordes/tripfeed/migrations"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	preview := flag.Bool("preview", false, "print the first rows of a valid file to stdout")
	flag.Parse()

	// --- Config -----------------------------------------------------------
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Ingest.AutoMigrate || *migrateOnly {
		if err := migrate(ctx, pool); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		if *migrateOnly {
			return
		}
	}

	// --- Metrics ----------------------------------------------------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ingestMetrics := metrics.NewIngest(reg)
	if cfg.Ingest.MetricsPort != "" {
		metricsSrv := serveMetrics(cfg.Ingest.MetricsPort, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// --- Driver -----------------------------------------------------------
	vopts := []validation.Option{
		validation.WithLocation(cfg.Ingest.Location),
		validation.WithLogger(logger),
	}
	if *preview {
		vopts = append(vopts, validation.WithPreviewWriter(os.Stdout))
	}

	dopts := []ingest.DriverOption{
		ingest.WithRunRecorder(repo.NewIngestRunRepo(pool)),
		ingest.WithMetrics(ingestMetrics),
		ingest.WithDriverLogger(logger),
	}
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			// Stale stats expire on their own; a missing cache is not fatal here.
			slog.Warn("redis unavailable, stats cache will not be invalidated", "error", err)
		} else {
			defer client.Close()
			dopts = append(dopts, ingest.WithStatsInvalidator(cache.NewStatsCache(client, cfg.StatsCacheTTL)))
		}
	}

	driver := ingest.NewDriver(
		ingest.DriverConfig{
			IncomingPath: cfg.Ingest.IncomingPath,
			PollInterval: cfg.Ingest.PollInterval,
			WaitTimeout:  cfg.Ingest.WaitTimeout,
			Retries:      cfg.Ingest.Retries,
			RetryDelay:   cfg.Ingest.RetryDelay,
		},
		validation.New(vopts...),
		ingest.NewLoader(pool,
			ingest.WithPageSize(cfg.Ingest.PageSize),
			ingest.WithLoadLogger(logger),
		),
		archive.New(cfg.Ingest.HistoryDir, cfg.Ingest.RejectedDir),
		dopts...,
	)

	if cfg.Ingest.Schedule == 0 {
		if err := runOnce(ctx, driver); err != nil {
			os.Exit(1)
		}
		return
	}

	slog.Info("ingest scheduler started", "every", cfg.Ingest.Schedule)
	ticker := time.NewTicker(cfg.Ingest.Schedule)
	defer ticker.Stop()
	for {
		_ = runOnce(ctx, driver)
		select {
		case <-ctx.Done():
			slog.Info("ingest scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// runOnce executes one run and logs its outcome. A missing input file is
// reported but not treated as a failure.
func runOnce(ctx context.Context, d *ingest.Driver) error {
	report, err := d.Run(ctx)
	switch {
	case err == nil:
		slog.Info("run finished", "run_id", report.Run.ID, "inserted", report.Run.Inserted, "skipped", report.Run.Skipped)
		return nil
	case errors.Is(err, ingest.ErrNoInput):
		slog.Info("nothing to ingest", "error", err)
		return nil
	default:
		slog.Error("run failed", "run_id", report.Run.ID, "error", err)
		return err
	}
}

// migrate applies the embedded goose migrations through a database/sql handle
// borrowed from the pool's config.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

func serveMetrics(port string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
