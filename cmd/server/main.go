package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/evalassign/api"
	dbfs "github.com/garnizeh/evalassign/db"
	"github.com/garnizeh/evalassign/internal/config"
	"github.com/garnizeh/evalassign/internal/counter"
	"github.com/garnizeh/evalassign/internal/db"
	"github.com/garnizeh/evalassign/internal/jobs"
	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/internal/metrics"
	"github.com/garnizeh/evalassign/internal/repository/sqlite"
	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/garnizeh/evalassign/pkg/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	webhook.SetLogger(logger)

	logger.Info("starting evalassign", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, conn, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
	}

	repo := sqlite.New(conn, logger)

	ids, closeCounter, err := openCounter(ctx, cfg, repo, logger)
	if err != nil {
		log.Fatalf("Failed to open counter: %v", err)
	}
	defer closeCounter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheus(reg, "")

	engine, err := matching.NewEngine(repo, repo, repo, ids, matching.Config{
		IDPrefix:              cfg.Matching.IDPrefix,
		IDWidth:               cfg.Matching.IDWidth,
		EnforceMaxAssignments: cfg.Matching.EnforceMaxAssignments,
		AutoMatchConcurrency:  cfg.Matching.AutoMatchConcurrency,
	}, matching.WithLogger(logger), matching.WithMetrics(collector))
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	var notifier jobs.Notifier
	if cfg.Notify.URL != "" {
		hook, err := webhook.NewDefaultClient(cfg.Notify)
		if err != nil {
			log.Fatalf("Failed to build notify webhook: %v", err)
		}
		defer hook.Close()
		notifier = hook
		logger.Info("notifications enabled", slog.String("url", cfg.Notify.URL))
	}

	var queue api.Enqueuer
	if cfg.Jobs.Workers > 0 {
		pool := jobs.NewWorkerPool(repo, jobs.Handlers(engine, repo, notifier, logger), logger, cfg.Jobs.Workers)
		pool.SetObserver(collector.JobFinished)
		pool.Start(ctx)
		defer pool.Stop()
		queue = pool
	}

	handler := api.SetupRoutes(api.Deps{
		Engine:         engine,
		Evaluators:     repo,
		Establishments: repo,
		Admins:         repo,
		Counter:        ids,
		Queue:          queue,
		Metrics:        collector,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DB:             conn.GetConn(),
		JWTSecret:      cfg.JWTSecret,
		TokenDuration:  cfg.TokenDuration,
		JobMaxAttempts: cfg.Jobs.MaxAttempts,
		Version:        version,
		BuildTime:      buildTime,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("err", err))
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}

	logger.Info("server exited")
}

// openCounter returns the ID counter for the configured backend. The redis
// backend is seeded from the sqlite counters so switching never reissues IDs.
func openCounter(ctx context.Context, cfg *config.Config, repo *sqlite.SQLiteRepo, logger *slog.Logger) (repository.Counter, func(), error) {
	if cfg.Counter.Backend != config.CounterRedis {
		return repo, func() {}, nil
	}

	client, err := counter.Connect(ctx, cfg.Counter.RedisAddr, cfg.Counter.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	rc := counter.NewRedis(client, cfg.Counter.KeyPrefix, logger)

	current := map[string]int64{}
	for _, name := range []string{matching.CounterAssignments, matching.CounterEvaluators, matching.CounterEstablishments} {
		v, err := repo.Current(ctx, name)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		current[name] = v
	}
	if err := rc.Seed(ctx, current); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info("using redis counter", slog.String("addr", cfg.Counter.RedisAddr))
	return rc, func() { _ = client.Close() }, nil
}
