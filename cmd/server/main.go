package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/atmx/settlement-analytics/internal/analytics"
	"github.com/atmx/settlement-analytics/internal/api"
	"github.com/atmx/settlement-analytics/internal/config"
	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			slog.Error("config load failed", "path", *configPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize settlement source ---
	var primary store.Source
	var cleanup []func()

	switch cfg.Source {
	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresSource(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("settlements schema setup failed", "err", err)
			os.Exit(1)
		}
		primary = pg
		slog.Info("reading settlements from PostgreSQL")

	case config.SourceKafka:
		ks, err := store.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
		if err != nil {
			slog.Error("kafka setup failed", "err", err)
			os.Exit(1)
		}
		slog.Info("waiting for kafka consumer", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		if err := ks.Start(ctx); err != nil {
			slog.Error("kafka consumer did not start", "err", err)
			ks.Close()
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { ks.Close() })
		primary = ks

	default:
		var fs *store.FileSource
		if cfg.SettlementLog != "" {
			fs = store.NewFileSource(cfg.SettlementLog)
		} else {
			fs = store.NewTradingDirSource(cfg.TradingDir)
		}
		primary = fs
		slog.Info("reading settlement log", "path", fs.Path())
	}

	// Wrap with Redis read-through cache if configured.
	src := primary
	var invalidator api.Invalidator
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		cached := store.NewCachedSource(primary, rdb, cfg.CacheTTL, cfg.Source)
		src, invalidator = cached, cached
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- WebSocket hub and settlement watcher ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)
	watcher := api.NewWatcher(primary, wsHub, cfg.WatchInterval, invalidator)
	go watcher.Run(ctx)

	// --- Analytics service ---
	engine := analytics.NewEngine(src)
	svc := api.NewService(engine)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"settlement-analytics"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket feed of newly settled trades; long-lived, so no timeout.
		r.Get("/ws/settlements", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			// Win/loss reliability.
			r.Get("/reliability/summary", svc.ReliabilitySummary)
			r.Get("/reliability/by-city", svc.ReliabilityByCity)
			r.Get("/reliability/streaks", svc.Streaks)

			// Realized P&L.
			r.Get("/pnl/by-city", svc.PnLByCity)

			// Cost and ROI.
			r.Get("/cost/summary", svc.CostSummary)
			r.Get("/cost/by-edge-bucket", svc.CostByEdgeBucket)

			// Edge calibration.
			r.Get("/edge/calibration", svc.EdgeCalibration)
			r.Get("/edge/confidence-calibration", svc.ConfidenceCalibration)
			r.Get("/edge/bias", svc.Bias)

			// Forecast provider health.
			r.Get("/providers/accuracy", svc.ProviderAccuracy)
			r.Get("/providers/staleness", svc.Staleness)
			r.Get("/providers/dropout", svc.Dropout)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("settlement-analytics listening", "port", cfg.Port, "source", cfg.Source)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down settlement-analytics...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("settlement-analytics stopped")
}
