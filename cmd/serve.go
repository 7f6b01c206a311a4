package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huak95/mongkol-backend-rag/db"
	"github.com/huak95/mongkol-backend-rag/internal/api"
	"github.com/huak95/mongkol-backend-rag/internal/chat"
	"github.com/huak95/mongkol-backend-rag/internal/config"
	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/observability"
)

// runServe wires the full application and serves until SIGINT/SIGTERM.
func runServe() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting mongkol backend", "version", AppVersion, "addr", cfg.ServerAddr)

	provider, shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "mongkol-backend",
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}

	store := history.NewStore(pool, logger.With("component", "history"))
	models := gateway.New(gateway.Config{
		TyphoonBaseURL: cfg.TyphoonBaseURL,
		TyphoonAPIKey:  cfg.TyphoonAPIKey,
		GroqBaseURL:    cfg.GroqBaseURL,
		GroqAPIKey:     cfg.GroqAPIKey,
	}, logger.With("component", "gateway"))
	service := chat.NewService(store, models, logger.With("component", "chat"), provider.Tracer("chat"))

	server, err := api.NewServer(api.Config{
		Addr:    cfg.ServerAddr,
		Logger:  logger.With("component", "api"),
		Service: service,
		History: store,
		DB:      pool,
		Defaults: api.ChatDefaults{
			ModelID:          cfg.ModelID,
			Temperature:      cfg.Temperature,
			SeerName:         cfg.SeerName,
			SeerPersonality:  cfg.SeerPersonality,
			SummaryThreshold: cfg.SummaryThreshold,
		},
		CORSOrigins: cfg.CORSOrigins,
		RateBurst:   cfg.RateBurst,
		TrustProxy:  cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("building http server: %w", err)
	}

	return server.Run(ctx)
}
