package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"momcare/apps/backend/internal/aianalysis"
	"momcare/apps/backend/internal/assessment"
	"momcare/apps/backend/internal/config"
	"momcare/apps/backend/internal/db"
	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/observability"
	"momcare/apps/backend/internal/server"
)

const serviceName = "momcare-api"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "MomCare health risk assessment API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the assessment tables if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connect failed: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg := config.Load()
	logger := observability.NewLogger(serviceName, cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return cfg, logger, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

func runServer(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if !isLocalEnv(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observability.SetupMetrics(ctx, cfg.MetricsConfig(serviceName))
	if err != nil {
		return fmt.Errorf("metrics setup failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics shutdown failed")
		}
	}()
	logger.Info().Str("exporter", cfg.MetricsExporter).Msg("metrics configured")

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connect failed: %w", err)
	}
	defer pool.Close()

	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		return fmt.Errorf("database schema mismatch: %w", err)
	}

	var store assessment.Store = assessment.NewPGStore(pool)
	if redisURL := strings.TrimSpace(cfg.RedisURL); redisURL != "" {
		client, err := connectRedis(ctx, redisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store = assessment.NewCachedStore(store, assessment.NewRedisCache(client), cfg.CacheTTL(), logger)
		logger.Info().Dur("ttl", cfg.CacheTTL()).Msg("assessment cache enabled")
	}

	opts := assessment.Options{
		AITimeout:     cfg.AITimeout(),
		FallbackRetry: cfg.FallbackRetry(),
		Logger:        logger,
	}
	deps := server.Deps{Logger: logger}
	if cfg.AIActive() {
		client := aianalysis.NewOpenAIClient(cfg.AIClientConfig(), logger)
		opts.Analyzer = client
		deps.AI = client
		logger.Info().Str("model", cfg.OpenAIModel).Msg("AI analysis enabled")
	} else {
		logger.Warn().Msg("AI analysis disabled; assessments carry rule-based results only")
	}

	deps.Assessments = assessment.NewService(
		assessment.NewPGProfileReader(pool),
		assessment.NewPGPregnancyReader(pool),
		store,
		healthrisk.NewEvaluator(cfg.RiskPolicy()),
		opts,
	)

	app := server.New(cfg, deps)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("momcare api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})
	return g.Wait()
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func isLocalEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "local", "development", "dev":
		return true
	}
	return false
}
