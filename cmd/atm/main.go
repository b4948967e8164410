package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/config"
	"github.com/boddenberg/atm-terminal-go/internal/handler"
	"github.com/boddenberg/atm-terminal-go/internal/infra/cache"
	"github.com/boddenberg/atm-terminal-go/internal/infra/client"
	"github.com/boddenberg/atm-terminal-go/internal/infra/memstore"
	"github.com/boddenberg/atm-terminal-go/internal/infra/observability"
	"github.com/boddenberg/atm-terminal-go/internal/infra/resilience"
	"github.com/boddenberg/atm-terminal-go/internal/infra/supabase"
	"github.com/boddenberg/atm-terminal-go/internal/port"
	"github.com/boddenberg/atm-terminal-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	terminal, err := cfg.Terminal()
	if err != nil {
		logger.Fatal("invalid terminal configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("location", terminal.Location),
		zap.Int64("cash_value", terminal.Inventory.Value()),
		zap.Int64("daily_limit", terminal.DailyLimit),
		zap.Int64("transaction_limit", terminal.PerTransactionLimit),
		zap.Duration("processing_delay", cfg.ProcessingDelay),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "atm-terminal")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	clock := service.SystemClock{}
	hasher := service.NewBcryptHasher(cfg.PinHashCost)

	// --- Stores ---
	var accounts port.CredentialStore
	var history port.LedgerStore

	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewGuard("supabase", resilienceCfg, logger),
			logger,
		)
		accounts, history = sb, sb
	} else {
		logger.Info("using in-memory data backend")
		store := memstore.New()
		if cfg.DemoAccounts {
			n, err := memstore.Seed(context.Background(), store, hasher, memstore.DemoAccounts(), clock.Now())
			if err != nil {
				logger.Fatal("failed to seed demo accounts", zap.Error(err))
			}
			logger.Info("demo accounts seeded", zap.Int("count", n))
		}
		accounts, history = store, store
	}

	// --- Notifications ---
	var sink port.NotificationSink
	if cfg.NotifyWebhookURL != "" {
		logger.Info("sms notifications via webhook", zap.String("url", cfg.NotifyWebhookURL))
		sink = client.NewSMSClient(httpClient, cfg.NotifyWebhookURL, accounts, resilience.NewGuard("sms-webhook", resilienceCfg, logger))
	} else {
		logger.Info("sms notifications written to log")
		sink = service.NewLogSink(accounts, logger)
	}
	dispatcher := service.NewDispatcher(sink, cfg.NotifyQueueSize, cfg.NotifyWorkers, cfg.HTTPTimeout, metrics, logger)
	dispatcher.Start(context.Background())

	// --- Services ---
	engine := service.NewEngine(terminal, cfg.ProcessingDelay, clock, dispatcher, metrics)

	sessions := cache.New[*service.Session](cfg.SessionTTL,
		cache.WithEvictHook(func(accountID string, sess *service.Session) {
			logger.Info("session expired", zap.String("account_id", accountID), zap.String("session_id", sess.ID()))
			sess.Close(context.Background())
		}),
	)

	terminalSvc := service.NewTerminalService(
		engine,
		accounts,
		history,
		hasher,
		clock,
		sessions,
		cfg.JWTSecret,
		cfg.SessionTTL,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(terminalSvc, metrics, logger)

	// --- Server ---
	// WriteTimeout covers the processing delay on PIN submission.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30*time.Second + cfg.ProcessingDelay,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	sessions.Close()
	if err := dispatcher.Close(); err != nil {
		logger.Error("notification dispatcher", zap.Error(err))
	}

	logger.Info("server stopped")
}
