// Package config loads the terminal's configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/boddenberg/atm-terminal-go/internal/domain"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Terminal
	Location         string        `envconfig:"ATM_LOCATION" default:"Jaipur, Rajasthan"`
	Inventory        string        `envconfig:"ATM_INVENTORY" default:"100:500,200:300,500:200"`
	DailyLimit       int64         `envconfig:"ATM_DAILY_LIMIT" default:"20000"`
	TransactionLimit int64         `envconfig:"ATM_TRANSACTION_LIMIT" default:"10000"`
	ProcessingDelay  time.Duration `envconfig:"ATM_PROCESSING_DELAY" default:"1s"`

	// Sessions & credentials
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"15m"`
	PinHashCost  int           `envconfig:"PIN_HASH_COST" default:"12"`
	JWTSecret    string        `envconfig:"JWT_SECRET" default:"atm-default-dev-secret-change-me"`
	DemoAccounts bool          `envconfig:"DEMO_ACCOUNTS" default:"true"`

	// Notifications
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL"`
	NotifyQueueSize  int    `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
	NotifyWorkers    int    `envconfig:"NOTIFY_WORKERS" default:"2"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Supabase
	UseSupabase        bool   `envconfig:"USE_SUPABASE" default:"false"`
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.DailyLimit <= 0 || cfg.TransactionLimit <= 0 {
		return nil, fmt.Errorf("ATM_DAILY_LIMIT and ATM_TRANSACTION_LIMIT must be positive")
	}
	if cfg.ProcessingDelay < 0 {
		return nil, fmt.Errorf("ATM_PROCESSING_DELAY cannot be negative")
	}
	if _, err := domain.ParseInventory(cfg.Inventory); err != nil {
		return nil, fmt.Errorf("ATM_INVENTORY: %w", err)
	}
	return &cfg, nil
}

// Terminal builds the startup terminal configuration.
func (c *Config) Terminal() (domain.TerminalConfig, error) {
	inv, err := domain.ParseInventory(c.Inventory)
	if err != nil {
		return domain.TerminalConfig{}, fmt.Errorf("ATM_INVENTORY: %w", err)
	}
	return domain.TerminalConfig{
		Location:            c.Location,
		Inventory:           inv,
		DailyLimit:          c.DailyLimit,
		PerTransactionLimit: c.TransactionLimit,
	}, nil
}
