package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "SIGNMAKER"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	Store       string `envconfig:"STORE" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"signmaker.db"`

	ProviderAPIKey  string `envconfig:"PROVIDER_API_KEY"`
	ProviderBaseURL string `envconfig:"PROVIDER_BASE_URL" default:"https://ai.gateway.lovable.dev/v1"`
	ProviderModel   string `envconfig:"PROVIDER_MODEL" default:"google/gemini-3-flash-preview"`

	// Optional YAML file overriding the built-in prompt templates
	PromptsFile string `envconfig:"PROMPTS_FILE"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"2"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
	CORSOrigin     string  `envconfig:"CORS_ORIGIN" default:"*"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	TokenSweepInterval time.Duration `envconfig:"TOKEN_SWEEP_INTERVAL" default:"1h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("SIGNMAKER_DATABASE_URL is required when SIGNMAKER_STORE=postgres")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SIGNMAKER_SQLITE_PATH is required when SIGNMAKER_STORE=sqlite")
		}
	default:
		return fmt.Errorf("invalid SIGNMAKER_STORE %q: must be %s or %s", c.Store, StorePostgres, StoreSQLite)
	}

	if c.RateLimitRPS < 0 {
		return errors.New("SIGNMAKER_RATE_LIMIT_RPS must not be negative")
	}
	if c.TokenSweepInterval < 0 {
		return errors.New("SIGNMAKER_TOKEN_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) HasProvider() bool {
	return c.ProviderAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
