package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultBaseURL       = "http://localhost:8080"
)

// Config holds every runtime setting. Values come from flags, then the environment
// (optionally seeded from a .env file), with the environment taking precedence.
type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS"`
	BaseURL       string `env:"BASE_URL"`
	DatabaseDSN   string `env:"DATABASE_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`

	AuthSecret string `env:"AUTH_SECRET"`

	AlgoliaAppID        string `env:"ALGOLIA_APP_ID"`
	AlgoliaAdminAPIKey  string `env:"ALGOLIA_ADMIN_API_KEY"`
	AlgoliaSearchAPIKey string `env:"ALGOLIA_SEARCH_API_KEY"`
	AlgoliaIndexName    string `env:"ALGOLIA_INDEX_NAME" envDefault:"short_links"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	RedirectTimeout  time.Duration `env:"REDIRECT_TIMEOUT" envDefault:"500ms"`
	RedirectCacheTTL time.Duration `env:"REDIRECT_CACHE_TTL" envDefault:"60s"`
	SearchKeyTTL     time.Duration `env:"SEARCH_KEY_TTL" envDefault:"1h"`

	MirrorWorkers   int `env:"MIRROR_WORKERS" envDefault:"3"`
	MirrorQueueSize int `env:"MIRROR_QUEUE_SIZE" envDefault:"1000"`
}

// SearchEnabled reports whether enough Algolia settings are present to mirror links.
func (c *Config) SearchEnabled() bool {
	return c.AlgoliaAppID != "" && c.AlgoliaAdminAPIKey != ""
}

func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:])
}

// Parse reads configuration from args and the environment and validates it for
// serving.
func Parse(args []string) (*Config, error) {
	cfg, err := Load(args)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration without validating it, for tools that need only a subset.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	fromEnv := *cfg

	flags := flag.NewFlagSet("shortlinks", flag.ContinueOnError)
	flags.StringVar(&cfg.ServerAddress, "a", defaultServerAddress, "Address of the server")
	flags.StringVar(&cfg.BaseURL, "b", defaultBaseURL, "Base URL for short URLs")
	flags.StringVar(&cfg.DatabaseDSN, "d", "", "Postgres connection string")
	flags.StringVar(&cfg.RedisAddr, "r", "", "Redis address for the redirect cache")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if fromEnv.ServerAddress != "" {
		cfg.ServerAddress = fromEnv.ServerAddress
	}
	if fromEnv.BaseURL != "" {
		cfg.BaseURL = fromEnv.BaseURL
	}
	if fromEnv.DatabaseDSN != "" {
		cfg.DatabaseDSN = fromEnv.DatabaseDSN
	}
	if fromEnv.RedisAddr != "" {
		cfg.RedisAddr = fromEnv.RedisAddr
	}

	cfg.applyDefaultValues()

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	if c.MirrorWorkers < 1 {
		return fmt.Errorf("mirror workers must be positive, got %d", c.MirrorWorkers)
	}
	return nil
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = defaultServerAddress
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
}
