package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Catalog  CatalogConfig
	Redis    RedisConfig
	Sessions SessionsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Catalog.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PRODUCTFEED_APP_ENV" required:"true"`
	Port         string `envconfig:"PRODUCTFEED_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PRODUCTFEED_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PRODUCTFEED_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PRODUCTFEED_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"PRODUCTFEED_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"PRODUCTFEED_APP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CatalogConfig controls how sessions talk to the upstream products API.
type CatalogConfig struct {
	BaseURL      string        `envconfig:"PRODUCTFEED_CATALOG_BASE_URL" default:"https://dummyjson.com"`
	PageTimeout  time.Duration `envconfig:"PRODUCTFEED_CATALOG_PAGE_TIMEOUT" default:"10s"`
	FullTimeout  time.Duration `envconfig:"PRODUCTFEED_CATALOG_FULL_TIMEOUT" default:"15s"`
	MaxRetries   int           `envconfig:"PRODUCTFEED_CATALOG_MAX_RETRIES" default:"2"`
	RetryBackoff time.Duration `envconfig:"PRODUCTFEED_CATALOG_RETRY_BACKOFF" default:"1s"`

	// CheckAddr enables the connectivity check when set (host:port).
	CheckAddr    string        `envconfig:"PRODUCTFEED_CATALOG_CONNECTIVITY_ADDR"`
	CheckTimeout time.Duration `envconfig:"PRODUCTFEED_CATALOG_CONNECTIVITY_TIMEOUT" default:"2s"`
}

func (c CatalogConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvCatalogBaseURL)
	}
	if c.PageTimeout <= 0 || c.FullTimeout <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvCatalogPageTimeout, EnvCatalogFullTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", EnvCatalogMaxRetries)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PRODUCTFEED_REDIS_URL"`
	Address      string        `envconfig:"PRODUCTFEED_REDIS_ADDR"`
	Password     string        `envconfig:"PRODUCTFEED_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRODUCTFEED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRODUCTFEED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRODUCTFEED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRODUCTFEED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRODUCTFEED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRODUCTFEED_REDIS_WRITE_TIMEOUT" default:"5s"`
	SnapshotTTL  time.Duration `envconfig:"PRODUCTFEED_REDIS_SNAPSHOT_TTL" default:"5m"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type SessionsConfig struct {
	IdleTTL       time.Duration `envconfig:"PRODUCTFEED_SESSIONS_IDLE_TTL" default:"30m"`
	MaxSessions   int           `envconfig:"PRODUCTFEED_SESSIONS_MAX" default:"1000"`
	SweepInterval time.Duration `envconfig:"PRODUCTFEED_SESSIONS_SWEEP_INTERVAL" default:"1m"`

	// Per-IP session creation limit, enforced only when Redis is enabled.
	CreateLimit  int           `envconfig:"PRODUCTFEED_SESSIONS_CREATE_LIMIT" default:"30"`
	CreateWindow time.Duration `envconfig:"PRODUCTFEED_SESSIONS_CREATE_WINDOW" default:"1m"`
}
