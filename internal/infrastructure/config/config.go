package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Agents       AgentsConfig
	Marketplaces MarketplacesConfig
	PriceSearch  PriceSearchConfig
	LLM          LLMConfig
	Notify       NotifyConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// AgentsConfig holds agent engine configuration
type AgentsConfig struct {
	// TickInterval is how often due store agents are evaluated
	TickInterval time.Duration
	// SweepInterval is how often abandoned runs are reconciled
	SweepInterval time.Duration
	// DispatchInterval is how often executable actions are drained through
	// the executor
	DispatchInterval time.Duration
	// DispatchBatchSize bounds how many actions one dispatch pass drains
	DispatchBatchSize int
	// RunTimeout bounds one agent run
	RunTimeout time.Duration
	// ActionTimeout bounds one action execution
	ActionTimeout time.Duration
	// StaleRunHorizon is how old a running run must be before the sweep
	// declares it abandoned
	StaleRunHorizon time.Duration
	// MaxConcurrentRuns bounds the scheduling worker pool
	MaxConcurrentRuns int
	// LockTTL is the single-flight lock duration per (store, agent) pair
	LockTTL time.Duration
}

// MarketplaceCredentials holds default credentials for one platform
type MarketplaceCredentials struct {
	Enabled bool
	// Token is the OAuth/access token
	Token string
	// ShopDomain applies to Shopify only
	ShopDomain string
	// Sandbox selects the sandbox endpoint where the platform has one
	Sandbox bool
}

// MarketplacesConfig holds per-platform connector settings
type MarketplacesConfig struct {
	Ebay    MarketplaceCredentials
	Shopify MarketplaceCredentials
}

// PriceSearchConfig holds market price search settings
type PriceSearchConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// LLMConfig holds generative summary settings
type LLMConfig struct {
	Enabled        bool
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// NotifyConfig holds notification queue settings
type NotifyConfig struct {
	// QueueKey is the Redis list delivery workers consume from
	QueueKey string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// defaults maps every known config key to its built-in value. Keys with
// no safe default (passwords, tokens, CORS origins) are absent.
var defaults = map[string]any{
	"app.name": "storeops-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.dbname":             "storeops",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host": "localhost",
	"redis.port": 6379,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       int64(4 << 20),
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	// cors_allow_origins has no default on purpose: an empty list allows
	// no cross-origin requests until explicitly configured.
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"},

	"agents.tick_interval":       time.Minute,
	"agents.sweep_interval":      10 * time.Minute,
	"agents.dispatch_interval":   30 * time.Second,
	"agents.dispatch_batch_size": 50,
	"agents.run_timeout":         5 * time.Minute,
	"agents.action_timeout":      30 * time.Second,
	"agents.stale_run_horizon":   30 * time.Minute,
	"agents.max_concurrent_runs": 4,
	"agents.lock_ttl":            10 * time.Minute,

	"pricesearch.timeout_seconds": 15,

	"llm.model":           "gpt-4o-mini",
	"llm.timeout_seconds": 30,

	"notify.queue_key": "notifications:outbound",

	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "storeops-backend",
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOREOPS_ prefix (e.g., STOREOPS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Agents: AgentsConfig{
			TickInterval:      v.GetDuration("agents.tick_interval"),
			SweepInterval:     v.GetDuration("agents.sweep_interval"),
			DispatchInterval:  v.GetDuration("agents.dispatch_interval"),
			DispatchBatchSize: v.GetInt("agents.dispatch_batch_size"),
			RunTimeout:        v.GetDuration("agents.run_timeout"),
			ActionTimeout:     v.GetDuration("agents.action_timeout"),
			StaleRunHorizon:   v.GetDuration("agents.stale_run_horizon"),
			MaxConcurrentRuns: v.GetInt("agents.max_concurrent_runs"),
			LockTTL:           v.GetDuration("agents.lock_ttl"),
		},
		Marketplaces: MarketplacesConfig{
			Ebay: MarketplaceCredentials{
				Enabled: v.GetBool("marketplaces.ebay.enabled"),
				Token:   v.GetString("marketplaces.ebay.token"),
				Sandbox: v.GetBool("marketplaces.ebay.sandbox"),
			},
			Shopify: MarketplaceCredentials{
				Enabled:    v.GetBool("marketplaces.shopify.enabled"),
				Token:      v.GetString("marketplaces.shopify.token"),
				ShopDomain: v.GetString("marketplaces.shopify.shop_domain"),
			},
		},
		PriceSearch: PriceSearchConfig{
			BaseURL:        v.GetString("pricesearch.base_url"),
			APIKey:         v.GetString("pricesearch.api_key"),
			TimeoutSeconds: v.GetInt("pricesearch.timeout_seconds"),
		},
		LLM: LLMConfig{
			Enabled:        v.GetBool("llm.enabled"),
			APIKey:         v.GetString("llm.api_key"),
			Model:          v.GetString("llm.model"),
			BaseURL:        v.GetString("llm.base_url"),
			TimeoutSeconds: v.GetInt("llm.timeout_seconds"),
		},
		Notify: NotifyConfig{
			QueueKey: v.GetString("notify.queue_key"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations that would misbehave at runtime. The
// production checks exist so a hardened deploy fails fast instead of
// running with development-grade settings.
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return errors.New("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// The sweep must not reap runs that are merely slow.
	if c.Agents.StaleRunHorizon <= c.Agents.RunTimeout {
		return fmt.Errorf("agents.stale_run_horizon (%s) must exceed agents.run_timeout (%s)",
			c.Agents.StaleRunHorizon, c.Agents.RunTimeout)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env != "production" {
		return nil
	}

	switch {
	case c.Database.Password == "":
		return errors.New("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case c.Marketplaces.Ebay.Enabled && c.Marketplaces.Ebay.Sandbox:
		return errors.New("marketplaces.ebay.sandbox must be false in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return errors.New("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
