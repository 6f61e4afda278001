package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration. Values come from config.toml
// (working directory or /app), overridden by CNX_* environment variables,
// e.g. CNX_PAYMENT_BTCPAY_API_KEY for payment.btcpay.api_key.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Event     EventConfig     `mapstructure:"event"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Receipt   ReceiptConfig   `mapstructure:"receipt"`
	Swagger   SwaggerConfig   `mapstructure:"swagger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
	// SiteURL is the public base URL used for payment callbacks and redirects
	SiteURL string `mapstructure:"site_url"`
	// SecretKey seeds deterministic fallback addresses
	SecretKey string `mapstructure:"secret_key"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN renders a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port pair for the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret                 string        `mapstructure:"secret"`
	AccessTokenExpiration  time.Duration `mapstructure:"access_token_expiration"`
	RefreshTokenExpiration time.Duration `mapstructure:"refresh_token_expiration"`
	Issuer                 string        `mapstructure:"issuer"`
	RefreshSecret          string        `mapstructure:"refresh_secret"`
	MaxRefreshCount        int           `mapstructure:"max_refresh_count"`
}

// EventConfig tunes outbox delivery and handler deduplication
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

type HTTPConfig struct {
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes        int           `mapstructure:"max_header_bytes"`
	MaxBodySize           int64         `mapstructure:"max_body_size"`
	RateLimitEnabled      bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests     int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow       time.Duration `mapstructure:"rate_limit_window"`
	AuthRateLimitEnabled  bool          `mapstructure:"auth_rate_limit_enabled"`
	AuthRateLimitRequests int           `mapstructure:"auth_rate_limit_requests"`
	AuthRateLimitWindow   time.Duration `mapstructure:"auth_rate_limit_window"`
	// An empty origin list rejects cross-origin requests
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
}

// SchedulerConfig drives Monero polling, escrow auto-release and order expiry
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig points at an S3-compatible bucket for product images and
// receipts. The memory provider is for development only.
type StorageConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Provider          string        `mapstructure:"provider"`
	Endpoint          string        `mapstructure:"endpoint"`
	Region            string        `mapstructure:"region"`
	Bucket            string        `mapstructure:"bucket"`
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
}

type PaymentConfig struct {
	// UseMock replaces both gateways with an in-process mock (development only)
	UseMock          bool          `mapstructure:"use_mock"`
	PaymentWindow    time.Duration `mapstructure:"payment_window"`
	EscrowFeePercent float64       `mapstructure:"escrow_fee_percent"`
	AutoReleaseDays  int           `mapstructure:"auto_release_days"`
	DisputeWindow    time.Duration `mapstructure:"dispute_window"`
	BTCPay           BTCPayConfig  `mapstructure:"btcpay"`
	Monero           MoneroConfig  `mapstructure:"monero"`
}

// BTCPayConfig holds BTCPay Server Greenfield API settings
type BTCPayConfig struct {
	ServerURL     string `mapstructure:"server_url"`
	StoreID       string `mapstructure:"store_id"`
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// MoneroConfig holds monero-wallet-rpc settings
type MoneroConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	RPCUser      string `mapstructure:"rpc_user"`
	RPCPassword  string `mapstructure:"rpc_password"`
	AccountIndex uint32 `mapstructure:"account_index"`
	Network      string `mapstructure:"network"`
}

// ReceiptConfig controls PDF receipts rendered through headless Chrome
type ReceiptConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RemoteURL string        `mapstructure:"remote_url"` // empty launches a local browser
	NoSandbox bool          `mapstructure:"no_sandbox"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Locale    string        `mapstructure:"locale"` // BCP 47 tag for amounts
	Paper     string        `mapstructure:"paper"`  // RECEIPT_80MM or A4
}

type SwaggerConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	RequireAuth bool     `mapstructure:"require_auth"`
	AllowedIPs  []string `mapstructure:"allowed_ips"` // empty allows all
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	PyroscopeURL      string        `mapstructure:"pyroscope_url"`
}

// defaults lists every key. Keys must be known to viper for CNX_*
// overrides to reach Unmarshal, so secrets are listed with empty values.
var defaults = map[string]any{
	"app.name":       "cryptonexus",
	"app.env":        "development",
	"app.port":       "8080",
	"app.site_url":   "http://localhost:8080",
	"app.secret_key": "",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "cryptonexus",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":                   "",
	"jwt.refresh_secret":           "",
	"jwt.access_token_expiration":  time.Hour,
	"jwt.refresh_token_expiration": 7 * 24 * time.Hour,
	"jwt.issuer":                   "cryptonexus",
	"jwt.max_refresh_count":        10,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled": true,
	"event.batch_size":        100,
	"event.poll_interval":     2 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_enabled":   true,
	"event.cleanup_retention": 7 * 24 * time.Hour,
	"event.idempotency_ttl":   72 * time.Hour,

	"http.read_timeout":             15 * time.Second,
	"http.write_timeout":            30 * time.Second,
	"http.idle_timeout":             time.Minute,
	"http.max_header_bytes":         1 << 20,
	"http.max_body_size":            int64(10 << 20),
	"http.rate_limit_enabled":       true,
	"http.rate_limit_requests":      100,
	"http.rate_limit_window":        time.Minute,
	"http.auth_rate_limit_enabled":  true,
	"http.auth_rate_limit_requests": 5,
	"http.auth_rate_limit_window":   time.Minute,
	"http.cors_allow_origins":       []string{},
	"http.cors_allow_methods":       []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers":       []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":          []string{},

	"scheduler.enabled":        true,
	"scheduler.interval":       time.Minute,
	"scheduler.job_timeout":    2 * time.Minute,
	"scheduler.retry_attempts": 3,
	"scheduler.retry_delay":    10 * time.Second,

	"storage.enabled":            false,
	"storage.provider":           "s3",
	"storage.endpoint":           "",
	"storage.region":             "us-east-1",
	"storage.bucket":             "cryptonexus",
	"storage.access_key":         "",
	"storage.secret_key":         "",
	"storage.use_ssl":            true,
	"storage.use_path_style":     false,
	"storage.presign_expiration": 15 * time.Minute,

	"payment.use_mock":              false,
	"payment.payment_window":        2 * time.Hour,
	"payment.escrow_fee_percent":    2.0,
	"payment.auto_release_days":     7,
	"payment.dispute_window":        48 * time.Hour,
	"payment.btcpay.server_url":     "http://localhost:23000",
	"payment.btcpay.store_id":       "",
	"payment.btcpay.api_key":        "",
	"payment.btcpay.webhook_secret": "",
	"payment.monero.rpc_url":        "http://localhost:18082/json_rpc",
	"payment.monero.rpc_user":       "",
	"payment.monero.rpc_password":   "",
	"payment.monero.account_index":  0,
	"payment.monero.network":        "testnet",

	"receipt.enabled":    false,
	"receipt.remote_url": "",
	"receipt.no_sandbox": false,
	"receipt.timeout":    30 * time.Second,
	"receipt.locale":     "en-US",
	"receipt.paper":      "RECEIPT_80MM",

	"swagger.enabled":      true,
	"swagger.require_auth": false,
	"swagger.allowed_ips":  []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "cryptonexus",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_url":           "http://localhost:4040",
}

// Load reads config.toml if present, applies CNX_* overrides and validates.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CNX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	case c.Payment.EscrowFeePercent < 0 || c.Payment.EscrowFeePercent > 100:
		return fmt.Errorf("payment.escrow_fee_percent must be between 0 and 100, got %v", c.Payment.EscrowFeePercent)
	case c.Payment.AutoReleaseDays < 0:
		return errors.New("payment.auto_release_days cannot be negative")
	case !slices.Contains([]string{"mainnet", "stagenet", "testnet"}, c.Payment.Monero.Network):
		return fmt.Errorf("payment.monero.network must be mainnet, stagenet or testnet, got %q", c.Payment.Monero.Network)
	case c.Storage.Provider != "s3" && c.Storage.Provider != "memory":
		return fmt.Errorf("storage.provider must be s3 or memory, got %q", c.Storage.Provider)
	case c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1:
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.IsProduction() {
		return c.validateProduction()
	}
	return nil
}

// validateProduction rejects development conveniences that would expose
// funds or user data.
func (c *Config) validateProduction() error {
	checks := []struct {
		failed bool
		msg    string
	}{
		{c.JWT.Secret == "", "jwt.secret is required in production"},
		{len(c.JWT.Secret) < 32, "jwt.secret must be at least 32 characters in production"},
		{c.App.SecretKey == "", "app.secret_key is required in production"},
		{c.Database.Password == "", "database.password is required in production"},
		{c.Database.SSLMode == "disable", "database.sslmode cannot be 'disable' in production"},
		{c.Payment.UseMock, "payment.use_mock cannot be enabled in production"},
		{c.Payment.BTCPay.WebhookSecret == "", "payment.btcpay.webhook_secret is required in production"},
		{c.Storage.Enabled && c.Storage.Provider == "memory", "storage.provider cannot be 'memory' in production"},
		{slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot be '*' in production"},
		{c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0,
			"swagger endpoint must be disabled, require authentication, or have IP restriction in production"},
		{c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production"},
	}
	for _, check := range checks {
		if check.failed {
			return errors.New(check.msg)
		}
	}
	return nil
}
