package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete, resolved application configuration. All values are
// immutable after Load; handing the same *Config to every component is safe.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Features  FeaturesConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Search    SearchConfig
	Broker    BrokerConfig
	CORS      CORSConfig
	Readiness ReadinessConfig
	Infra     InfraConfig
	Banner    BannerConfig
}

// AppConfig contains process identity and listener configuration.
type AppConfig struct {
	Name                 string `env:"APP_NAME" validate:"required"`
	Env                  string `env:"APP_ENV" validate:"oneof=dev stage prod"`
	Host                 string `env:"APP_HOST" validate:"required"`
	Port                 int    `env:"APP_PORT" validate:"min=1,max=65535"`
	ShutdownGraceSeconds int    `env:"APP_SHUTDOWN_GRACE_SECONDS" validate:"min=0"`
}

// ListenAddr returns the host:port the HTTP server binds to.
func (a AppConfig) ListenAddr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ShutdownGrace returns the graceful-shutdown window.
func (a AppConfig) ShutdownGrace() time.Duration {
	return time.Duration(a.ShutdownGraceSeconds) * time.Second
}

// HTTPConfig contains HTTP server and middleware tuning.
type HTTPConfig struct {
	BodyLimitBytes        int64 `env:"HTTP_BODY_LIMIT_BYTES" validate:"min=1"`
	RequestTimeoutSeconds int   `env:"HTTP_REQUEST_TIMEOUT_SECONDS" validate:"min=0"`
	// ReadyzStrictStatus switches /readyz from the historical always-200
	// contract to 503 when the service is not ready.
	ReadyzStrictStatus bool `env:"HTTP_READYZ_STRICT_STATUS"`
	RateLimitPerMinute int  `env:"HTTP_RATE_LIMIT_PER_MINUTE" validate:"min=0"`
}

// RequestTimeout returns the per-request deadline. Zero disables it.
func (h HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSeconds) * time.Second
}

// FeaturesConfig contains the runtime feature toggles. Capability toggles
// (DB, Cache, Search, Broker) only take effect when the matching client is
// compiled into the binary; see the infra package.
type FeaturesConfig struct {
	DB               bool `env:"FEATURE_DB"`
	Cache            bool `env:"FEATURE_CACHE"`
	Search           bool `env:"FEATURE_SEARCH"`
	Broker           bool `env:"FEATURE_BROKER"`
	OTel             bool `env:"FEATURE_OTEL"`
	CORS             bool `env:"FEATURE_CORS"`
	RequestLog       bool `env:"FEATURE_REQUEST_LOG"`
	Tracing          bool `env:"FEATURE_TRACING"`
	ResponseEnvelope bool `env:"FEATURE_RESPONSE_ENVELOPE"`
	StartupBanner    bool `env:"FEATURE_STARTUP_BANNER"`
}

// LoggingConfig contains logging backend selection and request-log tuning.
//
// Format only applies to the slog backend; the zap backend owns its encoding
// and ignores the value entirely.
type LoggingConfig struct {
	Level                   string   `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format                  string   `env:"LOG_FORMAT"`
	Backend                 string   `env:"LOG_BACKEND" validate:"oneof=slog zap"`
	IncludeSource           bool     `env:"LOG_INCLUDE_SOURCE"`
	File                    string   `env:"LOG_FILE"`
	RequestHeadersAllowlist []string `env:"REQUEST_LOG_HEADERS_ALLOWLIST"`
	RequestHeadersDenylist  []string `env:"REQUEST_LOG_HEADERS_DENYLIST"`
}

// Logging backends. BackendSlog is the standard backend; BackendZap is the
// alternate backend and cannot be combined with FEATURE_OTEL.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Log formats, honored by the slog backend only.
const (
	LogFormatCompact = "compact"
	LogFormatPretty  = "pretty"
	LogFormatJSON    = "json"
)

// DatabaseConfig contains the relational database client settings.
type DatabaseConfig struct {
	URL                    string `env:"DATABASE_URL"`
	MaxOpenConns           int    `env:"DATABASE_MAX_OPEN_CONNS" validate:"min=1"`
	MaxIdleConns           int    `env:"DATABASE_MAX_IDLE_CONNS" validate:"min=0"`
	ConnectTimeoutSeconds  int    `env:"DATABASE_CONNECT_TIMEOUT_SECONDS" validate:"min=1"`
	ConnMaxLifetimeSeconds int    `env:"DATABASE_CONN_MAX_LIFETIME_SECONDS" validate:"min=0"`
}

// ConnectTimeout bounds the initial dial and ping.
func (d DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

// ConnMaxLifetime returns the pool connection lifetime. Zero means unlimited.
func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeSeconds) * time.Second
}

// CacheConfig contains cache backend selection and sizing.
type CacheConfig struct {
	Backend                    string `env:"CACHE_BACKEND"`
	TTLSeconds                 int    `env:"CACHE_TTL_SECONDS" validate:"min=1"`
	MaxEntries                 int    `env:"CACHE_MAX_ENTRIES" validate:"min=1"`
	RedisURL                   string `env:"CACHE_REDIS_URL"`
	RedisPoolSize              int    `env:"CACHE_REDIS_POOL_SIZE" validate:"min=1"`
	RedisConnectTimeoutSeconds int    `env:"CACHE_REDIS_CONNECT_TIMEOUT_SECONDS" validate:"min=1"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// TTL returns the default entry time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConnectTimeout bounds the redis dial and ping.
func (c CacheConfig) RedisConnectTimeout() time.Duration {
	return time.Duration(c.RedisConnectTimeoutSeconds) * time.Second
}

// SearchConfig contains the search engine client settings.
type SearchConfig struct {
	URL            string `env:"SEARCH_URL"`
	APIKey         string `env:"SEARCH_API_KEY"`
	TimeoutSeconds int    `env:"SEARCH_TIMEOUT_SECONDS" validate:"min=1"`
}

// Timeout bounds search client calls, including the health probe.
func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// BrokerConfig contains the message broker client settings.
type BrokerConfig struct {
	URL                   string `env:"BROKER_URL" validate:"required"`
	ConnectTimeoutSeconds int    `env:"BROKER_CONNECT_TIMEOUT_SECONDS" validate:"min=1"`
	MaxReconnects         int    `env:"BROKER_MAX_RECONNECTS" validate:"min=-1"`
}

// ConnectTimeout bounds the initial broker dial.
func (b BrokerConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSeconds) * time.Second
}

// CORSConfig contains cross-origin settings, applied only when FEATURE_CORS
// is enabled.
type CORSConfig struct {
	AllowOrigins     []string `env:"CORS_ALLOW_ORIGINS"`
	AllowMethods     []string `env:"CORS_ALLOW_METHODS"`
	AllowHeaders     []string `env:"CORS_ALLOW_HEADERS"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"`
	MaxAgeSeconds    int      `env:"CORS_MAX_AGE_SECONDS" validate:"min=0"`
}

// ReadinessConfig contains readiness probe tuning.
type ReadinessConfig struct {
	// Optional lists capabilities whose failures must not flip the service
	// to not-ready. Every entry must name a known capability.
	Optional            []string `env:"READINESS_OPTIONAL"`
	ProbeTimeoutSeconds int      `env:"READINESS_PROBE_TIMEOUT_SECONDS" validate:"min=1"`
	CacheTTLSeconds     int      `env:"READINESS_CACHE_TTL_SECONDS" validate:"min=0"`
}

// ProbeTimeout bounds each individual capability probe.
func (r ReadinessConfig) ProbeTimeout() time.Duration {
	return time.Duration(r.ProbeTimeoutSeconds) * time.Second
}

// CacheTTL returns how long a readiness report may be served from cache.
// Zero means every query probes live.
func (r ReadinessConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Infra startup policies.
const (
	StartupPolicyLenient = "lenient"
	StartupPolicyStrict  = "strict"
)

// InfraConfig contains infrastructure startup policy.
type InfraConfig struct {
	StartupPolicy string `env:"INFRA_STARTUP_POLICY"`
}

// Strict reports whether any capability init failure should abort startup.
func (i InfraConfig) Strict() bool {
	return i.StartupPolicy == StartupPolicyStrict
}

// BannerConfig controls the startup banner contents.
type BannerConfig struct {
	ShowEnvVars  bool     `env:"BANNER_SHOW_ENV_VARS"`
	ShowSecrets  bool     `env:"BANNER_SHOW_SECRETS"`
	EnvAllowlist []string `env:"BANNER_ENV_ALLOWLIST"`
}

// Default returns the compiled-in configuration. Every recognized key has a
// default; loading only overrides what a source explicitly sets.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:                 "chassis-app",
			Env:                  "dev",
			Host:                 "0.0.0.0",
			Port:                 8080,
			ShutdownGraceSeconds: 10,
		},
		HTTP: HTTPConfig{
			BodyLimitBytes:        1 << 20,
			RequestTimeoutSeconds: 15,
			ReadyzStrictStatus:    false,
			RateLimitPerMinute:    0,
		},
		Features: FeaturesConfig{
			DB:               false,
			Cache:            true,
			Search:           false,
			Broker:           false,
			OTel:             false,
			CORS:             false,
			RequestLog:       true,
			Tracing:          true,
			ResponseEnvelope: true,
			StartupBanner:    true,
		},
		Logging: LoggingConfig{
			Level:                   "info",
			Format:                  "pretty",
			Backend:                 BackendSlog,
			IncludeSource:           false,
			File:                    "",
			RequestHeadersAllowlist: nil,
			RequestHeadersDenylist:  []string{"authorization", "cookie", "set-cookie", "x-api-key"},
		},
		Database: DatabaseConfig{
			URL:                    "",
			MaxOpenConns:           100,
			MaxIdleConns:           5,
			ConnectTimeoutSeconds:  10,
			ConnMaxLifetimeSeconds: 1800,
		},
		Cache: CacheConfig{
			Backend:                    CacheBackendMemory,
			TTLSeconds:                 300,
			MaxEntries:                 50000,
			RedisURL:                   "",
			RedisPoolSize:              20,
			RedisConnectTimeoutSeconds: 5,
		},
		Search: SearchConfig{
			URL:            "",
			APIKey:         "",
			TimeoutSeconds: 5,
		},
		Broker: BrokerConfig{
			URL:                   "nats://localhost:4222",
			ConnectTimeoutSeconds: 5,
			MaxReconnects:         60,
		},
		CORS: CORSConfig{
			AllowOrigins:     nil,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"content-type", "authorization"},
			AllowCredentials: false,
			MaxAgeSeconds:    600,
		},
		Readiness: ReadinessConfig{
			Optional:            nil,
			ProbeTimeoutSeconds: 5,
			CacheTTLSeconds:     0,
		},
		Infra: InfraConfig{
			StartupPolicy: StartupPolicyLenient,
		},
		Banner: BannerConfig{
			ShowEnvVars:  false,
			ShowSecrets:  false,
			EnvAllowlist: nil,
		},
	}
}

// RedactSecret masks a secret for display: the first four characters are
// kept, the remainder is replaced by "****". Values of four characters or
// fewer are fully masked.
func RedactSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
