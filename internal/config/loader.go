package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EnvFileVar names the environment variable that points at an alternate
// override file. When set, the file must exist.
const EnvFileVar = "CHASSIS_ENV_FILE"

const defaultEnvFile = ".env"

type options struct {
	envFile  string
	explicit bool
	extra    []Source
}

// Option adjusts how Load assembles its source chain.
type Option func(*options)

// WithEnvFile points the loader at a specific override file. The file must
// exist, unlike the implicit ./.env default.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
		o.explicit = true
	}
}

// WithSource appends an extra source with precedence above the process
// environment.
func WithSource(src Source) Option {
	return func(o *options) {
		o.extra = append(o.extra, src)
	}
}

// Load resolves configuration from the default source chain: compiled
// defaults, then the optional .env override file, then the process
// environment. Later sources win, field by field. The returned error, if
// any, is a *LoadError listing every rejected field.
func Load(opts ...Option) (*Config, error) {
	o := options{envFile: defaultEnvFile}
	if p := os.Getenv(EnvFileVar); p != "" {
		o.envFile = p
		o.explicit = true
	}
	for _, opt := range opts {
		opt(&o)
	}

	var sources []Source
	src, err := File(o.envFile)
	switch {
	case err == nil:
		sources = append(sources, src)
	case o.explicit || !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	sources = append(sources, Env())
	sources = append(sources, o.extra...)

	return LoadFrom(sources...)
}

// LoadFrom resolves configuration from an explicit source chain. Sources
// are ordered lowest to highest precedence.
func LoadFrom(sources ...Source) (*Config, error) {
	cfg := Default()
	r := &resolver{sources: sources}
	cfg.resolve(r)

	errs := r.errs
	errs = append(errs, cfg.check()...)
	if len(errs) > 0 {
		return nil, &LoadError{Fields: errs}
	}
	return cfg, nil
}

// Validate re-checks an assembled configuration against the same structural
// and cross-field rules Load applies. Callers that build *Config by hand
// (tests, embedding applications) get the same guarantees.
func (c *Config) Validate() error {
	if errs := c.check(); len(errs) > 0 {
		return &LoadError{Fields: errs}
	}
	return nil
}

// resolve walks every recognized key. Unrecognized keys in the sources are
// ignored; the environment is shared with the rest of the process.
func (c *Config) resolve(r *resolver) {
	c.App.Name = r.stringVal("APP_NAME", c.App.Name)
	c.App.Env = r.enumVal("APP_ENV", c.App.Env, "dev", "stage", "prod")
	c.App.Host = r.stringVal("APP_HOST", c.App.Host)
	c.App.Port = r.intVal("APP_PORT", c.App.Port)
	c.App.ShutdownGraceSeconds = r.intVal("APP_SHUTDOWN_GRACE_SECONDS", c.App.ShutdownGraceSeconds)

	c.HTTP.BodyLimitBytes = r.int64Val("HTTP_BODY_LIMIT_BYTES", c.HTTP.BodyLimitBytes)
	c.HTTP.RequestTimeoutSeconds = r.intVal("HTTP_REQUEST_TIMEOUT_SECONDS", c.HTTP.RequestTimeoutSeconds)
	c.HTTP.ReadyzStrictStatus = r.boolVal("HTTP_READYZ_STRICT_STATUS", c.HTTP.ReadyzStrictStatus)
	c.HTTP.RateLimitPerMinute = r.intVal("HTTP_RATE_LIMIT_PER_MINUTE", c.HTTP.RateLimitPerMinute)

	c.Features.DB = r.boolVal("FEATURE_DB", c.Features.DB)
	c.Features.Cache = r.boolVal("FEATURE_CACHE", c.Features.Cache)
	c.Features.Search = r.boolVal("FEATURE_SEARCH", c.Features.Search)
	c.Features.Broker = r.boolVal("FEATURE_BROKER", c.Features.Broker)
	c.Features.OTel = r.boolVal("FEATURE_OTEL", c.Features.OTel)
	c.Features.CORS = r.boolVal("FEATURE_CORS", c.Features.CORS)
	c.Features.RequestLog = r.boolVal("FEATURE_REQUEST_LOG", c.Features.RequestLog)
	c.Features.Tracing = r.boolVal("FEATURE_TRACING", c.Features.Tracing)
	c.Features.ResponseEnvelope = r.boolVal("FEATURE_RESPONSE_ENVELOPE", c.Features.ResponseEnvelope)
	c.Features.StartupBanner = r.boolVal("FEATURE_STARTUP_BANNER", c.Features.StartupBanner)

	c.Logging.Level = r.enumVal("LOG_LEVEL", c.Logging.Level, "debug", "info", "warn", "error")
	// Format stays free-form here: the zap backend ignores it entirely, so
	// its literal set is only enforced for slog, in check().
	c.Logging.Format = strings.ToLower(r.stringVal("LOG_FORMAT", c.Logging.Format))
	c.Logging.Backend = r.enumVal("LOG_BACKEND", c.Logging.Backend, BackendSlog, BackendZap)
	c.Logging.IncludeSource = r.boolVal("LOG_INCLUDE_SOURCE", c.Logging.IncludeSource)
	c.Logging.File = r.stringVal("LOG_FILE", c.Logging.File)
	c.Logging.RequestHeadersAllowlist = r.csvVal("REQUEST_LOG_HEADERS_ALLOWLIST", c.Logging.RequestHeadersAllowlist)
	c.Logging.RequestHeadersDenylist = r.csvVal("REQUEST_LOG_HEADERS_DENYLIST", c.Logging.RequestHeadersDenylist)

	c.Database.URL = r.stringVal("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = r.intVal("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = r.intVal("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnectTimeoutSeconds = r.intVal("DATABASE_CONNECT_TIMEOUT_SECONDS", c.Database.ConnectTimeoutSeconds)
	c.Database.ConnMaxLifetimeSeconds = r.intVal("DATABASE_CONN_MAX_LIFETIME_SECONDS", c.Database.ConnMaxLifetimeSeconds)

	c.Cache.Backend = r.enumVal("CACHE_BACKEND", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	c.Cache.TTLSeconds = r.intVal("CACHE_TTL_SECONDS", c.Cache.TTLSeconds)
	c.Cache.MaxEntries = r.intVal("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.RedisURL = r.stringVal("CACHE_REDIS_URL", c.Cache.RedisURL)
	c.Cache.RedisPoolSize = r.intVal("CACHE_REDIS_POOL_SIZE", c.Cache.RedisPoolSize)
	c.Cache.RedisConnectTimeoutSeconds = r.intVal("CACHE_REDIS_CONNECT_TIMEOUT_SECONDS", c.Cache.RedisConnectTimeoutSeconds)

	c.Search.URL = r.stringVal("SEARCH_URL", c.Search.URL)
	c.Search.APIKey = r.stringVal("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.TimeoutSeconds = r.intVal("SEARCH_TIMEOUT_SECONDS", c.Search.TimeoutSeconds)

	c.Broker.URL = r.stringVal("BROKER_URL", c.Broker.URL)
	c.Broker.ConnectTimeoutSeconds = r.intVal("BROKER_CONNECT_TIMEOUT_SECONDS", c.Broker.ConnectTimeoutSeconds)
	c.Broker.MaxReconnects = r.intVal("BROKER_MAX_RECONNECTS", c.Broker.MaxReconnects)

	c.CORS.AllowOrigins = r.csvVal("CORS_ALLOW_ORIGINS", c.CORS.AllowOrigins)
	c.CORS.AllowMethods = r.csvVal("CORS_ALLOW_METHODS", c.CORS.AllowMethods)
	c.CORS.AllowHeaders = r.csvVal("CORS_ALLOW_HEADERS", c.CORS.AllowHeaders)
	c.CORS.AllowCredentials = r.boolVal("CORS_ALLOW_CREDENTIALS", c.CORS.AllowCredentials)
	c.CORS.MaxAgeSeconds = r.intVal("CORS_MAX_AGE_SECONDS", c.CORS.MaxAgeSeconds)

	c.Readiness.Optional = normalizeList(r.csvVal("READINESS_OPTIONAL", c.Readiness.Optional))
	c.Readiness.ProbeTimeoutSeconds = r.intVal("READINESS_PROBE_TIMEOUT_SECONDS", c.Readiness.ProbeTimeoutSeconds)
	c.Readiness.CacheTTLSeconds = r.intVal("READINESS_CACHE_TTL_SECONDS", c.Readiness.CacheTTLSeconds)

	c.Infra.StartupPolicy = r.enumVal("INFRA_STARTUP_POLICY", c.Infra.StartupPolicy, StartupPolicyLenient, StartupPolicyStrict)

	c.Banner.ShowEnvVars = r.boolVal("BANNER_SHOW_ENV_VARS", c.Banner.ShowEnvVars)
	c.Banner.ShowSecrets = r.boolVal("BANNER_SHOW_SECRETS", c.Banner.ShowSecrets)
	c.Banner.EnvAllowlist = r.csvVal("BANNER_ENV_ALLOWLIST", c.Banner.EnvAllowlist)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// check runs the structural (tag) validation and the cross-field conflict
// rules, returning one entry per violation.
func (c *Config) check() []FieldError {
	errs := c.structErrors()
	errs = append(errs, c.conflicts()...)
	return errs
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations under the env key, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if tag := fld.Tag.Get("env"); tag != "" {
			return tag
		}
		return fld.Name
	})
	return v
}

func (c *Config) structErrors() []FieldError {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Key: "config", Reason: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Key:    fe.Field(),
			Value:  fmt.Sprintf("%v", fe.Value()),
			Reason: constraintReason(fe),
		})
	}
	return out
}

func constraintReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return "failed " + fe.Tag() + " constraint"
}

// conflicts holds the cross-field rules that tags cannot express.
func (c *Config) conflicts() []FieldError {
	var errs []FieldError

	if c.Logging.Backend == BackendZap && c.Features.OTel {
		errs = append(errs, FieldError{
			Key:    "FEATURE_OTEL",
			Value:  "true",
			Reason: "conflicts with LOG_BACKEND=zap: OpenTelemetry trace correlation requires the slog backend",
		})
	}
	if c.Logging.Backend == BackendSlog {
		switch c.Logging.Format {
		case LogFormatCompact, LogFormatPretty, LogFormatJSON:
		default:
			errs = append(errs, FieldError{
				Key:    "LOG_FORMAT",
				Value:  c.Logging.Format,
				Reason: "must be one of: compact, pretty, json",
			})
		}
	}
	if c.Features.DB && c.Database.URL == "" {
		errs = append(errs, FieldError{
			Key:    "DATABASE_URL",
			Reason: "required when FEATURE_DB=true",
		})
	}
	if c.Features.Cache && c.Cache.Backend == CacheBackendRedis && c.Cache.RedisURL == "" {
		errs = append(errs, FieldError{
			Key:    "CACHE_REDIS_URL",
			Reason: "required when CACHE_BACKEND=redis",
		})
	}
	if c.Features.Search && c.Search.URL == "" {
		errs = append(errs, FieldError{
			Key:    "SEARCH_URL",
			Reason: "required when FEATURE_SEARCH=true",
		})
	}
	for _, name := range c.Readiness.Optional {
		if !KnownCapability(name) {
			errs = append(errs, FieldError{
				Key:    "READINESS_OPTIONAL",
				Value:  name,
				Reason: "unknown capability",
			})
		}
	}

	return errs
}
