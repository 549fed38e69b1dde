// Package app assembles configuration, logging state, infrastructure
// handles, and the readiness aggregator into a runnable HTTP service.
//
// # Architecture
//
// The package follows a builder pattern: collaborators initialized by the
// process entry point are handed to the builder, which wires the fixed
// middleware chain, mounts the core endpoints, merges caller routers, and
// produces an Application that owns the server lifecycle.
//
// # Initialization Flow
//
// The typical sequence in a main function:
//
//	1. Load configuration from .env file and environment
//	2. Initialize logging (one-shot, returns a guard)
//	3. Initialize OpenTelemetry when FEATURE_OTEL is enabled
//	4. Initialize the infra registry per feature flags
//	5. Build the readiness aggregator
//	6. Assemble the application and call Run
//
// # Middleware Chain
//
// The chain order is fixed and independent of registration order,
// outermost to innermost:
//
//	Recoverer → RealIP → RateLimiter → CORS → Compress →
//	SecurityHeaders → BodyLimit → Timeout → Tracing → RequestLogger →
//	SensitiveHeaders → RequestID
//
// Compression wraps the security headers so they survive on compressed
// responses, and the request ID is assigned inside the logger so every
// completion line carries a correlation ID. Conditional members
// (RateLimiter, CORS, Tracing, RequestLogger) drop out of the chain when
// their flag is off without disturbing the relative order of the rest.
//
// # Core Endpoints
//
// /healthz, /readyz, and /version are always mounted, before any merged
// router; /metrics joins them when FEATURE_OTEL is enabled. Merged routers
// cannot claim those patterns: Merge rejects them with an error rather than
// letting the router panic on a duplicate route. Unmatched paths and
// unsupported methods answer with the JSON fallbacks from internal/errors;
// merged routers without fallbacks of their own inherit them.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT/SIGTERM or context cancellation, then releases
// resources in reverse initialization order: the HTTP server drains within
// the configured grace period, then infra handles close, then telemetry
// providers flush, and the logging guard closes last so shutdown itself
// stays observable.
package app
