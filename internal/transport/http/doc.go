// Package http implements the HTTP handlers for the core endpoints. It is a
// thin layer between transport and the health/buildinfo packages: handlers
// parse nothing, delegate, and render.
//
// # Response Envelope
//
// Core handlers wrap every payload in the Envelope shape:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-08-23T10:00:00Z",
//	    "request_id": "5f2f...",
//	    "data": { ... }
//	}
//
// Error responses carry "status": "error" plus a machine-readable code and
// message. The envelope applies to core endpoints only: routes merged into
// the application by callers are served exactly as written, with no
// response shape imposed on them. Setting FEATURE_RESPONSE_ENVELOPE=false
// serves even the core payloads bare.
//
// # Endpoints
//
//	GET /healthz  - liveness: 200 whenever the process can answer
//	GET /readyz   - readiness: the aggregator verdict plus per-capability detail
//	GET /version  - static build metadata stamped at link time
//	GET /metrics  - Prometheus scrape surface (only when FEATURE_OTEL is on)
//
// /readyz answers 200 regardless of verdict unless HTTP_READYZ_STRICT_STATUS
// is set, in which case a not_ready verdict answers 503.
//
// # Testing
//
// Handlers are tested with httptest against real aggregator and buildinfo
// values; no transport-level mocks.
package http
