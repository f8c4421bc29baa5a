// Package server exposes the sentiment API over HTTP.
//
// Routes:
//
//	GET  /                service information
//	POST /analyze         {"text": "..."}
//	POST /analyze/batch   {"texts": ["...", ...]}
//	GET  /health          full health report (200 even when unhealthy)
//	GET  /health/simple   {status, model_loaded, version, uptime}
//	GET  /healthz         liveness
//	GET  /readyz          readiness
//	GET  /alerts?hours=N  recent alerts, guarded when auth is configured
//	GET  /metrics         Prometheus exposition, 404 when disabled
//
// Errors use the body {"error", "detail", "code"}.
package server
