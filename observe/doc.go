// Package observe provides the service's observability primitives: a
// structured logger, OpenTelemetry metrics and tracing, and HTTP middleware
// tying the three together per request.
//
// Components receive a Logger, Metrics and Tracer explicitly. NopLogger,
// NopMetrics and NopTracer are the zero-cost stand-ins used in tests.
package observe
