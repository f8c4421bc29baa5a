// Package app wires sentimentd together: configuration, telemetry, the
// inference engine, health probes, the alerting pipeline and the HTTP
// server.
//
// New only builds; Run starts the background loops and serves until its
// context is cancelled. Alert cooldown and failure threshold follow config
// file changes without a restart.
package app
