// Package otel exposes gatekeeper metrics as OpenTelemetry observable
// instruments.
//
// Engine counters are grouped into families: gatekeeper.login.attempts
// (role, outcome), gatekeeper.validate.results (outcome),
// gatekeeper.session.events (event) and gatekeeper.collaborator.failures.
// Validate latency is reported as cumulative bucket gauges keyed by the le
// attribute plus a sample count. A single callback reads
// Engine.MetricsSnapshot on each collection cycle. Callers own the
// MeterProvider.
package otel
