// Package tracer wires OpenTelemetry tracing.
//
// Tracing is opt-in. Setup installs a global tracer provider that batches
// spans to an OTLP/HTTP endpoint; without it spans are no-ops. Start and
// End wrap the span calls the storage layer makes.
package tracer
