// Package telemetry wires OpenTelemetry for docledger.
//
// New installs a TracerProvider and MeterProvider exporting over OTLP/gRPC
// when enabled, and no-op providers otherwise. Initialization failures leave
// the instance degraded instead of failing startup.
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Observability, version), logger)
//	defer tel.Shutdown(ctx)
//
// Sink turns orchestrator telemetry signals (for example
// "documents_embedded_in_workspace") into a single counter,
// docledger.telemetry.events, with the event name and its dimensions as
// attributes.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
