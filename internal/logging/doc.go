// Package logging provides structured logging for docledger on top of Zap.
//
// The Logger type adds context-aware methods that prepend correlation fields
// (trace, request, actor, workspace) carried on the context.Context:
//
//	ctx = logging.WithActor(ctx, "42")
//	ctx = logging.WithWorkspace(ctx, "engineering")
//	logger.Info(ctx, "documents embedded", zap.Int("count", 3))
//
// Output may be written to stdout, to an OpenTelemetry log provider, or both.
// Sensitive keys and value patterns are redacted at the encoder. Levels below
// Error are sampled when sampling is enabled.
//
// Library packages accept a plain *zap.Logger; use Underlying to hand one over.
// Tests use NewTestLogger to observe and assert on emitted entries.
package logging
