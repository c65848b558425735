// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with a Trace level below Debug, optional dual output to
// stdout (or stderr) and an OpenTelemetry log provider, correlation fields
// pulled from context, secret redaction in the encoder, and sampling that
// never drops Error and above.
//
// Every context-aware method prepends ContextFields, so a run that carries
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithDocumentID(ctx, "syllabus-42")
//	logger.Info(ctx, "extraction run complete", zap.Int("items", n))
//
// produces
//
//	{"ts":"2026-03-02T10:15:30.000Z","level":"info","msg":"extraction run complete",
//	 "trace_id":"...","span_id":"...","run.id":"...","document.id":"syllabus-42","items":7}
//
// Use TestLogger in tests:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
