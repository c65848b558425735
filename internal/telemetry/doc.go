// Package telemetry provides OpenTelemetry tracing and metrics for syllabusd.
//
// Spans and metrics are exported over OTLP (gRPC or HTTP) to a collector.
// Telemetry is off by default; when an exporter cannot be created the
// instance is marked degraded and the process keeps running.
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	pipeline := extraction.NewPipeline(pcfg, oracle,
//	    extraction.WithTracer(tel.Tracer(extraction.InstrumentationName)))
//
// Tests use NewTestTelemetry and assert on recorded spans:
//
//	tt := telemetry.NewTestTelemetry()
//	... run with tt.Tracer("test") ...
//	tt.AssertSpanExists(t, "extraction.Run")
package telemetry
