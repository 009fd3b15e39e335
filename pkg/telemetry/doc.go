// Package telemetry provides observability instrumentation for the
// execution engine.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) behind one handle.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// The Metrics type implements engine.MetricsObserver, so it can be
// attached to a dispatcher directly:
//
//	d := engine.NewDispatcher(nativeExec, fallbackExec,
//	    engine.WithObserver(tel.Metrics))
package telemetry
