// Package telemetry groups loupe's observability packages.
//
// # Components
//
//   - logging: slog-based structured logging with PII redaction
//   - metrics: Prometheus counters and histograms fed by the recorder
//   - tracing: W3C trace context extraction for records
//   - health: liveness, readiness and version endpoints
//   - summary: cron-scheduled summary log line of recorder totals
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	rec := recorder.New(sink, opts).WithObserver(collector)
//
//	scheduler := summary.NewScheduler(collector, cfg.Recorder.SummarySchedule, logger.Slog())
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//	defer scheduler.Stop()
package telemetry
