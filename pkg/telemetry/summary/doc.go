// Package summary logs a periodic one-line summary of recorded traffic.
//
// The Scheduler reads metrics.Totals from the collector on a cron schedule
// (recorder.summary_schedule) and logs the requests, server errors,
// transport errors and capture fallbacks seen since the previous run. The
// line is logged at warn level when the window contains errors.
package summary
