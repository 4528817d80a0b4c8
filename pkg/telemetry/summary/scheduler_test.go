package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/telemetry/metrics"
)

// fakeSource returns preset totals.
type fakeSource struct {
	mu     sync.Mutex
	totals metrics.Totals
	err    error
}

func (f *fakeSource) Totals() (metrics.Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals, f.err
}

func (f *fakeSource) set(t metrics.Totals) {
	f.mu.Lock()
	f.totals = t
	f.mu.Unlock()
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "every five minutes",
			schedule:    "*/5 * * * *",
			wantRunning: true,
		},
		{
			name:        "hourly",
			schedule:    "0 * * * *",
			wantRunning: true,
		},
		{
			name:     "empty schedule - no error, not running",
			schedule: "",
		},
		{
			name:      "invalid schedule",
			schedule:  "invalid cron",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			scheduler := NewScheduler(&fakeSource{}, tt.schedule, newTestLogger(&buf))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", scheduler.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := scheduler.NextRun()
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
				scheduler.Stop()
				if scheduler.IsRunning() {
					t.Error("scheduler still running after Stop")
				}
			}
		})
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	scheduler := NewScheduler(&fakeSource{}, "* * * * *", newTestLogger(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler did not stop after context cancellation")
	}
}

func TestScheduler_RunReportsDelta(t *testing.T) {
	source := &fakeSource{totals: metrics.Totals{Requests: 10}}
	var buf bytes.Buffer
	scheduler := NewScheduler(source, "0 0 1 1 *", newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := scheduler.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer scheduler.Stop()

	source.set(metrics.Totals{Requests: 15, ServerErrors: 1, Fallbacks: 2})
	buf.Reset()
	scheduler.Run()

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("summary line %q: %v", buf.String(), err)
	}
	if line["msg"] != "recorder summary" || line["level"] != "WARN" {
		t.Errorf("line = %v", line)
	}
	if line["requests"] != float64(5) || line["server_errors"] != float64(1) || line["capture_fallbacks"] != float64(2) {
		t.Errorf("delta fields = %v", line)
	}
	if line["requests_total"] != float64(15) {
		t.Errorf("requests_total = %v", line["requests_total"])
	}

	buf.Reset()
	scheduler.Run()
	if !strings.Contains(buf.String(), `"requests":0`) || !strings.Contains(buf.String(), `"level":"INFO"`) {
		t.Errorf("quiet window line = %s", buf.String())
	}
}

func TestScheduler_SourceError(t *testing.T) {
	source := &fakeSource{}
	var buf bytes.Buffer
	scheduler := NewScheduler(source, "", newTestLogger(&buf))

	source.err = errors.New("gather failed")
	scheduler.Run()

	if !strings.Contains(buf.String(), "failed to read recorder totals") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestScheduler_WithCollector(t *testing.T) {
	cfg := config.MetricsConfig{Enabled: true}
	collector := metrics.NewCollector(&cfg, nil)
	var buf bytes.Buffer
	scheduler := NewScheduler(collector, "", newTestLogger(&buf))

	collector.ObserveCompletion("GET", "/", 200, time.Millisecond, 0, 0)
	scheduler.Run()

	if !strings.Contains(buf.String(), `"requests":1`) {
		t.Errorf("log = %s", buf.String())
	}
}
