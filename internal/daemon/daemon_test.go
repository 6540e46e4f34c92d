package daemon

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/msageha/wildloop/internal/eventlog"
	"github.com/msageha/wildloop/internal/events"
	"github.com/msageha/wildloop/internal/metrics"
	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/selector"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := newDaemon(t.TempDir(), model.Config{}, io.Discard, nopCloser{})
	if err != nil {
		t.Fatal(err)
	}
	log, err := eventlog.Open(filepath.Join(d.root, "events", "alerts.jsonl"), 0)
	if err != nil {
		t.Fatal(err)
	}
	d.alerts = log
	d.alertOffset = log.Size()
	t.Cleanup(func() { log.Close() })
	return d
}

func TestDaemon_DefaultsApplied(t *testing.T) {
	d := testDaemon(t)

	if d.config.Monitor.TickIntervalSec <= 0 {
		t.Error("monitor tick interval default not applied")
	}
	if d.config.Daemon.ShutdownTimeoutSec <= 0 {
		t.Error("shutdown timeout default not applied")
	}
}

func TestDaemon_InputFileEventPublishesWake(t *testing.T) {
	d := testDaemon(t)
	defer d.bus.Close()

	got := make(chan events.Signal, 1)
	unsub := d.bus.Subscribe(events.KindInputReceived, func(sig events.Signal) {
		got <- sig
	})
	defer unsub()

	d.handleFileEvent(filepath.Join(d.store.StateDir(), "inputs.yaml"))

	select {
	case sig := <-got:
		if sig.Kind != events.KindInputReceived {
			t.Errorf("kind = %s", sig.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no input_received signal")
	}
}

func TestDaemon_AlertAppendPublishesPerRecord(t *testing.T) {
	d := testDaemon(t)
	defer d.bus.Close()

	got := make(chan events.Signal, 4)
	unsub := d.bus.Subscribe(events.KindAlertAppended, func(sig events.Signal) {
		got <- sig
	})
	defer unsub()

	for _, id := range []string{"alert_1700000000_00000001", "alert_1700000000_00000002"} {
		err := d.alerts.Append(model.Alert{
			ID:          id,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Severity:    model.SeverityWarning,
			Source:      "job-runner",
			Type:        "retry_exhausted",
			Description: "job failed",
			Status:      model.AlertStatusPending,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	d.handleFileEvent(d.alerts.Path())

	for i := 0; i < 2; i++ {
		select {
		case sig := <-got:
			if sig.Detail != string(model.SeverityWarning) {
				t.Errorf("detail = %q", sig.Detail)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing alert_appended signal %d", i)
		}
	}

	// offset advanced: re-dispatching the same event publishes nothing new
	d.handleFileEvent(d.alerts.Path())
	select {
	case sig := <-got:
		t.Errorf("unexpected duplicate signal for %s", sig.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDaemon_WakeSignalRecordsSelection(t *testing.T) {
	d := testDaemon(t)
	defer d.bus.Close()

	// fresh state dir: no tasks, no alerts, so the cascade lands on complete
	counter := metrics.Selections.WithLabelValues(string(selector.KindComplete))
	before := testutil.ToFloat64(counter)

	d.subscribeWakeSignals()
	d.bus.Publish(events.KindInputReceived, "", "inputs.yaml")

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(counter) <= before {
		if time.Now().After(deadline) {
			t.Fatal("selections counter never incremented after wake signal")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemon_ShutdownIsIdempotent(t *testing.T) {
	d := testDaemon(t)

	d.Shutdown()
	d.Shutdown() // must not panic or double-close
}
