// Package daemon runs the long-lived wildloop process: the barrier monitor,
// the state-directory watcher that turns file changes into wake signals,
// and the optional metrics endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/wildloop/internal/barrier"
	"github.com/msageha/wildloop/internal/eventlog"
	"github.com/msageha/wildloop/internal/events"
	"github.com/msageha/wildloop/internal/lock"
	"github.com/msageha/wildloop/internal/logging"
	"github.com/msageha/wildloop/internal/metrics"
	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/policy"
	"github.com/msageha/wildloop/internal/selector"
	"github.com/msageha/wildloop/internal/store"
)

// Daemon is the main wildloop daemon process. Exactly one instance runs per
// state directory, enforced by a flock on locks/daemon.lock.
type Daemon struct {
	root    string
	config  model.Config
	logger  *logging.Logger
	logFile io.Closer

	fileLock  *lock.FileLock
	watcher   *fsnotify.Watcher
	bus       *events.Bus
	store     *store.Store
	monitor   *barrier.Monitor
	alerts    *eventlog.Log
	history   *policy.History
	metricSrv *http.Server

	// read position in the alert log, advanced by the watcher so each
	// appended alert produces exactly one wake signal
	alertOffset int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	forceExit atomic.Bool
}

// New creates a daemon logging to <root>/logs/daemon.log.
func New(root string, cfg model.Config) (*Daemon, error) {
	logPath := filepath.Join(root, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}
	return newDaemon(root, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(root string, cfg model.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg.ApplyDefaults()

	logger := logging.New(w, logging.ParseLevel(cfg.Logging.Level), "daemon")
	st := store.New(root, lock.NewMutexMap())
	bus := events.NewBus(16)

	d := &Daemon{
		root:     root,
		config:   cfg,
		logger:   logger,
		logFile:  closer,
		fileLock: lock.NewFileLock(filepath.Join(root, "locks", "daemon.lock")),
		bus:      bus,
		store:    st,
		monitor:  barrier.NewMonitor(st, bus, cfg.Monitor, logger),
		history:  policy.NewHistory(),
		ctx:      ctx,
		cancel:   cancel,
	}
	return d, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.logger.Infof("daemon starting pid=%d root=%s", os.Getpid(), d.root)

	alerts, err := eventlog.Open(
		filepath.Join(d.root, "events", "alerts.jsonl"),
		d.config.EventLog.MaxSizeBytes,
	)
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("open alert log: %w", err)
	}
	d.alerts = alerts
	d.alertOffset = alerts.Size()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher

	stateDir := d.store.StateDir()
	eventsDir := filepath.Join(d.root, "events")
	for _, dir := range []string{stateDir, eventsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			d.cleanup()
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
		if err := watcher.Add(dir); err != nil {
			d.cleanup()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	d.subscribeWakeSignals()

	if addr := d.config.Metrics.ListenAddr; addr != "" {
		d.startMetricsServer(addr)
	}

	d.wg.Add(2)
	go d.watchLoop()
	go func() {
		defer d.wg.Done()
		d.monitor.Run(d.ctx)
	}()

	d.refreshAlertGauge()
	d.logger.Infof("daemon ready")

	d.waitSignals()
	return nil
}

// subscribeWakeSignals records every wake signal in the daemon log so an
// operator can reconstruct why the loop re-evaluated work, and recomputes
// the selection the driver would be handed next.
func (d *Daemon) subscribeWakeSignals() {
	for _, kind := range []events.Kind{
		events.KindBarrierSatisfied,
		events.KindInputReceived,
		events.KindAlertAppended,
	} {
		d.bus.Subscribe(kind, func(sig events.Signal) {
			d.logger.Infof("wake kind=%s id=%s detail=%q", sig.Kind, sig.ID, sig.Detail)
			d.recordSelection()
		})
	}
}

// recordSelection evaluates the work cascade against current state and
// counts the outcome, so the selections metric tracks what each wake signal
// would tell the driver to do.
func (d *Daemon) recordSelection() {
	tasks, err := d.store.LoadTasks()
	if err != nil {
		d.logger.Errorf("load tasks: %v", err)
		return
	}
	barriers, err := d.store.LoadBarriers()
	if err != nil {
		d.logger.Errorf("load barriers: %v", err)
		return
	}
	inputs, err := d.store.LoadInputs()
	if err != nil {
		d.logger.Errorf("load inputs: %v", err)
		return
	}
	pol, err := d.store.LoadPolicy()
	if err != nil {
		d.logger.Errorf("load policy: %v", err)
		pol = model.DefaultPolicy()
	}
	alerts, err := d.alerts.LoadCurrent()
	if err != nil {
		d.logger.Errorf("load current alerts: %v", err)
		return
	}

	sel := selector.SelectWork(tasks, alerts, barriers, inputs.Inputs, pol)
	metrics.Selections.WithLabelValues(string(sel.Kind)).Inc()
	d.logger.Debugf("selection kind=%s reason=%q", sel.Kind, sel.Reason)
}

func (d *Daemon) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	d.metricSrv = &http.Server{Addr: addr, Handler: mux}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Infof("metrics listening on %s", addr)
		if err := d.metricSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Errorf("metrics server: %v", err)
		}
	}()
}

// watchLoop turns filesystem changes into wake signals. Input-queue writes
// publish input_received; alert-log appends publish one alert_appended per
// new record.
func (d *Daemon) watchLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			d.handleFileEvent(event.Name)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Errorf("fsnotify error=%v", err)
		}
	}
}

func (d *Daemon) handleFileEvent(path string) {
	switch filepath.Base(path) {
	case store.InputsFile:
		d.logger.Debugf("input queue changed: %s", path)
		d.bus.Publish(events.KindInputReceived, "", path)
	case store.BarriersFile:
		// a new or reset barrier should be checked now, not next tick
		d.logger.Debugf("barrier store changed: %s", path)
		go d.monitor.Scan(d.ctx)
	case filepath.Base(d.alerts.Path()):
		d.publishNewAlerts()
	}
}

// publishNewAlerts reads alert records appended since the last offset,
// publishes a wake signal for each, and evaluates the escalation rules so
// operators see escalation decisions in the daemon log.
func (d *Daemon) publishNewAlerts() {
	appended, next, err := d.alerts.ReadFrom(d.alertOffset)
	if err != nil {
		d.logger.Errorf("read alert log from offset %d: %v", d.alertOffset, err)
		return
	}
	d.alertOffset = next

	if len(appended) == 0 {
		return
	}

	pol, err := d.store.LoadPolicy()
	if err != nil {
		d.logger.Errorf("load policy: %v", err)
		pol = model.DefaultPolicy()
	}

	for _, a := range appended {
		d.logger.Infof("alert appended id=%s severity=%s source=%s", a.ID, a.Severity, a.Source)
		d.bus.Publish(events.KindAlertAppended, a.ID, string(a.Severity))

		if a.Status != model.AlertStatusPending {
			continue
		}
		if esc := policy.ShouldEscalate(a, pol, d.history); esc.Escalate {
			metrics.Escalations.WithLabelValues(string(esc.Urgency)).Inc()
			d.logger.Warnf("escalation id=%s urgency=%s blocking=%t reason=%q",
				a.ID, esc.Urgency, esc.Blocking, esc.Reason)
		}
	}
	d.refreshAlertGauge()
}

func (d *Daemon) refreshAlertGauge() {
	current, err := d.alerts.LoadCurrent()
	if err != nil {
		d.logger.Errorf("load current alerts: %v", err)
		return
	}
	metrics.ActiveAlerts.Set(float64(len(current)))
}

// waitSignals blocks until a shutdown signal is received. A second signal
// forces immediate exit.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.logger.Infof("received signal=%s, initiating graceful shutdown", sig)

	go func() {
		<-sigCh
		d.logger.Warnf("received second signal, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown. Idempotent.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.logger.Infof("shutdown started")

		d.cancel()
		if d.watcher != nil {
			d.watcher.Close()
		}

		timeout := time.Duration(d.config.Daemon.ShutdownTimeoutSec) * time.Second

		if d.metricSrv != nil {
			ctx, stop := context.WithTimeout(context.Background(), timeout)
			if err := d.metricSrv.Shutdown(ctx); err != nil {
				d.logger.Warnf("metrics shutdown: %v", err)
			}
			stop()
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.logger.Infof("all goroutines drained")
		case <-time.After(timeout):
			d.logger.Warnf("shutdown timeout after %s, some operations may be incomplete", timeout)
		}

		d.cleanup()
		d.logger.Infof("daemon stopped")
	})
}

func (d *Daemon) cleanup() {
	if d.bus != nil {
		d.bus.Close()
	}
	if d.alerts != nil {
		d.alerts.Close()
	}
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}
