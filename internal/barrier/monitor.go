package barrier

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/msageha/wildloop/internal/events"
	"github.com/msageha/wildloop/internal/logging"
	"github.com/msageha/wildloop/internal/metrics"
	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/store"
)

// Monitor polls waiting barriers on a timer and flips them to satisfied.
// It is the only concurrent writer of the barrier file besides the driver
// and operators; every write goes through the store's whole-file atomic
// rewrite so readers never see a partial state.
type Monitor struct {
	store   *store.Store
	bus     *events.Bus
	checker *Checker
	logger  *logging.Logger

	tickInterval time.Duration
	defaultPoll  time.Duration
	group        singleflight.Group
	scanGate     singleflight.Group
}

// NewMonitor wires a monitor against the store and wake-signal bus.
func NewMonitor(st *store.Store, bus *events.Bus, cfg model.MonitorConfig, logger *logging.Logger) *Monitor {
	return &Monitor{
		store:        st,
		bus:          bus,
		checker:      NewChecker(time.Duration(cfg.CheckTimeoutSec) * time.Second),
		logger:       logger,
		tickInterval: time.Duration(cfg.TickIntervalSec) * time.Second,
		defaultPoll:  time.Duration(cfg.DefaultPollIntervalSec) * time.Second,
	}
}

// Run loops until ctx is cancelled. Each tick kicks off a scan on its own
// goroutine so a slow check never delays the timer; overlapping scans and
// per-barrier checks are both deduplicated with singleflight. In-flight
// checks are allowed to complete after cancellation.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	// initial pass so a restart resumes monitoring immediately
	go m.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go m.Scan(ctx)
		}
	}
}

// Scan runs one monitoring pass: load barriers, check every waiting
// pollable barrier whose poll interval has elapsed, persist transitions,
// and publish wake signals. Safe to call concurrently; concurrent callers
// share one pass.
func (m *Monitor) Scan(ctx context.Context) {
	m.scanGate.Do("scan", func() (any, error) {
		m.scan(ctx)
		return nil, nil
	})
}

func (m *Monitor) scan(ctx context.Context) {
	bl, err := m.store.LoadBarriers()
	if err != nil {
		m.logger.Errorf("load barriers: %v", err)
		return
	}

	now := time.Now().UTC()
	waiting := 0
	for i := range bl.Barriers {
		b := bl.Barriers[i]
		if b.Status != model.BarrierStatusWaiting {
			continue
		}
		waiting++
		if !b.Pollable() {
			continue
		}
		if !m.due(&b, now) {
			continue
		}
		m.checkOne(ctx, b)
	}
	metrics.WaitingBarriers.Set(float64(waiting))
}

// due reports whether the barrier's own poll interval has elapsed since its
// last check.
func (m *Monitor) due(b *model.Barrier, now time.Time) bool {
	if b.LastCheckAt == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, b.LastCheckAt)
	if err != nil {
		// unparseable bookkeeping never stops monitoring
		return true
	}

	interval := m.defaultPoll
	if b.PollIntervalSec > 0 {
		interval = time.Duration(b.PollIntervalSec) * time.Second
	}
	return now.Sub(last) >= interval
}

// checkOne evaluates a single barrier and persists the outcome. singleflight
// keyed by barrier ID guarantees a slow check is never run twice
// concurrently for the same barrier.
func (m *Monitor) checkOne(ctx context.Context, b model.Barrier) {
	m.group.Do(b.ID, func() (any, error) {
		result, err := m.checker.Check(ctx, &b)
		now := time.Now().UTC().Format(time.RFC3339)

		if err != nil {
			// Check failures keep the barrier waiting; it is retried next
			// interval and never auto-promoted to failed.
			metrics.BarrierChecks.WithLabelValues("error").Inc()
			m.logger.Warnf("barrier_check id=%s type=%s error=%v", b.ID, b.Type, err)
			m.persist(b.ID, func(cur *model.Barrier) error {
				cur.LastCheckAt = now
				cur.LastCheckResult = "error: " + err.Error()
				return nil
			})
			return nil, nil
		}

		if !result.Satisfied {
			metrics.BarrierChecks.WithLabelValues("unsatisfied").Inc()
			m.logger.Debugf("barrier_check id=%s unsatisfied detail=%q", b.ID, result.Detail)
			m.persist(b.ID, func(cur *model.Barrier) error {
				cur.LastCheckAt = now
				cur.LastCheckResult = result.Detail
				return nil
			})
			return nil, nil
		}

		metrics.BarrierChecks.WithLabelValues("satisfied").Inc()
		metrics.BarriersSatisfied.Inc()
		m.logger.Infof("barrier_satisfied id=%s name=%q detail=%q", b.ID, b.Name, result.Detail)

		m.persist(b.ID, func(cur *model.Barrier) error {
			// An operator may have resolved it meanwhile; terminal wins.
			if cur.Status != model.BarrierStatusWaiting {
				return nil
			}
			cur.Status = model.BarrierStatusSatisfied
			cur.LastCheckAt = now
			cur.LastCheckResult = result.Detail
			cur.SatisfiedAt = now
			return nil
		})

		// Wake the driver so it re-evaluates work now instead of on its
		// next scheduled tick.
		if m.bus != nil {
			m.bus.Publish(events.KindBarrierSatisfied, b.ID, b.Name)
		}
		return nil, nil
	})
}

func (m *Monitor) persist(id string, fn func(*model.Barrier) error) {
	if err := m.store.UpdateBarrier(id, fn); err != nil {
		m.logger.Errorf("persist barrier %s: %v", id, err)
	}
}
