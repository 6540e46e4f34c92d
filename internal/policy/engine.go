// Package policy implements the escalation and reporting decision rules.
// Both entry points are pure over their inputs; the only mutable piece is
// History, the process-local attempt counters.
package policy

import (
	"sync"
	"time"

	"github.com/msageha/wildloop/internal/model"
)

// Urgency grades an escalation for the notification channel.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Escalation is the outcome of ShouldEscalate. Blocking means the loop must
// stop and wait for the human rather than continue working around the alert.
type Escalation struct {
	Escalate bool    `json:"escalate"`
	Reason   string  `json:"reason,omitempty"`
	Urgency  Urgency `json:"urgency,omitempty"`
	Blocking bool    `json:"blocking,omitempty"`
}

// History holds the in-memory escalation counters: resolution attempts per
// alert ID and the time of the last recorded progress. Counters are not
// persisted; a restart clears them.
type History struct {
	mu           sync.Mutex
	attempts     map[string]int
	lastProgress time.Time
}

// NewHistory creates an empty history with last progress set to now.
func NewHistory() *History {
	return &History{
		attempts:     make(map[string]int),
		lastProgress: time.Now().UTC(),
	}
}

// RecordAttempt counts one resolution attempt for an alert and returns the
// running total.
func (h *History) RecordAttempt(alertID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[alertID]++
	return h.attempts[alertID]
}

// Attempts returns the recorded attempt count for an alert.
func (h *History) Attempts(alertID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[alertID]
}

// RecordProgress marks now as the time of last forward progress.
func (h *History) RecordProgress() {
	h.RecordProgressAt(time.Now().UTC())
}

// RecordProgressAt marks an explicit time of last forward progress, e.g.
// taken from a result record's timestamp.
func (h *History) RecordProgressAt(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastProgress = t
}

// MinutesSinceProgress returns the minutes elapsed since the last recorded
// progress.
func (h *History) MinutesSinceProgress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.lastProgress).Minutes()
}

// ShouldEscalate decides whether an alert must be surfaced to a human.
// Rules are evaluated in fixed order, first match wins.
func ShouldEscalate(alert model.Alert, p model.HumanPolicy, h *History) Escalation {
	// 1. Critical alerts escalate whenever the policy says so, at high
	// urgency regardless of autonomy; autonomy only decides blocking.
	if alert.Severity == model.SeverityCritical && p.EscalateOn.CriticalAlerts {
		return Escalation{
			Escalate: true,
			Reason:   "critical alert",
			Urgency:  UrgencyHigh,
			Blocking: p.Autonomy == model.AutonomyLow,
		}
	}

	// 2. Retry budget exhausted.
	if p.MaxRetryAttempts > 0 && h != nil && h.Attempts(alert.ID) >= p.MaxRetryAttempts {
		return Escalation{
			Escalate: true,
			Reason:   "max retry attempts reached",
			Urgency:  UrgencyMedium,
			Blocking: p.Autonomy != model.AutonomyHigh,
		}
	}

	// 3. No forward progress for too long.
	if p.EscalateOn.StuckDurationMin > 0 && h != nil &&
		h.MinutesSinceProgress() >= float64(p.EscalateOn.StuckDurationMin) {
		return Escalation{
			Escalate: true,
			Reason:   "no progress within stuck duration",
			Urgency:  UrgencyMedium,
			Blocking: p.Autonomy == model.AutonomyLow,
		}
	}

	// 4. Low autonomy with an escalate-everything threshold.
	if p.Autonomy == model.AutonomyLow && p.EscalationThreshold == model.EscalateAll {
		return Escalation{
			Escalate: true,
			Reason:   "low autonomy escalates all alerts",
			Urgency:  UrgencyLow,
			Blocking: true,
		}
	}

	// 5. Warnings when the threshold includes them.
	if alert.Severity == model.SeverityWarning &&
		(p.EscalationThreshold == model.EscalateAll || p.EscalationThreshold == model.EscalateWarnings) {
		return Escalation{
			Escalate: true,
			Reason:   "warning meets escalation threshold",
			Urgency:  UrgencyMedium,
			Blocking: p.Autonomy == model.AutonomyLow,
		}
	}

	return Escalation{}
}

// LoopState carries the reporting clock for ShouldSendProgressReport.
type LoopState struct {
	StartedAt    time.Time
	LastReportAt time.Time // zero when no report has been sent yet
}

// ShouldSendProgressReport reports whether the periodic report is due.
// A zero or negative interval disables reporting entirely.
func ShouldSendProgressReport(p model.HumanPolicy, ls LoopState) bool {
	if p.ProgressReportMin <= 0 {
		return false
	}

	since := ls.LastReportAt
	if since.IsZero() {
		since = ls.StartedAt
	}
	if since.IsZero() {
		return false
	}

	return time.Since(since).Minutes() >= float64(p.ProgressReportMin)
}
