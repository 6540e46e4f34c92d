package model

// Severity orders alerts: critical outranks warning outranks info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

// SeverityRank returns the sort rank for a severity (lower = more severe).
// Unknown severities rank after info so malformed records never preempt.
func SeverityRank(s Severity) int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return len(severityRanks)
}

// Alert is one anomaly record in the append-only event log. An alert is
// never updated in place: every mutation appends a full record with the same
// ID, and the last record for an ID in log order is the current state.
type Alert struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"` // RFC3339
	Severity    Severity          `json:"severity"`
	Source      string            `json:"source"` // job/run that raised it
	Type        string            `json:"type"`   // e.g. "oom", "divergence"
	Description string            `json:"description"`
	Status      AlertStatus       `json:"status"`
	Context     map[string]string `json:"context,omitempty"`
	ResolvedAt  string            `json:"resolved_at,omitempty"`
	EscalatedAt string            `json:"escalated_at,omitempty"`
}
