package model

// PolicyMode describes how interactively the loop is being run.
type PolicyMode string

const (
	ModeInteractive    PolicyMode = "interactive"
	ModeSemiAutonomous PolicyMode = "semi_autonomous"
	ModeAutonomous     PolicyMode = "autonomous"
	ModeHandsOff       PolicyMode = "hands_off"
)

// Autonomy is the dial for how much escalation must block the loop.
type Autonomy string

const (
	AutonomyLow    Autonomy = "low"
	AutonomyMedium Autonomy = "medium"
	AutonomyHigh   Autonomy = "high"
)

// EscalationThreshold controls which alert severities reach a human.
type EscalationThreshold string

const (
	EscalateAll          EscalationThreshold = "all"
	EscalateWarnings     EscalationThreshold = "warnings"
	EscalateCriticalOnly EscalationThreshold = "critical_only"
	EscalateNever        EscalationThreshold = "never"
)

// PolicyFile wraps the policy document (state/policy.yaml).
type PolicyFile struct {
	SchemaVersion int         `yaml:"schema_version"`
	FileType      string      `yaml:"file_type"`
	Policy        HumanPolicy `yaml:"policy"`
}

// HumanPolicy is the standing escalation/reporting configuration. It has no
// identity beyond "current policy"; the driver reloads it every tick.
type HumanPolicy struct {
	Mode                  PolicyMode          `yaml:"mode"`
	Autonomy              Autonomy            `yaml:"autonomy"`
	MaxRetryAttempts      int                 `yaml:"max_retry_attempts"`
	EscalationThreshold   EscalationThreshold `yaml:"escalation_threshold"`
	ProgressReportMin     int                 `yaml:"progress_report_interval_min"` // 0 = disabled
	ContextSwitchPenalty  int                 `yaml:"context_switch_penalty"`
	EscalateOn            EscalationTriggers  `yaml:"escalate_on"`
	Instructions          string              `yaml:"instructions,omitempty"`
}

// EscalationTriggers are the conditions that force a human into the loop.
type EscalationTriggers struct {
	RepeatedFailures  int  `yaml:"repeated_failures"`
	StuckDurationMin  int  `yaml:"stuck_duration_min"`
	CriticalAlerts    bool `yaml:"critical_alerts"`
	UnexpectedSuccess bool `yaml:"unexpected_success"`
}

// DefaultPolicy is the policy written by init: semi-autonomous with a
// conservative escalation posture.
func DefaultPolicy() HumanPolicy {
	return HumanPolicy{
		Mode:                ModeSemiAutonomous,
		Autonomy:            AutonomyMedium,
		MaxRetryAttempts:    3,
		EscalationThreshold: EscalateWarnings,
		ProgressReportMin:   60,
		EscalateOn: EscalationTriggers{
			RepeatedFailures: 3,
			StuckDurationMin: 120,
			CriticalAlerts:   true,
		},
	}
}
