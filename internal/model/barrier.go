package model

// BarrierType selects how a barrier is checked.
type BarrierType string

const (
	// BarrierCommandCheck runs a shell command; satisfied on matching exit
	// code (default 0) or, when ExpectedOutput is set, matching trimmed stdout.
	BarrierCommandCheck BarrierType = "command_check"
	// BarrierFileExists is satisfied once the configured path exists.
	BarrierFileExists BarrierType = "file_exists"
	// BarrierCountBased runs UpdateCommand, parses stdout as an integer, and
	// is satisfied once that integer reaches TargetCount.
	BarrierCountBased BarrierType = "count_based"
	// BarrierWebhook and BarrierManual are never polled; only an explicit
	// external status mutation satisfies them.
	BarrierWebhook BarrierType = "webhook"
	BarrierManual  BarrierType = "manual"
)

// BarrierList is the declarative barrier store (state/barriers.yaml).
// The whole file is rewritten atomically on every mutation so the monitor
// and the driver never observe a partial write.
type BarrierList struct {
	SchemaVersion int       `yaml:"schema_version"`
	FileType      string    `yaml:"file_type"`
	Barriers      []Barrier `yaml:"barriers"`
}

// Barrier is an external gating condition. All fields needed to resume
// polling after a restart are persisted.
type Barrier struct {
	ID   string      `yaml:"id"`
	Name string      `yaml:"name"`
	Type BarrierType `yaml:"type"`

	CheckCommand   string `yaml:"check_command,omitempty"`   // command_check
	ExpectedExit   int    `yaml:"expected_exit,omitempty"`   // command_check, default 0
	ExpectedOutput string `yaml:"expected_output,omitempty"` // command_check, overrides exit match
	FilePath       string `yaml:"file_path,omitempty"`       // file_exists
	TargetCount    int    `yaml:"target_count,omitempty"`    // count_based
	UpdateCommand  string `yaml:"update_command,omitempty"`  // count_based

	PollIntervalSec int           `yaml:"poll_interval_sec"`
	Status          BarrierStatus `yaml:"status"`
	LastCheckAt     string        `yaml:"last_check_at,omitempty"`
	LastCheckResult string        `yaml:"last_check_result,omitempty"`
	SatisfiedAt     string        `yaml:"satisfied_at,omitempty"`
	Blocks          []string      `yaml:"blocks,omitempty"` // task IDs gated on this barrier
	CreatedAt       string        `yaml:"created_at"`
}

// Blocking reports whether the barrier currently gates its dependents.
// Only waiting blocks: satisfied and failed are both terminal and both
// unblock. Operators reset a failed barrier back to waiting when blocking
// was the intent.
func (b *Barrier) Blocking() bool {
	return b.Status == BarrierStatusWaiting
}

// Pollable reports whether the monitor can actively check this barrier type.
func (b *Barrier) Pollable() bool {
	switch b.Type {
	case BarrierCommandCheck, BarrierFileExists, BarrierCountBased:
		return true
	default:
		return false
	}
}

// AgentCanProgress reports whether the agent itself could plausibly clear
// the barrier (create the file, make the check command pass) rather than
// only wait for an external actor.
func (b *Barrier) AgentCanProgress() bool {
	return b.Type == BarrierCommandCheck || b.Type == BarrierFileExists
}

// FindBarrier locates a barrier by ID, or nil.
func (bl *BarrierList) FindBarrier(id string) *Barrier {
	for i := range bl.Barriers {
		if bl.Barriers[i].ID == id {
			return &bl.Barriers[i]
		}
	}
	return nil
}
