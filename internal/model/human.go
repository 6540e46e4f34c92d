package model

// InputPriority orders pending human instructions.
type InputPriority string

const (
	InputPriorityUrgent InputPriority = "urgent"
	InputPriorityNormal InputPriority = "normal"
	InputPriorityLow    InputPriority = "low"
)

var inputPriorityRanks = map[InputPriority]int{
	InputPriorityUrgent: 0,
	InputPriorityNormal: 1,
	InputPriorityLow:    2,
}

// InputPriorityRank returns the sort rank (lower = picked first). Unknown
// priorities rank last.
func InputPriorityRank(p InputPriority) int {
	if r, ok := inputPriorityRanks[p]; ok {
		return r
	}
	return len(inputPriorityRanks)
}

// InputType categorizes what the operator is asking for.
type InputType string

const (
	InputAlertGuidance      InputType = "alert_resolution_guidance"
	InputTaskAddition       InputType = "task_addition"
	InputTaskModification   InputType = "task_modification"
	InputPolicyChange       InputType = "policy_change"
	InputGeneralInstruction InputType = "general_instruction"
)

// InputQueue is the declarative human-input store (state/inputs.yaml).
type InputQueue struct {
	SchemaVersion int          `yaml:"schema_version"`
	FileType      string       `yaml:"file_type"`
	Inputs        []HumanInput `yaml:"inputs"`
}

// HumanInput is one operator instruction. The driver marks it processed
// after the selector routes it; it stays in the file for audit.
type HumanInput struct {
	ID             string        `yaml:"id"`
	Timestamp      string        `yaml:"timestamp"`
	Priority       InputPriority `yaml:"priority"`
	Type           InputType     `yaml:"type"`
	Content        string        `yaml:"content"`
	Status         InputStatus   `yaml:"status"`
	RelatedAlertID string        `yaml:"related_alert_id,omitempty"`
	ProcessedAt    string        `yaml:"processed_at,omitempty"`
}
