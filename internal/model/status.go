package model

import "fmt"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusComplete   TaskStatus = "complete"
)

type AlertStatus string

const (
	AlertStatusPending    AlertStatus = "pending"
	AlertStatusInProgress AlertStatus = "in_progress"
	AlertStatusResolved   AlertStatus = "resolved"
	AlertStatusEscalated  AlertStatus = "escalated"
)

type BarrierStatus string

const (
	BarrierStatusWaiting   BarrierStatus = "waiting"
	BarrierStatusSatisfied BarrierStatus = "satisfied"
	BarrierStatusFailed    BarrierStatus = "failed"
)

type InputStatus string

const (
	InputStatusPending   InputStatus = "pending"
	InputStatusProcessed InputStatus = "processed"
)

var terminalAlertStatuses = map[AlertStatus]bool{
	AlertStatusResolved: true,
}

var terminalBarrierStatuses = map[BarrierStatus]bool{
	BarrierStatusSatisfied: true,
	BarrierStatusFailed:    true,
}

// Task transitions: todo ↔ in_progress → complete
// in_progress → todo puts a task back when the driver abandons it mid-flight.
var validTaskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusTodo: {
		TaskStatusInProgress: true,
	},
	TaskStatusInProgress: {
		TaskStatusTodo:     true,
		TaskStatusComplete: true,
	},
}

// Alert transitions: pending → in_progress → resolved|escalated,
// escalated → in_progress when a human hands the alert back.
var validAlertTransitions = map[AlertStatus]map[AlertStatus]bool{
	AlertStatusPending: {
		AlertStatusInProgress: true,
		AlertStatusResolved:   true,
		AlertStatusEscalated:  true,
	},
	AlertStatusInProgress: {
		AlertStatusPending:   true,
		AlertStatusResolved:  true,
		AlertStatusEscalated: true,
	},
	AlertStatusEscalated: {
		AlertStatusInProgress: true,
		AlertStatusResolved:   true,
	},
}

func IsAlertTerminal(s AlertStatus) bool {
	return terminalAlertStatuses[s]
}

func IsBarrierTerminal(s BarrierStatus) bool {
	return terminalBarrierStatuses[s]
}

func ValidateTaskTransition(from, to TaskStatus) error {
	if from == TaskStatusComplete {
		return fmt.Errorf("cannot transition from terminal task status %q", from)
	}
	allowed, ok := validTaskTransitions[from]
	if !ok {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task transition: %q → %q", from, to)
	}
	return nil
}

func ValidateAlertTransition(from, to AlertStatus) error {
	// Re-appending the same status is a context patch, not a transition.
	if from == to {
		return nil
	}
	if IsAlertTerminal(from) {
		return fmt.Errorf("cannot transition from terminal alert status %q", from)
	}
	allowed, ok := validAlertTransitions[from]
	if !ok {
		return fmt.Errorf("unknown alert status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid alert transition: %q → %q", from, to)
	}
	return nil
}
