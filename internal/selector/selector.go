// Package selector decides the single next unit of work for the loop.
//
// SelectWork is a pure function over a snapshot of the four state
// collections plus the current policy. It has no side effects, never fails,
// and is safe to re-run against partially updated state: the driver calls it
// once per tick and again whenever a wake signal arrives.
package selector

import (
	"github.com/msageha/wildloop/internal/model"
)

// Kind is the category of a work selection.
type Kind string

const (
	KindHumanInput Kind = "human_input"
	KindAlert      Kind = "alert"
	KindTask       Kind = "task"
	KindBlocked    Kind = "blocked"
	KindComplete   Kind = "complete"
)

// WorkSelection is the one decision produced per tick.
type WorkSelection struct {
	Kind             Kind               `json:"kind"`
	Input            *model.HumanInput  `json:"input,omitempty"`
	Alert            *model.Alert       `json:"alert,omitempty"`
	Task             *model.Task        `json:"task,omitempty"`
	BlockingBarriers []model.Barrier    `json:"blocking_barriers,omitempty"`
	// CanHelp is set on blocked selections: true when at least one blocking
	// barrier is of a type the agent can actively progress (create the file,
	// make the check command pass) rather than only wait out.
	CanHelp bool   `json:"can_help,omitempty"`
	Reason  string `json:"reason"`
}

// SelectWork picks the next unit of work. Priority order, first match wins:
// pending human input, the alert already in progress, pending alerts by
// severity, the unblocked task already in progress, the best unblocked todo
// task, blocked, complete. Ties always break by original order, so the
// function is deterministic for a given snapshot.
func SelectWork(
	tasks *model.TaskList,
	alerts []model.Alert,
	barriers *model.BarrierList,
	inputs []model.HumanInput,
	policy model.HumanPolicy,
) WorkSelection {
	_ = policy // ordering is policy-independent; policy drives escalation, not selection

	// 1. Pending human input, best priority rank first.
	if in := bestPendingInput(inputs); in != nil {
		v := *in
		return WorkSelection{Kind: KindHumanInput, Input: &v, Reason: "pending operator instruction"}
	}

	// 2. An alert already being worked: finish before taking new interrupts.
	// At most one is expected; the first in log order wins if several exist.
	for i := range alerts {
		if alerts[i].Status == model.AlertStatusInProgress {
			v := alerts[i]
			return WorkSelection{Kind: KindAlert, Alert: &v, Reason: "alert already in progress"}
		}
	}

	// 3. Pending alerts, most severe first.
	if a := bestPendingAlert(alerts); a != nil {
		v := *a
		return WorkSelection{Kind: KindAlert, Alert: &v, Reason: "pending alert"}
	}

	flat := tasks.Flatten()
	taskByID := make(map[string]*model.Task, len(flat))
	for _, t := range flat {
		taskByID[t.ID] = t
	}

	// 4. A task already in progress, unless something started blocking it.
	for _, t := range flat {
		if t.Status == model.TaskStatusInProgress && !isBlocked(t, taskByID, barriers) {
			v := *t
			return WorkSelection{Kind: KindTask, Task: &v, Reason: "task already in progress"}
		}
	}

	// 5. Best unblocked todo task by numeric priority.
	var best *model.Task
	for _, t := range flat {
		if t.Status != model.TaskStatusTodo {
			continue
		}
		if isBlocked(t, taskByID, barriers) {
			continue
		}
		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}
	if best != nil {
		v := *best
		return WorkSelection{Kind: KindTask, Task: &v, Reason: "next available task"}
	}

	// 6. Incomplete work remains but everything is gated on waiting barriers.
	blocking := blockingBarriers(flat, barriers)
	if len(blocking) > 0 {
		canHelp := false
		for i := range blocking {
			if blocking[i].AgentCanProgress() {
				canHelp = true
				break
			}
		}
		return WorkSelection{
			Kind:             KindBlocked,
			BlockingBarriers: blocking,
			CanHelp:          canHelp,
			Reason:           "all remaining tasks gated on waiting barriers",
		}
	}

	// 7. Nothing left to do.
	return WorkSelection{Kind: KindComplete, Reason: "no alerts, no selectable tasks, no blocking barriers"}
}

func bestPendingInput(inputs []model.HumanInput) *model.HumanInput {
	var best *model.HumanInput
	for i := range inputs {
		in := &inputs[i]
		if in.Status != model.InputStatusPending {
			continue
		}
		if best == nil || model.InputPriorityRank(in.Priority) < model.InputPriorityRank(best.Priority) {
			best = in
		}
	}
	return best
}

func bestPendingAlert(alerts []model.Alert) *model.Alert {
	var best *model.Alert
	for i := range alerts {
		a := &alerts[i]
		if a.Status != model.AlertStatusPending {
			continue
		}
		if best == nil || model.SeverityRank(a.Severity) < model.SeverityRank(best.Severity) {
			best = a
		}
	}
	return best
}

// isBlocked reports whether a task may not be selected yet: any dependsOn
// task is not complete, its gating barrier is still waiting, or it is a
// container whose subtasks are not all complete. Terminal barrier states
// (satisfied and failed) never block.
func isBlocked(t *model.Task, taskByID map[string]*model.Task, barriers *model.BarrierList) bool {
	for _, depID := range t.DependsOn {
		dep, ok := taskByID[depID]
		if !ok {
			// unknown dependency: conservatively blocked until the
			// referenced task shows up
			return true
		}
		if dep.Status != model.TaskStatusComplete {
			return true
		}
	}

	if t.BlockedBy != "" && barriers != nil {
		if b := barriers.FindBarrier(t.BlockedBy); b != nil && b.Blocking() {
			return true
		}
	}

	if t.HasSubtasks() && !t.SubtasksComplete() {
		return true
	}

	return false
}

// blockingBarriers collects the distinct waiting barriers that directly gate
// any incomplete task, in barrier-list order.
func blockingBarriers(flat []*model.Task, barriers *model.BarrierList) []model.Barrier {
	if barriers == nil {
		return nil
	}

	gated := make(map[string]bool)
	for _, t := range flat {
		if t.Status == model.TaskStatusComplete {
			continue
		}
		if t.BlockedBy != "" {
			gated[t.BlockedBy] = true
		}
	}

	var out []model.Barrier
	for i := range barriers.Barriers {
		b := &barriers.Barriers[i]
		if gated[b.ID] && b.Blocking() {
			out = append(out, *b)
		}
	}
	return out
}
