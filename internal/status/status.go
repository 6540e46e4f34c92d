// Package status builds a point-in-time snapshot of a wildloop project:
// daemon liveness, state-store counts, active alerts, barrier states, and
// what the loop would pick next.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/msageha/wildloop/internal/eventlog"
	"github.com/msageha/wildloop/internal/lock"
	"github.com/msageha/wildloop/internal/model"
	"github.com/msageha/wildloop/internal/selector"
	"github.com/msageha/wildloop/internal/store"
)

type Snapshot struct {
	Daemon   DaemonStatus    `json:"daemon"`
	Tasks    TaskCounts      `json:"tasks"`
	Alerts   []AlertStatus   `json:"alerts,omitempty"`
	Barriers []BarrierStatus `json:"barriers,omitempty"`
	Inputs   InputCounts     `json:"inputs"`
	Next     NextWork        `json:"next"`
}

type DaemonStatus struct {
	Running bool `json:"running"`
	Pid     int  `json:"pid,omitempty"`
}

type TaskCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Complete   int `json:"complete"`
}

type AlertStatus struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Status   string `json:"status"`
}

type BarrierStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type InputCounts struct {
	Pending int `json:"pending"`
}

type NextWork struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Collect builds a snapshot from the state directory rooted at base.
func Collect(base string) (*Snapshot, error) {
	st := store.New(base, lock.NewMutexMap())
	snap := &Snapshot{}

	held, pid := lock.Probe(filepath.Join(base, "locks", "daemon.lock"))
	snap.Daemon = DaemonStatus{Running: held, Pid: pid}

	tl, err := st.LoadTasks()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, task := range tl.Flatten() {
		switch task.Status {
		case model.TaskStatusTodo:
			snap.Tasks.Todo++
		case model.TaskStatusInProgress:
			snap.Tasks.InProgress++
		case model.TaskStatusComplete:
			snap.Tasks.Complete++
		}
	}

	bl, err := st.LoadBarriers()
	if err != nil {
		return nil, fmt.Errorf("load barriers: %w", err)
	}
	for _, b := range bl.Barriers {
		snap.Barriers = append(snap.Barriers, BarrierStatus{
			ID:     b.ID,
			Name:   b.Name,
			Type:   string(b.Type),
			Status: string(b.Status),
		})
	}

	iq, err := st.LoadInputs()
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	var pendingInputs []model.HumanInput
	for _, in := range iq.Inputs {
		if in.Status == model.InputStatusPending {
			pendingInputs = append(pendingInputs, in)
		}
	}
	snap.Inputs.Pending = len(pendingInputs)

	alertLog, err := eventlog.Open(filepath.Join(base, "events", "alerts.jsonl"), 0)
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
	}
	defer alertLog.Close()
	alerts, err := alertLog.LoadCurrent()
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	for _, a := range alerts {
		snap.Alerts = append(snap.Alerts, AlertStatus{
			ID:       a.ID,
			Severity: string(a.Severity),
			Source:   a.Source,
			Status:   string(a.Status),
		})
	}

	policy, err := st.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	sel := selector.SelectWork(tl, alerts, bl, pendingInputs, policy)
	snap.Next = NextWork{Kind: string(sel.Kind), Reason: sel.Reason}

	return snap, nil
}

// Run collects and prints the snapshot to stdout.
func Run(base string, jsonOutput bool) error {
	snap, err := Collect(base)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printSnapshot(snap)
	return nil
}

func printSnapshot(s *Snapshot) {
	if s.Daemon.Running {
		fmt.Printf("daemon:   running (pid %d)\n", s.Daemon.Pid)
	} else {
		fmt.Println("daemon:   stopped")
	}

	fmt.Printf("tasks:    %d todo, %d in progress, %d complete\n",
		s.Tasks.Todo, s.Tasks.InProgress, s.Tasks.Complete)
	fmt.Printf("inputs:   %d pending\n", s.Inputs.Pending)

	if len(s.Alerts) == 0 {
		fmt.Println("alerts:   none active")
	} else {
		fmt.Printf("alerts:   %d active\n", len(s.Alerts))
		for _, a := range s.Alerts {
			fmt.Printf("  [%s] %s %s (%s)\n", a.Severity, a.ID, a.Source, a.Status)
		}
	}

	if len(s.Barriers) > 0 {
		fmt.Println("barriers:")
		for _, b := range s.Barriers {
			fmt.Printf("  %-10s %s (%s, %s)\n", b.Status, b.Name, b.ID, b.Type)
		}
	}

	fmt.Printf("next:     %s (%s)\n", s.Next.Kind, s.Next.Reason)
}
