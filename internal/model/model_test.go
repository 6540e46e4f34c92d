package model

import (
	"testing"
)

func TestValidateTaskTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskStatusTodo, TaskStatusInProgress, true},
		{TaskStatusInProgress, TaskStatusComplete, true},
		{TaskStatusInProgress, TaskStatusTodo, true},
		{TaskStatusTodo, TaskStatusComplete, false},
		{TaskStatusComplete, TaskStatusTodo, false},
		{TaskStatusComplete, TaskStatusInProgress, false},
	}
	for _, c := range cases {
		err := ValidateTaskTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s → %s: unexpected error: %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s → %s: expected error, got nil", c.from, c.to)
		}
	}
}

func TestValidateAlertTransition(t *testing.T) {
	cases := []struct {
		from, to AlertStatus
		ok       bool
	}{
		{AlertStatusPending, AlertStatusInProgress, true},
		{AlertStatusInProgress, AlertStatusResolved, true},
		{AlertStatusInProgress, AlertStatusEscalated, true},
		{AlertStatusEscalated, AlertStatusInProgress, true},
		{AlertStatusInProgress, AlertStatusInProgress, true},
		{AlertStatusPending, AlertStatusPending, true},
		{AlertStatusResolved, AlertStatusPending, false},
		{AlertStatusResolved, AlertStatusInProgress, false},
	}
	for _, c := range cases {
		err := ValidateAlertTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s → %s: unexpected error: %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s → %s: expected error, got nil", c.from, c.to)
		}
	}
}

func TestSeverityRank_Ordering(t *testing.T) {
	if !(SeverityRank(SeverityCritical) < SeverityRank(SeverityWarning)) {
		t.Error("critical should rank before warning")
	}
	if !(SeverityRank(SeverityWarning) < SeverityRank(SeverityInfo)) {
		t.Error("warning should rank before info")
	}
	if SeverityRank(Severity("bogus")) <= SeverityRank(SeverityInfo) {
		t.Error("unknown severity should rank after info")
	}
}

func TestInputPriorityRank_Ordering(t *testing.T) {
	if !(InputPriorityRank(InputPriorityUrgent) < InputPriorityRank(InputPriorityNormal)) {
		t.Error("urgent should rank before normal")
	}
	if !(InputPriorityRank(InputPriorityNormal) < InputPriorityRank(InputPriorityLow)) {
		t.Error("normal should rank before low")
	}
}

func TestTaskList_FlattenDepthFirst(t *testing.T) {
	tl := &TaskList{
		Tasks: []Task{
			{ID: "task_0000000001_aaaaaaaa", Subtasks: []Task{
				{ID: "task_0000000002_bbbbbbbb"},
				{ID: "task_0000000003_cccccccc", Subtasks: []Task{
					{ID: "task_0000000004_dddddddd"},
				}},
			}},
			{ID: "task_0000000005_eeeeeeee"},
		},
	}

	flat := tl.Flatten()
	want := []string{
		"task_0000000001_aaaaaaaa",
		"task_0000000002_bbbbbbbb",
		"task_0000000003_cccccccc",
		"task_0000000004_dddddddd",
		"task_0000000005_eeeeeeee",
	}
	if len(flat) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(flat))
	}
	for i, id := range want {
		if flat[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, flat[i].ID)
		}
	}
}

func TestTaskList_FlattenAliasesTree(t *testing.T) {
	tl := &TaskList{Tasks: []Task{{ID: "task_0000000001_aaaaaaaa", Status: TaskStatusTodo}}}
	tl.Flatten()[0].Status = TaskStatusComplete
	if tl.Tasks[0].Status != TaskStatusComplete {
		t.Error("Flatten should return pointers into the tree")
	}
}

func TestTask_SubtasksComplete(t *testing.T) {
	task := Task{
		ID: "parent",
		Subtasks: []Task{
			{ID: "a", Status: TaskStatusComplete},
			{ID: "b", Status: TaskStatusComplete, Subtasks: []Task{
				{ID: "b1", Status: TaskStatusTodo},
			}},
		},
	}
	if task.SubtasksComplete() {
		t.Error("incomplete nested subtask should block the container")
	}

	task.Subtasks[1].Subtasks[0].Status = TaskStatusComplete
	if !task.SubtasksComplete() {
		t.Error("all subtasks complete, container should be ready")
	}
}

func TestBarrier_Blocking(t *testing.T) {
	b := Barrier{Status: BarrierStatusWaiting}
	if !b.Blocking() {
		t.Error("waiting barrier should block")
	}
	b.Status = BarrierStatusSatisfied
	if b.Blocking() {
		t.Error("satisfied barrier should not block")
	}
	b.Status = BarrierStatusFailed
	if b.Blocking() {
		t.Error("failed barrier is terminal and should not block")
	}
}

func TestBarrier_AgentCanProgress(t *testing.T) {
	active := []BarrierType{BarrierCommandCheck, BarrierFileExists}
	passive := []BarrierType{BarrierCountBased, BarrierWebhook, BarrierManual}

	for _, typ := range active {
		b := Barrier{Type: typ}
		if !b.AgentCanProgress() {
			t.Errorf("%s: agent should be able to progress", typ)
		}
	}
	for _, typ := range passive {
		b := Barrier{Type: typ}
		if b.AgentCanProgress() {
			t.Errorf("%s: agent should only wait", typ)
		}
	}
}

func TestBarrier_Pollable(t *testing.T) {
	for _, typ := range []BarrierType{BarrierWebhook, BarrierManual} {
		b := Barrier{Type: typ}
		if b.Pollable() {
			t.Errorf("%s barriers must never be polled", typ)
		}
	}
}

func TestGenerateID_Format(t *testing.T) {
	for _, typ := range []IDType{IDTypeTask, IDTypeAlert, IDTypeBarrier, IDTypeInput} {
		id, err := GenerateID(typ)
		if err != nil {
			t.Fatalf("GenerateID(%s): %v", typ, err)
		}
		if !ValidateID(id) {
			t.Errorf("generated ID %q does not validate", id)
		}
		parsed, err := ParseIDType(id)
		if err != nil {
			t.Fatalf("ParseIDType(%s): %v", id, err)
		}
		if parsed != typ {
			t.Errorf("expected type %s, got %s", typ, parsed)
		}
	}
}

func TestGenerateID_InvalidType(t *testing.T) {
	if _, err := GenerateID(IDType("nope")); err == nil {
		t.Error("expected error for invalid ID type")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Monitor.TickIntervalSec != 5 {
		t.Errorf("expected tick interval 5, got %d", cfg.Monitor.TickIntervalSec)
	}
	if cfg.Monitor.CheckTimeoutSec != 30 {
		t.Errorf("expected check timeout 30, got %d", cfg.Monitor.CheckTimeoutSec)
	}
	if cfg.EventLog.MaxSizeBytes != 100*1024*1024 {
		t.Errorf("expected 100MB rotation threshold, got %d", cfg.EventLog.MaxSizeBytes)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info level default, got %s", cfg.Logging.Level)
	}
}
