package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/wildloop/internal/model"
)

func emptyTasks() *model.TaskList       { return &model.TaskList{} }
func emptyBarriers() *model.BarrierList { return &model.BarrierList{} }

func pendingAlert(id string, sev model.Severity) model.Alert {
	return model.Alert{ID: id, Severity: sev, Status: model.AlertStatusPending}
}

func TestSelectWork_HumanInputAlwaysWins(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo},
	}}
	alerts := []model.Alert{pendingAlert("a1", model.SeverityCritical)}
	inputs := []model.HumanInput{
		{ID: "i1", Priority: model.InputPriorityLow, Status: model.InputStatusPending},
	}

	sel := SelectWork(tasks, alerts, emptyBarriers(), inputs, model.DefaultPolicy())
	require.Equal(t, KindHumanInput, sel.Kind)
	assert.Equal(t, "i1", sel.Input.ID)
}

func TestSelectWork_UrgentInputBeatsEarlierNormal(t *testing.T) {
	inputs := []model.HumanInput{
		{ID: "i1", Priority: model.InputPriorityNormal, Status: model.InputStatusPending},
		{ID: "i2", Priority: model.InputPriorityUrgent, Status: model.InputStatusPending},
		{ID: "i3", Priority: model.InputPriorityUrgent, Status: model.InputStatusPending},
	}

	sel := SelectWork(emptyTasks(), nil, emptyBarriers(), inputs, model.DefaultPolicy())
	require.Equal(t, KindHumanInput, sel.Kind)
	// ties break by original order
	assert.Equal(t, "i2", sel.Input.ID)
}

func TestSelectWork_ProcessedInputsIgnored(t *testing.T) {
	inputs := []model.HumanInput{
		{ID: "i1", Priority: model.InputPriorityUrgent, Status: model.InputStatusProcessed},
	}

	sel := SelectWork(emptyTasks(), nil, emptyBarriers(), inputs, model.DefaultPolicy())
	assert.Equal(t, KindComplete, sel.Kind)
}

func TestSelectWork_InProgressAlertBeforePending(t *testing.T) {
	alerts := []model.Alert{
		pendingAlert("a1", model.SeverityCritical),
		{ID: "a2", Severity: model.SeverityInfo, Status: model.AlertStatusInProgress},
	}

	sel := SelectWork(emptyTasks(), alerts, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindAlert, sel.Kind)
	assert.Equal(t, "a2", sel.Alert.ID, "finish the started alert before new interrupts")
}

func TestSelectWork_CriticalBeatsInfo(t *testing.T) {
	alerts := []model.Alert{
		pendingAlert("a1", model.SeverityInfo),
		pendingAlert("a2", model.SeverityCritical),
	}

	sel := SelectWork(emptyTasks(), alerts, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindAlert, sel.Kind)
	assert.Equal(t, "a2", sel.Alert.ID)
}

func TestSelectWork_AlertSeverityTieBreaksByLogOrder(t *testing.T) {
	alerts := []model.Alert{
		pendingAlert("a1", model.SeverityWarning),
		pendingAlert("a2", model.SeverityWarning),
	}

	sel := SelectWork(emptyTasks(), alerts, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindAlert, sel.Kind)
	assert.Equal(t, "a1", sel.Alert.ID)
}

func TestSelectWork_AlertsBeatTasks(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo},
	}}
	alerts := []model.Alert{pendingAlert("a1", model.SeverityInfo)}

	sel := SelectWork(tasks, alerts, emptyBarriers(), nil, model.DefaultPolicy())
	assert.Equal(t, KindAlert, sel.Kind)
}

func TestSelectWork_InProgressTaskBeforeTodo(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo},
		{ID: "t2", Priority: 9, Status: model.TaskStatusInProgress},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "t2", sel.Task.ID)
}

func TestSelectWork_LowestPriorityTodoWins(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 5, Status: model.TaskStatusTodo},
		{ID: "t2", Priority: 2, Status: model.TaskStatusTodo},
		{ID: "t3", Priority: 2, Status: model.TaskStatusTodo},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	// priority 2 wins; tie breaks by original order
	assert.Equal(t, "t2", sel.Task.ID)
}

func TestSelectWork_DependsOnGates(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "tX", Priority: 9, Status: model.TaskStatusTodo},
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, DependsOn: []string{"tX"}},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "tX", sel.Task.ID, "gated task must not be selected despite lower priority")

	// Once the dependency completes, the gated task becomes selectable.
	tasks.Tasks[0].Status = model.TaskStatusComplete
	sel = SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "t1", sel.Task.ID)
}

func TestSelectWork_UnknownDependencyBlocks(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, DependsOn: []string{"ghost"}},
		{ID: "t2", Priority: 5, Status: model.TaskStatusTodo},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "t2", sel.Task.ID)
}

func TestSelectWork_WaitingBarrierGates(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, BlockedBy: "b1"},
		{ID: "t2", Priority: 5, Status: model.TaskStatusTodo},
	}}
	barriers := &model.BarrierList{Barriers: []model.Barrier{
		{ID: "b1", Type: model.BarrierManual, Status: model.BarrierStatusWaiting},
	}}

	sel := SelectWork(tasks, nil, barriers, nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "t2", sel.Task.ID)

	barriers.Barriers[0].Status = model.BarrierStatusSatisfied
	sel = SelectWork(tasks, nil, barriers, nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "t1", sel.Task.ID)
}

func TestSelectWork_FailedBarrierUnblocks(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, BlockedBy: "b1"},
	}}
	barriers := &model.BarrierList{Barriers: []model.Barrier{
		{ID: "b1", Type: model.BarrierCommandCheck, Status: model.BarrierStatusFailed},
	}}

	sel := SelectWork(tasks, nil, barriers, nil, model.DefaultPolicy())
	assert.Equal(t, KindTask, sel.Kind, "terminal failed barrier must not wedge the loop")
}

func TestSelectWork_BlockedWithCanHelp(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, BlockedBy: "b1"},
		{ID: "t2", Priority: 1, Status: model.TaskStatusTodo, BlockedBy: "b2"},
	}}
	barriers := &model.BarrierList{Barriers: []model.Barrier{
		{ID: "b1", Type: model.BarrierManual, Status: model.BarrierStatusWaiting},
		{ID: "b2", Type: model.BarrierFileExists, Status: model.BarrierStatusWaiting},
	}}

	sel := SelectWork(tasks, nil, barriers, nil, model.DefaultPolicy())
	require.Equal(t, KindBlocked, sel.Kind)
	require.Len(t, sel.BlockingBarriers, 2)
	assert.True(t, sel.CanHelp, "file_exists is a type the agent can progress")
}

func TestSelectWork_BlockedPassiveOnly(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 0, Status: model.TaskStatusTodo, BlockedBy: "b1"},
	}}
	barriers := &model.BarrierList{Barriers: []model.Barrier{
		{ID: "b1", Type: model.BarrierWebhook, Status: model.BarrierStatusWaiting},
	}}

	sel := SelectWork(tasks, nil, barriers, nil, model.DefaultPolicy())
	require.Equal(t, KindBlocked, sel.Kind)
	assert.False(t, sel.CanHelp)
}

func TestSelectWork_ContainerWaitsForSubtasks(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "parent", Priority: 0, Status: model.TaskStatusTodo, Subtasks: []model.Task{
			{ID: "child", Priority: 3, Status: model.TaskStatusTodo},
		}},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "child", sel.Task.ID)

	tasks.Tasks[0].Subtasks[0].Status = model.TaskStatusComplete
	sel = SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	require.Equal(t, KindTask, sel.Kind)
	assert.Equal(t, "parent", sel.Task.ID)
}

func TestSelectWork_Complete(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Status: model.TaskStatusComplete},
	}}

	sel := SelectWork(tasks, nil, emptyBarriers(), nil, model.DefaultPolicy())
	assert.Equal(t, KindComplete, sel.Kind)
}

func TestSelectWork_PureAndRerunnable(t *testing.T) {
	tasks := &model.TaskList{Tasks: []model.Task{
		{ID: "t1", Priority: 1, Status: model.TaskStatusTodo},
	}}
	alerts := []model.Alert{pendingAlert("a1", model.SeverityWarning)}

	first := SelectWork(tasks, alerts, emptyBarriers(), nil, model.DefaultPolicy())
	second := SelectWork(tasks, alerts, emptyBarriers(), nil, model.DefaultPolicy())
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Alert.ID, second.Alert.ID)

	// Mutating the returned value must not leak into the snapshot.
	first.Alert.Status = model.AlertStatusResolved
	assert.Equal(t, model.AlertStatusPending, alerts[0].Status)
}
