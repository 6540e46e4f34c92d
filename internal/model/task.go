package model

// TaskList is the declarative task store (state/tasks.yaml).
type TaskList struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
	Tasks         []Task `yaml:"tasks"`
}

// Task is one unit of deferred work. Tasks are never deleted; the driver
// mutates status in place and rewrites the whole list.
type Task struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Priority    int        `yaml:"priority"` // lower = more urgent
	Status      TaskStatus `yaml:"status"`
	DependsOn   []string   `yaml:"depends_on,omitempty"` // task IDs, all must be complete
	BlockedBy   string     `yaml:"blocked_by,omitempty"` // barrier ID gate
	Subtasks    []Task     `yaml:"subtasks,omitempty"`
	ParentID    string     `yaml:"parent_id,omitempty"` // back-reference, non-owning
	CreatedAt   string     `yaml:"created_at"`
}

// HasSubtasks reports whether the task is a container for finer-grained work.
func (t *Task) HasSubtasks() bool {
	return len(t.Subtasks) > 0
}

// SubtasksComplete reports whether every subtask (recursively) is complete.
// A container task only becomes selectable once this holds.
func (t *Task) SubtasksComplete() bool {
	for i := range t.Subtasks {
		sub := &t.Subtasks[i]
		if sub.Status != TaskStatusComplete || !sub.SubtasksComplete() {
			return false
		}
	}
	return true
}

// Flatten returns the task tree in depth-first order, parents before their
// subtasks. The returned pointers alias the receiver's tree so callers can
// mutate tasks in place before rewriting the store.
func (tl *TaskList) Flatten() []*Task {
	var out []*Task
	var walk func(ts []Task)
	walk = func(ts []Task) {
		for i := range ts {
			out = append(out, &ts[i])
			walk(ts[i].Subtasks)
		}
	}
	walk(tl.Tasks)
	return out
}

// FindTask locates a task anywhere in the tree by ID.
func (tl *TaskList) FindTask(id string) *Task {
	for _, t := range tl.Flatten() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AllComplete reports whether every task in the tree is complete.
func (tl *TaskList) AllComplete() bool {
	for _, t := range tl.Flatten() {
		if t.Status != TaskStatusComplete {
			return false
		}
	}
	return true
}
