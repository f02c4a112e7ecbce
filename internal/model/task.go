package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been created but execution
	// has not been reported as started yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the external backend reported execution start.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "failed"
)

// taskTransitions is the directed transition graph for task statuses. It is
// total over all statuses, terminal statuses have an empty edge set. This
// table is the single source of truth for transition legality.
var taskTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskStatusPending:   {TaskStatusRunning: {}},
	TaskStatusRunning:   {TaskStatusCompleted: {}, TaskStatusFailed: {}},
	TaskStatusCompleted: {},
	TaskStatusFailed:    {},
}

// CanTransition returns true if a task status can move from one status to
// another. It is a pure lookup without side effects.
func CanTransition(from, to TaskStatus) bool {
	edges, ok := taskTransitions[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}

// IsTerminal returns true when the status has no outgoing transitions.
func (s TaskStatus) IsTerminal() bool {
	edges, ok := taskTransitions[s]
	return ok && len(edges) == 0
}

// Validate checks the status is a known one.
func (s TaskStatus) Validate() error {
	if _, ok := taskTransitions[s]; !ok {
		return fmt.Errorf("unknown task status %q: %w", s, ErrNotValid)
	}
	return nil
}

// Task represents a unit of externally executed work tracked by the system.
type Task struct {
	ID        string
	Status    TaskStatus
	Result    json.RawMessage // Set once, only when status is completed.
	Error     string          // Set once, only when status is failed.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a pending task with a fresh unique ID.
func NewTask(now time.Time) Task {
	now = now.UTC()
	return Task{
		ID:        ulid.Make().String(),
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the task invariants.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if len(t.Result) > 0 && t.Status != TaskStatusCompleted {
		return fmt.Errorf("result is only allowed on completed tasks: %w", ErrNotValid)
	}
	if t.Error != "" && t.Status != TaskStatusFailed {
		return fmt.Errorf("error is only allowed on failed tasks: %w", ErrNotValid)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created at timestamp is required: %w", ErrNotValid)
	}
	return nil
}
