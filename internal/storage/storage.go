package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slok/taskd/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository
//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name StatusCache

// StatusChange is a conditional task status update. The update is applied
// only when the stored status still equals From, making the repository the
// serialization point for concurrent transitions on the same task.
type StatusChange struct {
	ID           string
	From         model.TaskStatus
	To           model.TaskStatus
	Result       json.RawMessage // Only persisted when To is completed.
	ErrorMessage string          // Only persisted when To is failed.
	UpdatedAt    time.Time
}

// TaskRepository is the interface for the durable, authoritative task store.
type TaskRepository interface {
	// CreateTask persists a new task, fails with model.ErrAlreadyExists on ID collision.
	CreateTask(ctx context.Context, task model.Task) error

	// GetTask retrieves a task by ID, fails with model.ErrNotFound if missing.
	GetTask(ctx context.Context, id string) (*model.Task, error)

	// UpdateTaskStatus applies a compare-and-swap status update. It returns
	// false (and no error) when the stored status no longer matches
	// StatusChange.From, callers re-read to classify the miss.
	UpdateTaskStatus(ctx context.Context, change StatusChange) (updated bool, err error)
}

// StatusCache is the interface for the low-latency denormalized status
// projection used by high-frequency polling. It is advisory, never the
// arbiter of transition legality.
type StatusCache interface {
	// SetStatus overwrites the cached status for a task.
	SetStatus(ctx context.Context, id string, status model.TaskStatus) error

	// GetStatus returns the cached status, fails with model.ErrNotFound when absent.
	GetStatus(ctx context.Context, id string) (model.TaskStatus, error)
}
