package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/taskd/internal/log"
	"github.com/slok/taskd/internal/model"
	"github.com/slok/taskd/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository. The
// read-check-write of UpdateTaskStatus happens under the write lock, giving
// the same per-task serialization guarantee as the SQLite conditional update.
type Repository struct {
	tasks  map[string]model.Task
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.Task),
		logger: cfg.Logger,
	}, nil
}

// CreateTask persists a new task.
func (r *Repository) CreateTask(ctx context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; ok {
		return fmt.Errorf("task %s: %w", task.ID, model.ErrAlreadyExists)
	}

	r.tasks[task.ID] = task
	r.logger.Debugf("Created task in repository: %s", task.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	taskCopy := task
	return &taskCopy, nil
}

// UpdateTaskStatus applies a compare-and-swap status update.
func (r *Repository) UpdateTaskStatus(ctx context.Context, change storage.StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[change.ID]
	if !ok || task.Status != change.From {
		return false, nil
	}

	task.Status = change.To
	task.UpdatedAt = change.UpdatedAt
	if change.To == model.TaskStatusCompleted {
		task.Result = change.Result
	}
	if change.To == model.TaskStatusFailed {
		task.Error = change.ErrorMessage
	}

	r.tasks[change.ID] = task
	r.logger.Debugf("Updated task status in repository: %s (%s -> %s)", change.ID, change.From, change.To)

	return true, nil
}
