package transition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slok/taskd/internal/log"
	"github.com/slok/taskd/internal/model"
	"github.com/slok/taskd/internal/storage"
)

// CoordinatorConfig is the configuration for the transition coordinator.
type CoordinatorConfig struct {
	Repository  storage.TaskRepository
	StatusCache storage.StatusCache
	Logger      log.Logger

	// TimeNow is used to stamp accepted transitions, defaults to time.Now.
	TimeNow func() time.Time
}

func (c *CoordinatorConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.StatusCache == nil {
		return fmt.Errorf("status cache is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Transition"})
	return nil
}

// Coordinator orchestrates a single task status change: it reads the
// authoritative status, validates the change against the transition table and
// writes both stores. The coordinator itself is stateless, the durable store
// is the serialization point for racing callers.
type Coordinator struct {
	repo    storage.TaskRepository
	cache   storage.StatusCache
	logger  log.Logger
	timeNow func() time.Time
}

// NewCoordinator creates a new transition coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Coordinator{
		repo:    cfg.Repository,
		cache:   cfg.StatusCache,
		logger:  cfg.Logger,
		timeNow: cfg.TimeNow,
	}, nil
}

// ApplyOptions are the options for applying a status transition.
type ApplyOptions struct {
	TaskID string
	Target model.TaskStatus

	// Result is persisted only when Target is completed.
	Result json.RawMessage
	// ErrorMessage is persisted only when Target is failed.
	ErrorMessage string
}

// Apply attempts to move a task to the target status.
//
// Repeated requests for a status the task already has are successes without
// any write, so unreliable callers can retry reports safely. Illegal
// transitions fail with model.ErrInvalidTransition and never write. The
// caller only sees success after the durable write committed.
func (c *Coordinator) Apply(ctx context.Context, opts ApplyOptions) (*model.Task, error) {
	if err := opts.Target.Validate(); err != nil {
		return nil, err
	}

	task, err := c.repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	// Idempotent no-op: the reported status is already in place.
	if task.Status == opts.Target {
		c.logger.Debugf("Task %s already in status %s, ignoring transition", task.ID, task.Status)
		return task, nil
	}

	if !model.CanTransition(task.Status, opts.Target) {
		return nil, fmt.Errorf("task %s cannot move from %s to %s: %w", task.ID, task.Status, opts.Target, model.ErrInvalidTransition)
	}

	// The cache is advisory: a failed write only degrades the fast read path,
	// the durable store below stays authoritative. Log and continue.
	if err := c.cache.SetStatus(ctx, opts.TaskID, opts.Target); err != nil {
		c.logger.Warningf("Could not update status cache for task %s: %s", opts.TaskID, err)
	}

	now := c.timeNow().UTC()
	updated, err := c.repo.UpdateTaskStatus(ctx, storage.StatusChange{
		ID:           opts.TaskID,
		From:         task.Status,
		To:           opts.Target,
		Result:       opts.Result,
		ErrorMessage: opts.ErrorMessage,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("could not update task status: %w", err)
	}

	// CAS miss: somebody else moved the task between our read and write.
	// Re-read to classify the race.
	if !updated {
		return c.classifyLostRace(ctx, opts)
	}

	task.Status = opts.Target
	task.UpdatedAt = now
	if opts.Target == model.TaskStatusCompleted {
		task.Result = opts.Result
	}
	if opts.Target == model.TaskStatusFailed {
		task.Error = opts.ErrorMessage
	}

	c.logger.Infof("Task %s transitioned to %s", task.ID, task.Status)

	return task, nil
}

func (c *Coordinator) classifyLostRace(ctx context.Context, opts ApplyOptions) (*model.Task, error) {
	task, err := c.repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task after update race: %w", err)
	}

	// The winner applied the exact status we wanted: idempotent success.
	if task.Status == opts.Target {
		c.logger.Debugf("Task %s concurrently moved to %s, ignoring transition", task.ID, task.Status)
		return task, nil
	}

	return nil, fmt.Errorf("task %s cannot move from %s to %s: %w", task.ID, task.Status, opts.Target, model.ErrInvalidTransition)
}
