package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slok/taskd/internal/app/transition"
	"github.com/slok/taskd/internal/dispatch"
	"github.com/slok/taskd/internal/log"
	"github.com/slok/taskd/internal/model"
	"github.com/slok/taskd/internal/storage"
)

// ServiceConfig is the configuration for the lifecycle service.
type ServiceConfig struct {
	Repository  storage.TaskRepository
	StatusCache storage.StatusCache
	Coordinator *transition.Coordinator
	Notifier    dispatch.Notifier
	Logger      log.Logger

	// TimeNow is used to stamp created tasks, defaults to time.Now.
	TimeNow func() time.Time
	// DispatchTimeout bounds the detached dispatch notification, defaults to 30s.
	DispatchTimeout time.Duration
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.StatusCache == nil {
		return fmt.Errorf("status cache is required")
	}
	if c.Coordinator == nil {
		return fmt.Errorf("transition coordinator is required")
	}
	if c.Notifier == nil {
		return fmt.Errorf("notifier is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.DispatchTimeout == 0 {
		c.DispatchTimeout = 30 * time.Second
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Lifecycle"})
	return nil
}

// Service handles the public task lifecycle operations: creating tasks,
// reading them and applying externally reported transitions.
type Service struct {
	repo            storage.TaskRepository
	cache           storage.StatusCache
	coordinator     *transition.Coordinator
	notifier        dispatch.Notifier
	logger          log.Logger
	timeNow         func() time.Time
	dispatchTimeout time.Duration
}

// NewService creates a new lifecycle service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:            cfg.Repository,
		cache:           cfg.StatusCache,
		coordinator:     cfg.Coordinator,
		notifier:        cfg.Notifier,
		logger:          cfg.Logger,
		timeNow:         cfg.TimeNow,
		dispatchTimeout: cfg.DispatchTimeout,
	}, nil
}

// Create creates a new pending task in both stores and triggers the external
// dispatch without waiting for it. The durable store is written first: if the
// cache write fails afterwards the task stays invisible to Get, never half
// created. The dispatch outcome is only observable through logs.
func (s *Service) Create(ctx context.Context) (*model.Task, error) {
	task := model.NewTask(s.timeNow())

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	if err := s.cache.SetStatus(ctx, task.ID, task.Status); err != nil {
		return nil, fmt.Errorf("could not cache task status: %w", err)
	}

	// Fire-and-forget dispatch. The notification is detached from the request
	// context: the caller got its task already, a slow or failing trigger
	// must not affect it. There is no retry, a lost dispatch leaves the task
	// pending until an external re-dispatch happens.
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()

		if err := s.notifier.Notify(notifyCtx, task.ID); err != nil {
			s.logger.Errorf("Could not dispatch task %s: %s", task.ID, err)
			return
		}
		s.logger.Debugf("Dispatched task %s", task.ID)
	}()

	s.logger.Infof("Created task: %s", task.ID)

	return &task, nil
}

// Get returns the full task record. The status cache acts as the existence
// gate: a cache miss is reported as not found even when the durable record
// still exists, so an evicted entry hides an otherwise valid task. Kept on
// purpose for compatibility with the polling read path.
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	_, err := s.cache.GetStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get cached task status: %w", err)
	}

	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return task, nil
}

// TransitionOptions are the options for reporting a task transition.
type TransitionOptions struct {
	TaskID string
	Target model.TaskStatus

	// Result is persisted only when Target is completed.
	Result json.RawMessage
	// ErrorMessage is persisted only when Target is failed.
	ErrorMessage string
}

// Transition applies an externally reported status change through the
// transition coordinator.
func (s *Service) Transition(ctx context.Context, opts TransitionOptions) (*model.Task, error) {
	task, err := s.coordinator.Apply(ctx, transition.ApplyOptions{
		TaskID:       opts.TaskID,
		Target:       opts.Target,
		Result:       opts.Result,
		ErrorMessage: opts.ErrorMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("could not apply transition: %w", err)
	}

	return task, nil
}
