package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/taskd/internal/log"
	"github.com/slok/taskd/internal/model"
)

// StatusCacheConfig is the configuration for the memory status cache.
type StatusCacheConfig struct {
	Logger log.Logger
}

func (c *StatusCacheConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.StatusCache"})
	return nil
}

// StatusCache is an in-memory implementation of storage.StatusCache.
type StatusCache struct {
	statuses map[string]model.TaskStatus
	mu       sync.RWMutex
	logger   log.Logger
}

// NewStatusCache creates a new memory status cache.
func NewStatusCache(cfg StatusCacheConfig) (*StatusCache, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StatusCache{
		statuses: make(map[string]model.TaskStatus),
		logger:   cfg.Logger,
	}, nil
}

// SetStatus overwrites the cached status for a task.
func (c *StatusCache) SetStatus(ctx context.Context, id string, status model.TaskStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statuses[id] = status

	return nil
}

// GetStatus returns the cached status for a task.
func (c *StatusCache) GetStatus(ctx context.Context, id string) (model.TaskStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status, ok := c.statuses[id]
	if !ok {
		return "", fmt.Errorf("task status %s: %w", id, model.ErrNotFound)
	}

	return status, nil
}
