package dispatch

import (
	"context"
)

//go:generate mockery --case underscore --output dispatchmock --outpkg dispatchmock --name Notifier

// Notifier triggers the out-of-process execution of a task on an external
// backend. The task ID travels as the correlation token, the backend reports
// progress back through the privileged API callbacks.
type Notifier interface {
	Notify(ctx context.Context, taskID string) error
}
