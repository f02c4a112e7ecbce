package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slok/taskd/internal/model"
	"github.com/slok/taskd/internal/storage"
)

// CreateTask persists a new task.
func (r *Repository) CreateTask(ctx context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	var result *string
	if len(task.Result) > 0 {
		s := string(task.Result)
		result = &s
	}

	query := `
		INSERT INTO tasks (id, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Status,
		result,
		task.Error,
		task.CreatedAt.Unix(),
		task.UpdatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task %s: %w", task.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", task.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT id, status, result, error, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	task, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return task, nil
}

// UpdateTaskStatus applies a compare-and-swap status update. The WHERE clause
// on the previous status makes concurrent transitions on the same task
// serialize on the database row: losers match zero rows and get false back.
func (r *Repository) UpdateTaskStatus(ctx context.Context, change storage.StatusChange) (bool, error) {
	var result *string
	if change.To == model.TaskStatusCompleted && len(change.Result) > 0 {
		s := string(change.Result)
		result = &s
	}
	errMsg := ""
	if change.To == model.TaskStatusFailed {
		errMsg = change.ErrorMessage
	}

	query := `
		UPDATE tasks
		SET status = ?, result = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		change.To,
		result,
		errMsg,
		change.UpdatedAt.Unix(),
		change.ID,
		change.From,
	)
	if err != nil {
		return false, fmt.Errorf("could not update task status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	r.logger.Debugf("Updated task status in repository: %s (%s -> %s)", change.ID, change.From, change.To)
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (*model.Task, error) {
	var task model.Task
	var result sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(
		&task.ID,
		&task.Status,
		&result,
		&task.Error,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}
	task.CreatedAt = timeFromUnix(createdAt)
	task.UpdatedAt = timeFromUnix(updatedAt)

	return &task, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
