package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/taskd/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := map[string]struct {
		from model.TaskStatus
		to   model.TaskStatus
		exp  bool
	}{
		"Pending to running is allowed":        {from: model.TaskStatusPending, to: model.TaskStatusRunning, exp: true},
		"Running to completed is allowed":      {from: model.TaskStatusRunning, to: model.TaskStatusCompleted, exp: true},
		"Running to failed is allowed":         {from: model.TaskStatusRunning, to: model.TaskStatusFailed, exp: true},
		"Pending to completed is not allowed":  {from: model.TaskStatusPending, to: model.TaskStatusCompleted, exp: false},
		"Pending to failed is not allowed":     {from: model.TaskStatusPending, to: model.TaskStatusFailed, exp: false},
		"Running to pending is not allowed":    {from: model.TaskStatusRunning, to: model.TaskStatusPending, exp: false},
		"Completed has no outgoing edges":      {from: model.TaskStatusCompleted, to: model.TaskStatusRunning, exp: false},
		"Completed to failed is not allowed":   {from: model.TaskStatusCompleted, to: model.TaskStatusFailed, exp: false},
		"Failed has no outgoing edges":         {from: model.TaskStatusFailed, to: model.TaskStatusRunning, exp: false},
		"Failed to completed is not allowed":   {from: model.TaskStatusFailed, to: model.TaskStatusCompleted, exp: false},
		"Self transition is not an edge":       {from: model.TaskStatusRunning, to: model.TaskStatusRunning, exp: false},
		"Unknown source status is not allowed": {from: model.TaskStatus("archived"), to: model.TaskStatusRunning, exp: false},
		"Unknown target status is not allowed": {from: model.TaskStatusRunning, to: model.TaskStatus("archived"), exp: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, model.CanTransition(test.from, test.to))
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	tests := map[string]struct {
		status model.TaskStatus
		exp    bool
	}{
		"Pending is not terminal":   {status: model.TaskStatusPending, exp: false},
		"Running is not terminal":   {status: model.TaskStatusRunning, exp: false},
		"Completed is terminal":     {status: model.TaskStatusCompleted, exp: true},
		"Failed is terminal":        {status: model.TaskStatusFailed, exp: true},
		"Unknown is not a terminal": {status: model.TaskStatus("archived"), exp: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.status.IsTerminal())
		})
	}
}

func TestNewTask(t *testing.T) {
	now := time.Now()

	task1 := model.NewTask(now)
	task2 := model.NewTask(now)

	assert.NotEmpty(t, task1.ID)
	assert.NotEqual(t, task1.ID, task2.ID)
	assert.Equal(t, model.TaskStatusPending, task1.Status)
	assert.Empty(t, task1.Result)
	assert.Empty(t, task1.Error)
	assert.Equal(t, now.UTC(), task1.CreatedAt)
	assert.Equal(t, task1.CreatedAt, task1.UpdatedAt)

	require.NoError(t, task1.Validate())
}

func TestTaskValidate(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		task   model.Task
		expErr bool
	}{
		"Valid pending task": {
			task: model.Task{ID: "test-id", Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now},
		},
		"Valid completed task with result": {
			task: model.Task{ID: "test-id", Status: model.TaskStatusCompleted, Result: json.RawMessage(`{"ok":true}`), CreatedAt: now, UpdatedAt: now},
		},
		"Valid failed task with error": {
			task: model.Task{ID: "test-id", Status: model.TaskStatusFailed, Error: "boom", CreatedAt: now, UpdatedAt: now},
		},
		"Missing id is invalid": {
			task:   model.Task{Status: model.TaskStatusPending, CreatedAt: now},
			expErr: true,
		},
		"Unknown status is invalid": {
			task:   model.Task{ID: "test-id", Status: model.TaskStatus("archived"), CreatedAt: now},
			expErr: true,
		},
		"Result on non-completed task is invalid": {
			task:   model.Task{ID: "test-id", Status: model.TaskStatusRunning, Result: json.RawMessage(`{}`), CreatedAt: now},
			expErr: true,
		},
		"Error on non-failed task is invalid": {
			task:   model.Task{ID: "test-id", Status: model.TaskStatusCompleted, Result: json.RawMessage(`{}`), Error: "boom", CreatedAt: now},
			expErr: true,
		},
		"Missing created at is invalid": {
			task:   model.Task{ID: "test-id", Status: model.TaskStatusPending},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.task.Validate()

			if test.expErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
