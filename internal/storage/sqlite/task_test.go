package sqlite_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/slok/taskd/internal/log"
	"github.com/slok/taskd/internal/model"
	"github.com/slok/taskd/internal/storage"
	"github.com/slok/taskd/internal/storage/sqlite"
	"github.com/slok/taskd/internal/storage/sqlite/migrations"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "taskd-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	// Open database
	db, err := sql.Open("sqlite", tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Run migrations
	migrator, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(t, err)
	err = migrator.Up(context.Background())
	require.NoError(t, err)

	return db
}

func getTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()

	repo, err := sqlite.NewRepositoryWithDB(getTestDB(t), log.Noop)
	require.NoError(t, err)

	return repo
}

func TestCreateTask(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	tests := map[string]struct {
		task    model.Task
		prepare func(ctx context.Context, t *testing.T, repo *sqlite.Repository)
		expErr  error
	}{
		"Creating a new task should work": {
			task: model.Task{ID: "task-1", Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now},
		},

		"Creating a task with an existing ID should fail": {
			task: model.Task{ID: "task-1", Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now},
			prepare: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) {
				err := repo.CreateTask(ctx, model.Task{ID: "task-1", Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now})
				require.NoError(t, err)
			},
			expErr: model.ErrAlreadyExists,
		},

		"Creating an invalid task should fail": {
			task:   model.Task{Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			ctx := context.Background()
			repo := getTestRepository(t)
			if test.prepare != nil {
				test.prepare(ctx, t, repo)
			}

			err := repo.CreateTask(ctx, test.task)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				require.NoError(err)

				got, err := repo.GetTask(ctx, test.task.ID)
				require.NoError(err)
				assert.Equal(test.task.ID, got.ID)
				assert.Equal(model.TaskStatusPending, got.Status)
				assert.Empty(got.Result)
				assert.Empty(got.Error)
				assert.Equal(now, got.CreatedAt)
				assert.Equal(now, got.UpdatedAt)
			}
		})
	}
}

func TestGetTaskMissing(t *testing.T) {
	repo := getTestRepository(t)

	_, err := repo.GetTask(context.Background(), "missing-task")

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateTaskStatus(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	later := now.Add(42 * time.Second)

	tests := map[string]struct {
		change     storage.StatusChange
		expUpdated bool
		expTask    *model.Task
	}{
		"Updating with matching previous status should apply the change": {
			change: storage.StatusChange{
				ID:        "task-1",
				From:      model.TaskStatusPending,
				To:        model.TaskStatusRunning,
				UpdatedAt: later,
			},
			expUpdated: true,
			expTask: &model.Task{
				ID:        "task-1",
				Status:    model.TaskStatusRunning,
				CreatedAt: now,
				UpdatedAt: later,
			},
		},

		"Updating to completed should persist the result payload": {
			change: storage.StatusChange{
				ID:        "task-2",
				From:      model.TaskStatusRunning,
				To:        model.TaskStatusCompleted,
				Result:    json.RawMessage(`{"flights":3}`),
				UpdatedAt: later,
			},
			expUpdated: true,
			expTask: &model.Task{
				ID:        "task-2",
				Status:    model.TaskStatusCompleted,
				Result:    json.RawMessage(`{"flights":3}`),
				CreatedAt: now,
				UpdatedAt: later,
			},
		},

		"Updating to failed should persist the error message": {
			change: storage.StatusChange{
				ID:           "task-3",
				From:         model.TaskStatusRunning,
				To:           model.TaskStatusFailed,
				ErrorMessage: "timeout",
				UpdatedAt:    later,
			},
			expUpdated: true,
			expTask: &model.Task{
				ID:        "task-3",
				Status:    model.TaskStatusFailed,
				Error:     "timeout",
				CreatedAt: now,
				UpdatedAt: later,
			},
		},

		"Updating with a stale previous status should not write anything": {
			change: storage.StatusChange{
				ID:        "task-1",
				From:      model.TaskStatusRunning,
				To:        model.TaskStatusCompleted,
				UpdatedAt: later,
			},
			expUpdated: false,
			expTask: &model.Task{
				ID:        "task-1",
				Status:    model.TaskStatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},

		"Updating a missing task should not write anything": {
			change: storage.StatusChange{
				ID:        "missing-task",
				From:      model.TaskStatusPending,
				To:        model.TaskStatusRunning,
				UpdatedAt: later,
			},
			expUpdated: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			ctx := context.Background()
			repo := getTestRepository(t)

			// Seed tasks matching each case's starting status.
			seed := map[string]model.TaskStatus{
				"task-1": model.TaskStatusPending,
				"task-2": model.TaskStatusRunning,
				"task-3": model.TaskStatusRunning,
			}
			for id, status := range seed {
				err := repo.CreateTask(ctx, model.Task{ID: id, Status: status, CreatedAt: now, UpdatedAt: now})
				require.NoError(err)
			}

			updated, err := repo.UpdateTaskStatus(ctx, test.change)

			require.NoError(err)
			assert.Equal(test.expUpdated, updated)

			if test.expTask != nil {
				got, err := repo.GetTask(ctx, test.expTask.ID)
				require.NoError(err)
				assert.Equal(test.expTask, got)
			}
		})
	}
}

func TestUpdateTaskStatusIgnoresPayloadsForNonTerminalTargets(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	repo := getTestRepository(t)

	err := repo.CreateTask(ctx, model.Task{ID: "task-1", Status: model.TaskStatusPending, CreatedAt: now, UpdatedAt: now})
	require.NoError(err)

	updated, err := repo.UpdateTaskStatus(ctx, storage.StatusChange{
		ID:           "task-1",
		From:         model.TaskStatusPending,
		To:           model.TaskStatusRunning,
		Result:       json.RawMessage(`{"unexpected":true}`),
		ErrorMessage: "unexpected",
		UpdatedAt:    now,
	})
	require.NoError(err)
	require.True(updated)

	got, err := repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Empty(got.Result)
	assert.Empty(got.Error)
}
