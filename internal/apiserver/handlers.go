package apiserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/slok/taskd/internal/app/lifecycle"
	"github.com/slok/taskd/internal/model"
)

// internalAuthHeader carries the shared secret on privileged endpoints.
const internalAuthHeader = "X-Internal-Auth"

type taskResponse struct {
	ID        string           `json:"id"`
	Status    model.TaskStatus `json:"status"`
	Result    json.RawMessage  `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func newTaskResponse(task *model.Task) taskResponse {
	return taskResponse{
		ID:        task.ID,
		Status:    task.Status,
		Result:    task.Result,
		Error:     task.Error,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

type createTaskResponse struct {
	TaskID string `json:"taskId"`
}

type startTaskRequest struct {
	TaskID string `json:"taskId"`
}

type completeTaskRequest struct {
	TaskID string          `json:"taskId"`
	Result json.RawMessage `json:"result"`
}

type failTaskRequest struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// internalAuth guards privileged endpoints with the shared secret. Rejected
// requests never reach a handler, so no store access happens.
func (s *Server) internalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(internalAuthHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.authToken)) != 1 {
			s.logger.Warningf("Rejected privileged request to %s: invalid auth token", r.URL.Path)
			s.writeError(w, http.StatusForbidden, "invalid internal auth token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.Create(r.Context())
	if err != nil {
		s.logger.Errorf("Could not create task: %s", err)
		s.writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}

	s.writeJSON(w, http.StatusAccepted, createTaskResponse{TaskID: task.ID})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	var req startTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TaskID == "" {
		s.writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	s.applyTransition(w, r, req.TaskID, model.TaskStatusRunning, nil, "")
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req completeTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TaskID == "" {
		s.writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	s.applyTransition(w, r, req.TaskID, model.TaskStatusCompleted, req.Result, "")
}

func (s *Server) handleFailTask(w http.ResponseWriter, r *http.Request) {
	var req failTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TaskID == "" {
		s.writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	s.applyTransition(w, r, req.TaskID, model.TaskStatusFailed, nil, req.Error)
}

func (s *Server) applyTransition(w http.ResponseWriter, r *http.Request, taskID string, target model.TaskStatus, result json.RawMessage, errMsg string) {
	task, err := s.service.Transition(r.Context(), lifecycle.TransitionOptions{
		TaskID:       taskID,
		Target:       target,
		Result:       result,
		ErrorMessage: errMsg,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newTaskResponse(task))
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps application errors to the HTTP error taxonomy.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrNotValid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Errorf("Unexpected error serving request: %s", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Could not encode response: %s", err)
	}
}
