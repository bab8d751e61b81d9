package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todotask/api/internal/authz"
	"todotask/api/internal/search"
	"todotask/api/internal/store"
)

type CreateTaskInput struct {
	ProjectID   *int64     `json:"project_id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

type UpdateTaskInput struct {
	ID          *int64     `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

// ListTasks returns the caller's tasks with subtasks embedded; privileged
// principals see every task.
func (s *Service) ListTasks(ctx context.Context, session Session) ([]map[string]any, error) {
	var (
		tasks []store.Task
		err   error
	)
	if authz.Privileged(session.principal()) {
		tasks, err = s.store.ListTasks(ctx)
	} else {
		tasks, err = s.store.ListTasksByOwner(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		payload, err := s.taskPayload(ctx, task)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// CreateTask creates a task under a named project. The project id discloses
// existence by design, so a foreign project yields a permission error
// rather than a not-found.
func (s *Service) CreateTask(ctx context.Context, session Session, input CreateTaskInput) (map[string]any, error) {
	if input.ProjectID == nil {
		return nil, validationError("This field is required.")
	}
	if input.Title == nil {
		return nil, validationError("This field is required.")
	}
	if *input.Title == "" {
		return nil, validationError("Title is required.")
	}
	if input.Description == nil {
		return nil, validationError("This field is required.")
	}
	if input.DueDate == nil {
		return nil, validationError("This field is required.")
	}
	if input.Completed == nil {
		return nil, validationError("This field is required.")
	}

	project, err := s.store.GetProject(ctx, *input.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError(fmt.Sprintf("Project with id %d does not exist.", *input.ProjectID))
		}
		return nil, err
	}

	if authz.Authorize(session.principal(), project) != authz.Allow {
		return nil, permissionError("You do not have permission to assign tasks to this project.")
	}

	task, err := s.store.InsertTask(ctx, store.Task{
		ProjectID:   project.ID,
		Title:       *input.Title,
		Description: *input.Description,
		DueDate:     *input.DueDate,
		Completed:   *input.Completed,
	})
	if err != nil {
		return nil, err
	}
	task.OwnerID = project.UserID

	s.indexTask(task)
	return s.taskPayload(ctx, task)
}

// UpdateTask applies a partial update to a task in the caller's subtree.
func (s *Service) UpdateTask(ctx context.Context, session Session, input UpdateTaskInput) (map[string]any, error) {
	if input.ID == nil {
		return nil, validationError("Task ID is required in the request body!")
	}

	task, err := s.store.GetTaskOwned(ctx, *input.ID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("Task not found!")
		}
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, validationError("Title is required.")
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.DueDate != nil {
		task.DueDate = *input.DueDate
	}
	if input.Completed != nil {
		task.Completed = *input.Completed
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.indexTask(task)
	return s.taskPayload(ctx, task)
}

// DeleteTask removes a task in the caller's subtree; subtasks cascade in
// the store.
func (s *Service) DeleteTask(ctx context.Context, session Session, taskID int64) error {
	deleted, err := s.store.DeleteTaskOwned(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("Task not found!")
	}
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	return nil
}

func (s *Service) indexTask(task store.Task) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		ProjectID:   task.ProjectID,
		OwnerID:     task.OwnerID,
	})
}

func (s *Service) taskPayload(ctx context.Context, task store.Task) (map[string]any, error) {
	subtasks, err := s.store.ListSubtasksByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	subtaskPayloads := make([]map[string]any, 0, len(subtasks))
	for _, subtask := range subtasks {
		subtaskPayloads = append(subtaskPayloads, subtaskPayload(subtask))
	}

	return map[string]any{
		"id":          task.ID,
		"project_id":  task.ProjectID,
		"title":       task.Title,
		"description": task.Description,
		"due_date":    formatTime(task.DueDate),
		"completed":   task.Completed,
		"created_at":  formatTime(task.CreatedAt),
		// The embedded key is singular, as the original API serialized it.
		"subtask": subtaskPayloads,
	}, nil
}
