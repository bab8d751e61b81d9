package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todotask/api/internal/authz"
	"todotask/api/internal/store"
)

type CreateSubtaskInput struct {
	TaskID      *int64     `json:"task_id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

type UpdateSubtaskInput struct {
	ID          *int64     `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   *bool      `json:"completed"`
}

// ListSubtasks returns the caller's subtasks; privileged principals see
// every subtask.
func (s *Service) ListSubtasks(ctx context.Context, session Session) ([]map[string]any, error) {
	var (
		subtasks []store.Subtask
		err      error
	)
	if authz.Privileged(session.principal()) {
		subtasks, err = s.store.ListSubtasks(ctx)
	} else {
		subtasks, err = s.store.ListSubtasksByOwner(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(subtasks))
	for _, subtask := range subtasks {
		payloads = append(payloads, subtaskPayload(subtask))
	}
	return payloads, nil
}

// CreateSubtask creates a subtask under a named task. Like task creation,
// the task id discloses existence, so a foreign task yields a permission
// error.
func (s *Service) CreateSubtask(ctx context.Context, session Session, input CreateSubtaskInput) (map[string]any, error) {
	if input.TaskID == nil {
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

	task, err := s.store.GetTask(ctx, *input.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError(fmt.Sprintf("Task with id %d does not exist.", *input.TaskID))
		}
		return nil, err
	}

	if authz.Authorize(session.principal(), task) != authz.Allow {
		return nil, permissionError("You do not have permission to assign subtasks to this task.")
	}

	subtask, err := s.store.InsertSubtask(ctx, store.Subtask{
		TaskID:      task.ID,
		Title:       *input.Title,
		Description: *input.Description,
		DueDate:     *input.DueDate,
		Completed:   *input.Completed,
	})
	if err != nil {
		return nil, err
	}
	subtask.OwnerID = task.OwnerID

	return subtaskPayload(subtask), nil
}

// UpdateSubtask applies a partial update to a subtask in the caller's
// subtree.
func (s *Service) UpdateSubtask(ctx context.Context, session Session, input UpdateSubtaskInput) (map[string]any, error) {
	if input.ID == nil {
		return nil, validationError("Subtask ID is required in the request body!")
	}

	subtask, err := s.store.GetSubtaskOwned(ctx, *input.ID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("Subtask not found!")
		}
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, validationError("Title is required.")
		}
		subtask.Title = *input.Title
	}
	if input.Description != nil {
		subtask.Description = *input.Description
	}
	if input.DueDate != nil {
		subtask.DueDate = *input.DueDate
	}
	if input.Completed != nil {
		subtask.Completed = *input.Completed
	}

	if err := s.store.UpdateSubtask(ctx, subtask); err != nil {
		return nil, err
	}
	return subtaskPayload(subtask), nil
}

// DeleteSubtask removes a subtask in the caller's subtree.
func (s *Service) DeleteSubtask(ctx context.Context, session Session, subtaskID int64) error {
	deleted, err := s.store.DeleteSubtaskOwned(ctx, subtaskID, session.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("Subtask not found!")
	}
	return nil
}

func subtaskPayload(subtask store.Subtask) map[string]any {
	return map[string]any{
		"id":          subtask.ID,
		"task_id":     subtask.TaskID,
		"title":       subtask.Title,
		"description": subtask.Description,
		"due_date":    formatTime(subtask.DueDate),
		"completed":   subtask.Completed,
		"created_at":  formatTime(subtask.CreatedAt),
	}
}
