package app

import (
	"context"
	"database/sql"
	"errors"

	"todotask/api/internal/authz"
	"todotask/api/internal/store"
)

type UpdateProjectInput struct {
	ID          *int64  `json:"id"`
	ProjectName *string `json:"project_name"`
}

// ListProjects returns the caller's projects with tasks and subtasks
// embedded; privileged principals see every project.
func (s *Service) ListProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	var (
		projects []store.Project
		err      error
	)
	if authz.Privileged(session.principal()) {
		projects, err = s.store.ListProjects(ctx)
	} else {
		projects, err = s.store.ListProjectsByOwner(ctx, session.UserID)
	}
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		payload, err := s.projectPayload(ctx, project)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// CreateProject creates a project owned by the caller. The owner is never
// taken from the request body.
func (s *Service) CreateProject(ctx context.Context, session Session, name string) (map[string]any, error) {
	if name == "" {
		return nil, validationError("Project name is required.")
	}

	project, err := s.store.InsertProject(ctx, name, session.UserID)
	if err != nil {
		return nil, err
	}
	return s.projectPayload(ctx, project)
}

// UpdateProject applies a partial update to an owned project. The lookup is
// owner-scoped, so someone else's project reads as absent.
func (s *Service) UpdateProject(ctx context.Context, session Session, input UpdateProjectInput) (map[string]any, error) {
	if input.ID == nil {
		return nil, validationError("Project ID is required in the request body!")
	}

	project, err := s.store.GetProjectOwned(ctx, *input.ID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("Project not found!")
		}
		return nil, err
	}

	if input.ProjectName != nil {
		if *input.ProjectName == "" {
			return nil, validationError("Project name is required.")
		}
		project.Name = *input.ProjectName
		if err := s.store.UpdateProjectName(ctx, project.ID, project.Name); err != nil {
			return nil, err
		}
	}

	return s.projectPayload(ctx, project)
}

// DeleteProject removes an owned project; the store cascades the delete to
// tasks and subtasks.
func (s *Service) DeleteProject(ctx context.Context, session Session, projectID int64) error {
	// Collect task ids before the cascade wipes them so the search index
	// can follow.
	var taskIDs []int64
	if s.search != nil {
		if tasks, err := s.store.ListTasksByProject(ctx, projectID); err == nil {
			for _, task := range tasks {
				taskIDs = append(taskIDs, task.ID)
			}
		}
	}

	deleted, err := s.store.DeleteProjectOwned(ctx, projectID, session.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("Project not found!")
	}
	if s.search != nil {
		s.search.DeleteTasks(taskIDs)
	}
	return nil
}

func (s *Service) projectPayload(ctx context.Context, project store.Project) (map[string]any, error) {
	tasks, err := s.store.ListTasksByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	taskPayloads := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		payload, err := s.taskPayload(ctx, task)
		if err != nil {
			return nil, err
		}
		taskPayloads = append(taskPayloads, payload)
	}

	return map[string]any{
		"id":           project.ID,
		"project_name": project.Name,
		"created_at":   formatTime(project.CreatedAt),
		"tasks":        taskPayloads,
	}, nil
}
