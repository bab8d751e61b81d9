package app

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"todotask/api/internal/store"
)

type SignUpInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp validates in field order (username, email, password) and reports
// only the first violation, matching the API contract. The raw password is
// hashed with bcrypt and never stored or echoed.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (map[string]any, error) {
	if input.Username == "" {
		return nil, validationError("Username is required.")
	}
	taken, err := s.store.UsernameTaken(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationError("Username is already taken.")
	}

	if input.Email == "" {
		return nil, validationError("Email is required.")
	}
	taken, err = s.store.EmailTaken(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationError("Email is already in use.")
	}

	if input.Password == "" {
		return nil, validationError("Password is required.")
	}
	if len(input.Password) < 6 {
		return nil, validationError("Password must be at least 6 characters long.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, store.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	return s.userPayload(ctx, user)
}

// ListUsers returns every non-privileged account with its project tree.
// Requires a staff or superuser caller.
func (s *Service) ListUsers(ctx context.Context, session Session) ([]map[string]any, error) {
	if !session.IsStaff && !session.IsSuperuser {
		return nil, permissionError("You do not have permission to access this resource.")
	}

	users, err := s.store.ListRegularUsers(ctx)
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(users))
	for _, user := range users {
		payload, err := s.userPayload(ctx, user)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

func (s *Service) userPayload(ctx context.Context, user store.User) (map[string]any, error) {
	projects, err := s.store.ListProjectsByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	projectPayloads := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		payload, err := s.projectPayload(ctx, project)
		if err != nil {
			return nil, err
		}
		projectPayloads = append(projectPayloads, payload)
	}

	return map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"projects": projectPayloads,
	}, nil
}
