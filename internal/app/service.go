package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"todotask/api/internal/auth"
	"todotask/api/internal/authz"
	"todotask/api/internal/config"
	"todotask/api/internal/search"
	"todotask/api/internal/store"
)

// Session is an authenticated principal plus the tokens issued to it.
type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	Username     string
	IsStaff      bool
	IsSuperuser  bool
	ExpiresAt    time.Time
}

func (s Session) principal() authz.Principal {
	return authz.Principal{ID: s.UserID, Staff: s.IsStaff, Superuser: s.IsSuperuser}
}

type dataStore interface {
	UsernameTaken(context.Context, string) (bool, error)
	EmailTaken(context.Context, string) (bool, error)
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, int64) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListRegularUsers(context.Context) ([]store.User, error)

	ListProjects(context.Context) ([]store.Project, error)
	ListProjectsByOwner(context.Context, int64) ([]store.Project, error)
	InsertProject(context.Context, string, int64) (store.Project, error)
	GetProject(context.Context, int64) (store.Project, error)
	GetProjectOwned(context.Context, int64, int64) (store.Project, error)
	UpdateProjectName(context.Context, int64, string) error
	DeleteProjectOwned(context.Context, int64, int64) (bool, error)

	ListTasks(context.Context) ([]store.Task, error)
	ListTasksByOwner(context.Context, int64) ([]store.Task, error)
	ListTasksByProject(context.Context, int64) ([]store.Task, error)
	InsertTask(context.Context, store.Task) (store.Task, error)
	GetTask(context.Context, int64) (store.Task, error)
	GetTaskOwned(context.Context, int64, int64) (store.Task, error)
	UpdateTask(context.Context, store.Task) error
	DeleteTaskOwned(context.Context, int64, int64) (bool, error)

	ListSubtasks(context.Context) ([]store.Subtask, error)
	ListSubtasksByOwner(context.Context, int64) ([]store.Subtask, error)
	ListSubtasksByTask(context.Context, int64) ([]store.Subtask, error)
	InsertSubtask(context.Context, store.Subtask) (store.Subtask, error)
	GetSubtaskOwned(context.Context, int64, int64) (store.Subtask, error)
	UpdateSubtask(context.Context, store.Subtask) error
	DeleteSubtaskOwned(context.Context, int64, int64) (bool, error)

	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens: Redis when configured, Postgres
// otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (int64, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
}

// New wires the service with refresh tokens stored in Postgres.
func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		search:   searchService,
	}
}

// NewWithSessionStore wires the service with a dedicated refresh-token store.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchService,
	}
}

// Bootstrap ensures the configured admin account exists and warms the
// search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}

	email := strings.TrimSpace(s.cfg.AdminEmail)
	password := s.cfg.AdminPassword
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin, err := s.store.CreateUser(ctx, store.User{
		Username:     "admin",
		Email:        email,
		PasswordHash: string(hash),
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if err != nil {
		return err
	}
	log.Printf("bootstrap: created admin account %s (id=%d)", admin.Email, admin.ID)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Login authenticates by email and password and issues a token pair. Lookup
// miss and hash mismatch collapse into one generic message so accounts
// cannot be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, validationError("Both email and password are required.")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, authenticationError("Invalid email or password.")
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, authenticationError("Invalid email or password.")
	}

	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, validationError("Refresh token is required.")
	}

	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, authenticationError("Invalid or expired refresh token.")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, authenticationError("Invalid or expired refresh token.")
	}

	return s.issueSession(ctx, user)
}

// SessionFromToken validates a bearer access token and resolves the current
// principal from the store.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, userID, err := auth.ParseAccessToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	token, err := auth.IssueAccessToken([]byte(s.cfg.JWTSecret), user.ID, user.Username, user.IsStaff, user.IsSuperuser, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := auth.NewRefreshToken()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		IsStaff:      user.IsStaff,
		IsSuperuser:  user.IsSuperuser,
		ExpiresAt:    expiresAt,
	}, nil
}

// Search runs an owner-scoped task search. Privileged principals see every
// owner's tasks.
func (s *Service) Search(ctx context.Context, session Session, text string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{
		Text:      text,
		OwnerID:   session.UserID,
		AllOwners: authz.Privileged(session.principal()),
		Limit:     limit,
		Offset:    offset,
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
