package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todotask/api/internal/auth"
	"todotask/api/internal/config"
	"todotask/api/internal/store"
)

type fakeStore struct {
	usernameTakenFn      func(context.Context, string) (bool, error)
	emailTakenFn         func(context.Context, string) (bool, error)
	createUserFn         func(context.Context, store.User) (store.User, error)
	getUserByIDFn        func(context.Context, int64) (store.User, error)
	getUserByEmailFn     func(context.Context, string) (store.User, error)
	listRegularUsersFn   func(context.Context) ([]store.User, error)
	listProjectsFn       func(context.Context) ([]store.Project, error)
	listProjectsByOwner  func(context.Context, int64) ([]store.Project, error)
	insertProjectFn      func(context.Context, string, int64) (store.Project, error)
	getProjectFn         func(context.Context, int64) (store.Project, error)
	getProjectOwnedFn    func(context.Context, int64, int64) (store.Project, error)
	updateProjectNameFn  func(context.Context, int64, string) error
	deleteProjectOwnedFn func(context.Context, int64, int64) (bool, error)
	listTasksFn          func(context.Context) ([]store.Task, error)
	listTasksByOwnerFn   func(context.Context, int64) ([]store.Task, error)
	listTasksByProjectFn func(context.Context, int64) ([]store.Task, error)
	insertTaskFn         func(context.Context, store.Task) (store.Task, error)
	getTaskFn            func(context.Context, int64) (store.Task, error)
	getTaskOwnedFn       func(context.Context, int64, int64) (store.Task, error)
	updateTaskFn         func(context.Context, store.Task) error
	deleteTaskOwnedFn    func(context.Context, int64, int64) (bool, error)
	listSubtasksFn       func(context.Context) ([]store.Subtask, error)
	listSubtasksByOwner  func(context.Context, int64) ([]store.Subtask, error)
	listSubtasksByTaskFn func(context.Context, int64) ([]store.Subtask, error)
	insertSubtaskFn      func(context.Context, store.Subtask) (store.Subtask, error)
	getSubtaskOwnedFn    func(context.Context, int64, int64) (store.Subtask, error)
	updateSubtaskFn      func(context.Context, store.Subtask) error
	deleteSubtaskOwnedFn func(context.Context, int64, int64) (bool, error)

	refreshSessions map[string]int64
}

func (f *fakeStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if f.usernameTakenFn != nil {
		return f.usernameTakenFn(ctx, username)
	}
	return false, nil
}
func (f *fakeStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	if f.emailTakenFn != nil {
		return f.emailTakenFn(ctx, email)
	}
	return false, nil
}
func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	user.ID = 1
	user.CreatedAt = time.Now()
	return user, nil
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID int64) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) ListRegularUsers(ctx context.Context) ([]store.User, error) {
	if f.listRegularUsersFn != nil {
		return f.listRegularUsersFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) ListProjectsByOwner(ctx context.Context, userID int64) ([]store.Project, error) {
	if f.listProjectsByOwner != nil {
		return f.listProjectsByOwner(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) InsertProject(ctx context.Context, name string, userID int64) (store.Project, error) {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, name, userID)
	}
	return store.Project{ID: 1, Name: name, UserID: userID, CreatedAt: time.Now()}, nil
}
func (f *fakeStore) GetProject(ctx context.Context, projectID int64) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) GetProjectOwned(ctx context.Context, projectID, userID int64) (store.Project, error) {
	if f.getProjectOwnedFn != nil {
		return f.getProjectOwnedFn(ctx, projectID, userID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateProjectName(ctx context.Context, projectID int64, name string) error {
	if f.updateProjectNameFn != nil {
		return f.updateProjectNameFn(ctx, projectID, name)
	}
	return nil
}
func (f *fakeStore) DeleteProjectOwned(ctx context.Context, projectID, userID int64) (bool, error) {
	if f.deleteProjectOwnedFn != nil {
		return f.deleteProjectOwnedFn(ctx, projectID, userID)
	}
	return false, nil
}

func (f *fakeStore) ListTasks(ctx context.Context) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) ListTasksByOwner(ctx context.Context, userID int64) ([]store.Task, error) {
	if f.listTasksByOwnerFn != nil {
		return f.listTasksByOwnerFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) ListTasksByProject(ctx context.Context, projectID int64) ([]store.Task, error) {
	if f.listTasksByProjectFn != nil {
		return f.listTasksByProjectFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) InsertTask(ctx context.Context, item store.Task) (store.Task, error) {
	if f.insertTaskFn != nil {
		return f.insertTaskFn(ctx, item)
	}
	item.ID = 1
	item.CreatedAt = time.Now()
	return item, nil
}
func (f *fakeStore) GetTask(ctx context.Context, taskID int64) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, taskID)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) GetTaskOwned(ctx context.Context, taskID, userID int64) (store.Task, error) {
	if f.getTaskOwnedFn != nil {
		return f.getTaskOwnedFn(ctx, taskID, userID)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateTask(ctx context.Context, item store.Task) error {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) DeleteTaskOwned(ctx context.Context, taskID, userID int64) (bool, error) {
	if f.deleteTaskOwnedFn != nil {
		return f.deleteTaskOwnedFn(ctx, taskID, userID)
	}
	return false, nil
}

func (f *fakeStore) ListSubtasks(ctx context.Context) ([]store.Subtask, error) {
	if f.listSubtasksFn != nil {
		return f.listSubtasksFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) ListSubtasksByOwner(ctx context.Context, userID int64) ([]store.Subtask, error) {
	if f.listSubtasksByOwner != nil {
		return f.listSubtasksByOwner(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) ListSubtasksByTask(ctx context.Context, taskID int64) ([]store.Subtask, error) {
	if f.listSubtasksByTaskFn != nil {
		return f.listSubtasksByTaskFn(ctx, taskID)
	}
	return nil, nil
}
func (f *fakeStore) InsertSubtask(ctx context.Context, item store.Subtask) (store.Subtask, error) {
	if f.insertSubtaskFn != nil {
		return f.insertSubtaskFn(ctx, item)
	}
	item.ID = 1
	item.CreatedAt = time.Now()
	return item, nil
}
func (f *fakeStore) GetSubtaskOwned(ctx context.Context, subtaskID, userID int64) (store.Subtask, error) {
	if f.getSubtaskOwnedFn != nil {
		return f.getSubtaskOwnedFn(ctx, subtaskID, userID)
	}
	return store.Subtask{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateSubtask(ctx context.Context, item store.Subtask) error {
	if f.updateSubtaskFn != nil {
		return f.updateSubtaskFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) DeleteSubtaskOwned(ctx context.Context, subtaskID, userID int64) (bool, error) {
	if f.deleteSubtaskOwnedFn != nil {
		return f.deleteSubtaskOwnedFn(ctx, subtaskID, userID)
	}
	return false, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash string, userID int64, _ time.Time) error {
	if f.refreshSessions == nil {
		f.refreshSessions = make(map[string]int64)
	}
	f.refreshSessions[tokenHash] = userID
	return nil
}
func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (int64, error) {
	userID, ok := f.refreshSessions[tokenHash]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}
func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.refreshSessions, tokenHash)
	return nil
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fs,
		sessions: fs,
	}
}

// bearerFor issues a real access token for the given user so requests run
// through the full token path.
func bearerFor(t *testing.T, svc *Service, user store.User) string {
	t.Helper()
	token, err := auth.IssueAccessToken([]byte(svc.cfg.JWTSecret), user.ID, user.Username, user.IsStaff, user.IsSuperuser, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func authedRequest(t *testing.T, svc *Service, method, target, body string, user store.User) *http.Request {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerFor(t, svc, user))
	return req
}
