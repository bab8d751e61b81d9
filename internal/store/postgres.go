package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore holds all relational access. Ownership scoping lives in the
// queries themselves: owner-scoped lookups make foreign records read as
// absent, and list queries pre-filter to the caller's subtree.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

func (s *PostgresStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_staff, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, user.Username, user.Email, user.PasswordHash, user.IsStaff, user.IsSuperuser).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_staff, is_superuser, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsStaff, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_staff, is_superuser, created_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsStaff, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListRegularUsers returns every account without privilege flags.
func (s *PostgresStore) ListRegularUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, is_staff, is_superuser, created_at
		FROM users
		WHERE NOT is_staff AND NOT is_superuser
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsStaff, &user.IsSuperuser, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// ── Projects ──

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	return s.queryProjects(ctx, `
		SELECT id, project_name, user_id, created_at
		FROM projects
		ORDER BY id
	`)
}

func (s *PostgresStore) ListProjectsByOwner(ctx context.Context, userID int64) ([]Project, error) {
	return s.queryProjects(ctx, `
		SELECT id, project_name, user_id, created_at
		FROM projects
		WHERE user_id=$1
		ORDER BY id
	`, userID)
}

func (s *PostgresStore) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.UserID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, name string, userID int64) (Project, error) {
	item := Project{Name: name, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (project_name, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, name, userID).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return item, nil
}

// GetProject loads a project regardless of owner; used where existence is
// disclosed deliberately (task creation under a named project id).
func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_name, user_id, created_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.UserID, &item.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

// GetProjectOwned loads a project only when the caller owns it; foreign
// records surface as sql.ErrNoRows.
func (s *PostgresStore) GetProjectOwned(ctx context.Context, projectID, userID int64) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_name, user_id, created_at
		FROM projects
		WHERE id=$1 AND user_id=$2
	`, projectID, userID).Scan(&item.ID, &item.Name, &item.UserID, &item.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateProjectName(ctx context.Context, projectID int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET project_name=$2 WHERE id=$1`, projectID, name)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// DeleteProjectOwned removes an owned project; descendant tasks and subtasks
// go with it via the cascading foreign keys.
func (s *PostgresStore) DeleteProjectOwned(ctx context.Context, projectID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete project result: %w", err)
	}
	return affected > 0, nil
}

// ── Tasks ──

const taskColumns = `t.id, t.project_id, t.title, t.description, t.due_date, t.completed, t.created_at, p.user_id`

func (s *PostgresStore) ListTasks(ctx context.Context) ([]Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		ORDER BY t.id
	`)
}

func (s *PostgresStore) ListTasksByOwner(ctx context.Context, userID int64) ([]Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.user_id=$1
		ORDER BY t.id
	`, userID)
}

func (s *PostgresStore) ListTasksByProject(ctx context.Context, projectID int64) ([]Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.project_id=$1
		ORDER BY t.id
	`, projectID)
}

func (s *PostgresStore) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.DueDate, &item.Completed, &item.CreatedAt, &item.OwnerID); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, item Task) (Task, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (project_id, title, description, due_date, completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, item.ProjectID, item.Title, item.Description, item.DueDate, item.Completed).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return item, nil
}

// GetTask loads a task with its resolved owner; used for subtask creation
// under a named task id.
func (s *PostgresStore) GetTask(ctx context.Context, taskID int64) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.id=$1
	`, taskID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.DueDate, &item.Completed, &item.CreatedAt, &item.OwnerID)
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetTaskOwned(ctx context.Context, taskID, userID int64) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.id=$1 AND p.user_id=$2
	`, taskID, userID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.DueDate, &item.Completed, &item.CreatedAt, &item.OwnerID)
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, item Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, due_date=$4, completed=$5
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.DueDate, item.Completed)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTaskOwned(ctx context.Context, taskID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks t
		USING projects p
		WHERE t.id=$1 AND p.id = t.project_id AND p.user_id=$2
	`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task result: %w", err)
	}
	return affected > 0, nil
}

// ── Subtasks ──

const subtaskColumns = `s.id, s.task_id, s.title, s.description, s.due_date, s.completed, s.created_at, p.user_id`

func (s *PostgresStore) ListSubtasks(ctx context.Context) ([]Subtask, error) {
	return s.querySubtasks(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		ORDER BY s.id
	`)
}

func (s *PostgresStore) ListSubtasksByOwner(ctx context.Context, userID int64) ([]Subtask, error) {
	return s.querySubtasks(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE p.user_id=$1
		ORDER BY s.id
	`, userID)
}

func (s *PostgresStore) ListSubtasksByTask(ctx context.Context, taskID int64) ([]Subtask, error) {
	return s.querySubtasks(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE s.task_id=$1
		ORDER BY s.id
	`, taskID)
}

func (s *PostgresStore) querySubtasks(ctx context.Context, query string, args ...any) ([]Subtask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	items := make([]Subtask, 0)
	for rows.Next() {
		var item Subtask
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Title, &item.Description, &item.DueDate, &item.Completed, &item.CreatedAt, &item.OwnerID); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertSubtask(ctx context.Context, item Subtask) (Subtask, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subtasks (task_id, title, description, due_date, completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, item.TaskID, item.Title, item.Description, item.DueDate, item.Completed).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return Subtask{}, fmt.Errorf("insert subtask: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetSubtaskOwned(ctx context.Context, subtaskID, userID int64) (Subtask, error) {
	var item Subtask
	err := s.db.QueryRowContext(ctx, `
		SELECT `+subtaskColumns+`
		FROM subtasks s
		JOIN tasks t ON t.id = s.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE s.id=$1 AND p.user_id=$2
	`, subtaskID, userID).Scan(&item.ID, &item.TaskID, &item.Title, &item.Description, &item.DueDate, &item.Completed, &item.CreatedAt, &item.OwnerID)
	if err != nil {
		return Subtask{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateSubtask(ctx context.Context, item Subtask) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subtasks
		SET title=$2, description=$3, due_date=$4, completed=$5
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.DueDate, item.Completed)
	if err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSubtaskOwned(ctx context.Context, subtaskID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM subtasks s
		USING tasks t, projects p
		WHERE s.id=$1 AND t.id = s.task_id AND p.id = t.project_id AND p.user_id=$2
	`, subtaskID, userID)
	if err != nil {
		return false, fmt.Errorf("delete subtask: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subtask result: %w", err)
	}
	return affected > 0, nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}
