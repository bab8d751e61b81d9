package store

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
}

type Project struct {
	ID        int64
	Name      string
	UserID    int64
	CreatedAt time.Time
}

// Owner resolves the project owner directly.
func (p Project) Owner() (int64, bool) {
	return p.UserID, p.UserID != 0
}

type Task struct {
	ID          int64
	ProjectID   int64
	Title       string
	Description string
	DueDate     time.Time
	Completed   bool
	CreatedAt   time.Time
	// OwnerID is the owning project's user id, populated by joined reads.
	OwnerID int64
}

// Owner resolves the root-project owner walked in by the query join.
func (t Task) Owner() (int64, bool) {
	return t.OwnerID, t.OwnerID != 0
}

type Subtask struct {
	ID          int64
	TaskID      int64
	Title       string
	Description string
	DueDate     time.Time
	Completed   bool
	CreatedAt   time.Time
	OwnerID     int64
}

func (s Subtask) Owner() (int64, bool) {
	return s.OwnerID, s.OwnerID != 0
}
