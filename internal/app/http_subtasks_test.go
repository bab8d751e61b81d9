package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todotask/api/internal/store"
)

const fullSubtaskBody = `{"task_id":20,"title":"Buy paint","description":"Two cans","due_date":"2026-09-14T00:00:00Z","completed":false}`

func subtaskStoreWithTask(caller store.User, task store.Task) *fakeStore {
	return &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
		getTaskFn: func(_ context.Context, taskID int64) (store.Task, error) {
			if taskID == task.ID {
				return task, nil
			}
			return store.Task{}, sql.ErrNoRows
		},
	}
}

func TestCreateSubtaskUnderForeignTask(t *testing.T) {
	caller := store.User{ID: 2, Username: "blake", Email: "blake@example.com"}
	task := store.Task{ID: 20, ProjectID: 10, Title: "Paint", OwnerID: 1}
	svc := newTestService(subtaskStoreWithTask(caller, task))
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodPost, "/api/create_subtask", fullSubtaskBody, caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assertFailure(t, rr, http.StatusForbidden, "You do not have permission to assign subtasks to this task.")
}

func TestCreateSubtaskUnderUnknownTask(t *testing.T) {
	caller := store.User{ID: 1, Username: "avery", Email: "avery@example.com"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	body := `{"task_id":88,"title":"Buy paint","description":"x","due_date":"2026-09-14T00:00:00Z","completed":false}`
	req := authedRequest(t, svc, http.MethodPost, "/api/create_subtask", body, caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assertFailure(t, rr, http.StatusBadRequest, "Task with id 88 does not exist.")
}

func TestCreateSubtaskUnderOwnTask(t *testing.T) {
	caller := store.User{ID: 1, Username: "avery", Email: "avery@example.com"}
	task := store.Task{ID: 20, ProjectID: 10, Title: "Paint", OwnerID: caller.ID}
	fs := subtaskStoreWithTask(caller, task)
	fs.insertSubtaskFn = func(_ context.Context, item store.Subtask) (store.Subtask, error) {
		if item.TaskID != task.ID {
			t.Fatalf("expected task %d, got %d", task.ID, item.TaskID)
		}
		item.ID = 30
		item.CreatedAt = time.Now()
		return item, nil
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodPost, "/api/create_subtask", fullSubtaskBody, caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	if payload["message"] != "Subtask created successfully!" {
		t.Fatalf("unexpected message %v", payload["message"])
	}
	data, _ := payload["data"].(map[string]any)
	if data["title"] != "Buy paint" {
		t.Fatalf("expected subtask title, got %v", data["title"])
	}
	if data["task_id"] != float64(20) {
		t.Fatalf("expected task_id 20, got %v", data["task_id"])
	}
}

func TestUpdateSubtaskRequiresID(t *testing.T) {
	caller := store.User{ID: 1, Username: "avery", Email: "avery@example.com"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodPut, "/api/update_subtask", `{"title":"Buy brushes"}`, caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assertFailure(t, rr, http.StatusBadRequest, "Subtask ID is required in the request body!")
}

func TestUpdateForeignSubtaskReadsAsMissing(t *testing.T) {
	caller := store.User{ID: 2, Username: "blake", Email: "blake@example.com"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodPut, "/api/update_subtask", `{"id":30,"title":"Buy brushes"}`, caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assertFailure(t, rr, http.StatusNotFound, "Subtask not found!")
}

func TestDeleteSubtask(t *testing.T) {
	caller := store.User{ID: 1, Username: "avery", Email: "avery@example.com"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
		deleteSubtaskOwnedFn: func(_ context.Context, subtaskID, userID int64) (bool, error) {
			return subtaskID == 30 && userID == caller.ID, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodDelete, "/api/delete_subtask/30", "", caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	if payload["message"] != "Subtask deleted successfully!" {
		t.Fatalf("unexpected message %v", payload["message"])
	}

	req = authedRequest(t, svc, http.MethodDelete, "/api/delete_subtask/31", "", caller)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assertFailure(t, rr, http.StatusNotFound, "Subtask not found!")
}

func TestListSubtasksMessage(t *testing.T) {
	caller := store.User{ID: 1, Username: "avery", Email: "avery@example.com"}
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return caller, nil },
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	req := authedRequest(t, svc, http.MethodGet, "/api/subtasks", "", caller)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	if payload["message"] != "Sub Tasks fetched successfully!" {
		t.Fatalf("unexpected message %v", payload["message"])
	}
}
