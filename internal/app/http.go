package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todotask/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && path == "/api/create_user" {
		var body SignUpInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.SignUp(r.Context(), body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, "User created successfully!", payload)
		return
	}

	if r.Method == http.MethodPost && path == "/api/login_user" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		session, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "User logged in successfully!", map[string]any{
			"access_token":  session.Token,
			"refresh_token": session.RefreshToken,
		})
		return
	}

	if r.Method == http.MethodPost && path == "/api/token/refresh" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Token refreshed successfully!", map[string]any{
			"access_token":  session.Token,
			"refresh_token": session.RefreshToken,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && path == "/api/users" {
		payload, err := s.service.ListUsers(r.Context(), session)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Users fetched successfully!", payload)
		return
	}

	if r.Method == http.MethodGet && path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				writeFailure(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		offset := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeFailure(w, http.StatusBadRequest, "offset must be a non-negative integer")
				return
			}
			offset = parsed
		}
		payload := s.service.Search(r.Context(), session, q, limit, offset)
		writeSuccess(w, http.StatusOK, "Search results fetched successfully!", payload)
		return
	}

	// Projects
	if r.Method == http.MethodGet && path == "/api/projects" {
		payload, err := s.service.ListProjects(r.Context(), session)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Projects fetched successfully!", payload)
		return
	}

	if r.Method == http.MethodPost && path == "/api/create_project" {
		var body struct {
			ProjectName string `json:"project_name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateProject(r.Context(), session, body.ProjectName)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, "Project created successfully!", payload)
		return
	}

	if r.Method == http.MethodPut && path == "/api/update_project" {
		var body UpdateProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateProject(r.Context(), session, body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Project updated successfully!", payload)
		return
	}

	// Tasks
	if r.Method == http.MethodGet && path == "/api/tasks" {
		payload, err := s.service.ListTasks(r.Context(), session)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Tasks fetched successfully!", payload)
		return
	}

	if r.Method == http.MethodPost && path == "/api/create_task" {
		var body CreateTaskInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateTask(r.Context(), session, body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, "Task created successfully!", payload)
		return
	}

	if r.Method == http.MethodPut && path == "/api/update_task" {
		var body UpdateTaskInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateTask(r.Context(), session, body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Task updated successfully!", payload)
		return
	}

	// Subtasks
	if r.Method == http.MethodGet && path == "/api/subtasks" {
		payload, err := s.service.ListSubtasks(r.Context(), session)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Sub Tasks fetched successfully!", payload)
		return
	}

	if r.Method == http.MethodPost && path == "/api/create_subtask" {
		var body CreateSubtaskInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.CreateSubtask(r.Context(), session, body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, "Subtask created successfully!", payload)
		return
	}

	if r.Method == http.MethodPut && path == "/api/update_subtask" {
		var body UpdateSubtaskInput
		if err := decodeBody(r, &body); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := s.service.UpdateSubtask(r.Context(), session, body)
		if err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Subtask updated successfully!", payload)
		return
	}

	parts := splitPath(path)

	if len(parts) == 3 && r.Method == http.MethodDelete && parts[0] == "api" && parts[1] == "delete_project" {
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Project ID must be an integer.")
			return
		}
		if err := s.service.DeleteProject(r.Context(), session, id); err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Project deleted successfully!", nil)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete && parts[0] == "api" && parts[1] == "delete_task" {
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Task ID must be an integer.")
			return
		}
		if err := s.service.DeleteTask(r.Context(), session, id); err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Task deleted successfully!", nil)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete && parts[0] == "api" && parts[1] == "delete_subtask" {
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Subtask ID must be an integer.")
			return
		}
		if err := s.service.DeleteSubtask(r.Context(), session, id); err != nil {
			status, message := mapError(err)
			writeFailure(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, "Subtask deleted successfully!", nil)
		return
	}

	writeFailure(w, http.StatusNotFound, "Not found")
}

// requireSession resolves the bearer token into a session. Missing, invalid
// and expired tokens all produce the same fixed 401 message.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return Session{}, false
		}
		writeFailure(w, http.StatusInternalServerError, "Session lookup failed")
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeSuccess emits the response envelope. The data key is omitted when
// there is no payload.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	response := map[string]any{
		"success": true,
		"message": message,
	}
	if data != nil {
		response["data"] = data
	}
	writeJSON(w, status, response)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (int, string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Message
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "Not found"
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "Authentication credentials were not provided."
	}
	return http.StatusInternalServerError, "Server error"
}
