// Package httpapi provides the REST HTTP adapter for the board API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/hylla/qboard/internal/adapters/wire"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the API subrouter mounted under `/api`.
type Handler struct {
	backend app.Backend
	router  chi.Router
}

// APIError represents one structured API failure response.
type APIError = wire.APIError

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope = wire.ErrorEnvelope

// NewHandler constructs the HTTP API adapter over backend.
func NewHandler(backend app.Backend) *Handler {
	h := &Handler{backend: backend}
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleListProjects)
		r.Post("/", h.handleCreateProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.handleGetProject)
			r.Patch("/", h.handleUpdateProject)
			r.Delete("/", h.handleDeleteProject)
			r.Get("/members", h.handleListMembers)
			r.Post("/members", h.handleAddMember)
			r.Delete("/members/{userID}", h.handleRemoveMember)
			r.Get("/columns", h.handleListColumns)
			r.Post("/columns", h.handleCreateColumn)
			r.Patch("/columns/{columnID}", h.handleUpdateColumn)
			r.Delete("/columns/{columnID}", h.handleDeleteColumn)
			r.Post("/tasks", h.handleCreateTask)
		})
	})
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.handleListTasks)
		r.Get("/{taskID}", h.handleGetTask)
		r.Patch("/{taskID}", h.handleUpdateTask)
		r.Delete("/{taskID}", h.handleDeleteTask)
	})
	r.Route("/repositories", func(r chi.Router) {
		r.Post("/", h.handleCreateRepository)
		r.Get("/project/{projectID}", h.handleListRepositories)
		r.Get("/{repositoryID}", h.handleGetRepository)
		r.Patch("/{repositoryID}", h.handleUpdateRepository)
		r.Delete("/{repositoryID}", h.handleDeleteRepository)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.handleListUsers)
		r.Get("/me", h.handleCurrentUser)
		r.Get("/{userID}", h.handleGetUser)
	})
	h.router = r
	return h
}

// ServeHTTP routes one API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// handleListProjects serves GET `/projects`.
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.backend.ListProjects(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(projects, wire.FromProject))
}

// handleCreateProject serves POST `/projects`.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.CreateProjectInput{Name: req.Name, Description: req.Description, AvatarURL: req.AvatarURL}
	for _, seed := range req.Columns {
		in.Columns = append(in.Columns, app.ColumnTemplate{Name: seed.Name, Color: domain.ColumnColor(seed.Color)})
	}
	project, err := h.backend.CreateProject(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromProject(project))
}

// handleGetProject serves GET `/projects/{id}`.
func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.backend.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromProject(project))
}

// handleUpdateProject serves PATCH `/projects/{id}`.
func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.UpdateProjectInput{
		ID:          chi.URLParam(r, "projectID"),
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
	}
	if req.Status != nil {
		status, err := domain.ParseProjectStatus(*req.Status)
		if err != nil {
			writeErrorFrom(w, fmt.Errorf("%w: %w", app.ErrInvalidInput, err))
			return
		}
		in.Status = &status
	}
	project, err := h.backend.UpdateProject(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromProject(project))
}

// handleDeleteProject serves DELETE `/projects/{id}`.
func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMembers serves GET `/projects/{id}/members`.
func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	users, err := h.backend.ListProjectMembers(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, wire.FromUser))
}

// handleAddMember serves POST `/projects/{id}/members`.
func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req wire.AddMemberRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if strings.TrimSpace(req.UserID.String()) == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "userId is required"})
		return
	}
	if err := h.backend.AddProjectMember(r.Context(), chi.URLParam(r, "projectID"), req.UserID.String()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveMember serves DELETE `/projects/{id}/members/{userId}`.
func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.RemoveProjectMember(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "userID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListColumns serves GET `/projects/{id}/columns`.
func (h *Handler) handleListColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.backend.ListColumns(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(columns, wire.FromColumn))
}

// handleCreateColumn serves POST `/projects/{id}/columns`.
func (h *Handler) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateColumnRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	column, err := h.backend.CreateColumn(r.Context(), app.CreateColumnInput{
		ProjectID: chi.URLParam(r, "projectID"),
		Name:      req.Name,
		Color:     domain.ColumnColor(req.Color),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromColumn(column))
}

// handleUpdateColumn serves PATCH `/projects/{id}/columns/{columnId}`.
func (h *Handler) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateColumnRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.UpdateColumnInput{
		ProjectID: chi.URLParam(r, "projectID"),
		ColumnID:  chi.URLParam(r, "columnID"),
		Name:      req.Name,
		Order:     req.Order,
	}
	if req.Color != nil {
		color := domain.ColumnColor(*req.Color)
		in.Color = &color
	}
	column, err := h.backend.UpdateColumn(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromColumn(column))
}

// handleDeleteColumn serves DELETE `/projects/{id}/columns/{columnId}`.
func (h *Handler) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteColumn(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "columnID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateTask serves POST `/projects/{id}/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.backend.CreateTask(r.Context(), app.CreateTaskInput{
		ProjectID:   chi.URLParam(r, "projectID"),
		ColumnID:    req.ColumnID.String(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		AssigneeID:  req.AssigneeID.String(),
		CommitHash:  req.GithubCommitHash,
		LinesOfCode: req.LinesOfCode,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromTask(task))
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	priority, err := parsePriority(query.Get("priority"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	filter := app.TaskFilter{
		ProjectID:  strings.TrimSpace(query.Get("projectId")),
		ColumnID:   strings.TrimSpace(query.Get("columnId")),
		AssigneeID: strings.TrimSpace(query.Get("assigneeId")),
		ReporterID: strings.TrimSpace(query.Get("reporterId")),
		Priority:   priority,
		SortBy:     app.TaskSortField(strings.TrimSpace(query.Get("sortBy"))),
		SortOrder:  app.SortOrder(strings.ToLower(strings.TrimSpace(query.Get("sortOrder")))),
	}
	if filter.ProjectID == "" && filter.ColumnID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "projectId or columnId is required"})
		return
	}
	tasks, err := h.backend.ListTasks(r.Context(), filter)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(tasks, wire.FromTask))
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.backend.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromTask(task))
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.UpdateTaskInput{
		ID:          chi.URLParam(r, "taskID"),
		ColumnID:    idPtr(req.ColumnID),
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  idPtr(req.AssigneeID),
		CommitHash:  req.GithubCommitHash,
		LinesOfCode: req.LinesOfCode,
	}
	if req.Priority != nil {
		priority, err := parsePriority(*req.Priority)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		in.Priority = &priority
	}
	task, err := h.backend.UpdateTask(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromTask(task))
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteTask(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRepositories serves GET `/repositories/project/{projectId}`.
func (h *Handler) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.backend.ListRepositories(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(repos, wire.FromRepository))
}

// handleCreateRepository serves POST `/repositories`.
// Access tokens are accepted for compatibility and never stored.
func (h *Handler) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateRepositoryRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	repo, err := h.backend.CreateRepository(r.Context(), app.CreateRepositoryInput{
		ProjectID:    req.ProjectID.String(),
		GithubRepoID: req.GithubRepoID.String(),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromRepository(repo))
}

// handleGetRepository serves GET `/repositories/{id}`.
func (h *Handler) handleGetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.backend.GetRepository(r.Context(), chi.URLParam(r, "repositoryID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromRepository(repo))
}

// handleUpdateRepository serves PATCH `/repositories/{id}`.
func (h *Handler) handleUpdateRepository(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateRepositoryRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	repo, err := h.backend.UpdateRepository(r.Context(), app.UpdateRepositoryInput{
		ID:             chi.URLParam(r, "repositoryID"),
		GithubRepoID:   idPtr(req.GithubRepoID),
		InstallationID: req.InstallationID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromRepository(repo))
}

// handleDeleteRepository serves DELETE `/repositories/{id}`.
func (h *Handler) handleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteRepository(r.Context(), chi.URLParam(r, "repositoryID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentUser serves GET `/users/me`.
func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.backend.CurrentUser(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromUser(user))
}

// handleListUsers serves GET `/users`.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.backend.ListUsers(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, wire.FromUser))
}

// handleGetUser serves GET `/users/{id}`.
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.backend.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromUser(user))
}

// parsePriority parses an optional priority query or body value.
func parsePriority(raw string) (domain.Priority, error) {
	priority, err := domain.ParsePriority(raw)
	if err != nil {
		return domain.PriorityNone, fmt.Errorf("%w: %w", app.ErrInvalidInput, err)
	}
	return priority, nil
}

// idPtr converts an optional wire id.
func idPtr(id *wire.ID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// mapSlice converts every element with fn and never returns nil.
func mapSlice[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

// writeErrorFrom maps app errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, app.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := sonic.ConfigStd.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := sonic.ConfigStd.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(app.ErrInvalidInput, err))
	}
	if rest, _ := io.ReadAll(decoder.Buffered()); strings.TrimSpace(string(rest)) != "" {
		return fmt.Errorf("decode request body: trailing content: %w", app.ErrInvalidInput)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
