// Package httpclient talks to the board REST API.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/hylla/qboard/internal/adapters/wire"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
	"github.com/sourcegraph/conc/pool"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// defaultTimeout bounds one request round trip.
const defaultTimeout = 15 * time.Second

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes int64 = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
	// OnUnauthorized runs after a 401 clears the token.
	OnUnauthorized func()
}

// Client implements app.Backend over HTTP.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	logger         *log.Logger
	onUnauthorized func()

	mu    sync.RWMutex
	token string
}

var _ app.Backend = (*Client)(nil)

// New constructs a client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q must use http or https", raw)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		baseURL:        base,
		http:           httpClient,
		logger:         logger,
		onUnauthorized: opts.OnUnauthorized,
		token:          strings.TrimSpace(opts.Token),
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// ListProjects lists projects.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []wire.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return wire.Projects(out), nil
}

// GetProject returns project.
func (c *Client) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var out wire.Project
	if err := c.do(ctx, http.MethodGet, join("projects", id), nil, nil, &out); err != nil {
		return domain.Project{}, err
	}
	return out.Domain(), nil
}

// CreateProject creates a project with optional initial columns.
func (c *Client) CreateProject(ctx context.Context, in app.CreateProjectInput) (domain.Project, error) {
	req := wire.CreateProjectRequest{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
	}
	for _, tpl := range in.Columns {
		req.Columns = append(req.Columns, wire.ColumnSeed{Name: tpl.Name, Color: string(tpl.Color)})
	}
	var out wire.Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, req, &out); err != nil {
		return domain.Project{}, err
	}
	return out.Domain(), nil
}

// UpdateProject patches a project.
func (c *Client) UpdateProject(ctx context.Context, in app.UpdateProjectInput) (domain.Project, error) {
	req := wire.UpdateProjectRequest{
		Name:        in.Name,
		Description: in.Description,
		AvatarURL:   in.AvatarURL,
	}
	if in.Status != nil {
		status := string(*in.Status)
		req.Status = &status
	}
	var out wire.Project
	if err := c.do(ctx, http.MethodPatch, join("projects", in.ID), nil, req, &out); err != nil {
		return domain.Project{}, err
	}
	return out.Domain(), nil
}

// DeleteProject deletes project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join("projects", id), nil, nil, nil)
}

// AddProjectMember adds a user to a project.
func (c *Client) AddProjectMember(ctx context.Context, projectID, userID string) error {
	req := wire.AddMemberRequest{UserID: wire.ID(strings.TrimSpace(userID))}
	return c.do(ctx, http.MethodPost, join("projects", projectID, "members"), nil, req, nil)
}

// RemoveProjectMember removes a user from a project.
func (c *Client) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return c.do(ctx, http.MethodDelete, join("projects", projectID, "members", userID), nil, nil, nil)
}

// ListProjectMembers lists project members.
func (c *Client) ListProjectMembers(ctx context.Context, projectID string) ([]domain.User, error) {
	var out []wire.User
	if err := c.do(ctx, http.MethodGet, join("projects", projectID, "members"), nil, nil, &out); err != nil {
		return nil, err
	}
	return wire.Users(out), nil
}

// ListColumns lists a project's columns.
func (c *Client) ListColumns(ctx context.Context, projectID string) ([]domain.Column, error) {
	var out []wire.Column
	if err := c.do(ctx, http.MethodGet, join("projects", projectID, "columns"), nil, nil, &out); err != nil {
		return nil, err
	}
	return wire.Columns(out), nil
}

// CreateColumn creates a column.
func (c *Client) CreateColumn(ctx context.Context, in app.CreateColumnInput) (domain.Column, error) {
	req := wire.CreateColumnRequest{Name: strings.TrimSpace(in.Name), Color: string(in.Color)}
	var out wire.Column
	if err := c.do(ctx, http.MethodPost, join("projects", in.ProjectID, "columns"), nil, req, &out); err != nil {
		return domain.Column{}, err
	}
	return out.Domain(), nil
}

// UpdateColumn patches a column.
func (c *Client) UpdateColumn(ctx context.Context, in app.UpdateColumnInput) (domain.Column, error) {
	req := wire.UpdateColumnRequest{Name: in.Name, Order: in.Order}
	if in.Color != nil {
		color := string(*in.Color)
		req.Color = &color
	}
	var out wire.Column
	if err := c.do(ctx, http.MethodPatch, join("projects", in.ProjectID, "columns", in.ColumnID), nil, req, &out); err != nil {
		return domain.Column{}, err
	}
	return out.Domain(), nil
}

// DeleteColumn deletes a column.
func (c *Client) DeleteColumn(ctx context.Context, projectID, columnID string) error {
	return c.do(ctx, http.MethodDelete, join("projects", projectID, "columns", columnID), nil, nil, nil)
}

// ListTasks lists tasks matching filter.
func (c *Client) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	query := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			query.Set(key, value)
		}
	}
	set("projectId", filter.ProjectID)
	set("columnId", filter.ColumnID)
	set("assigneeId", filter.AssigneeID)
	set("reporterId", filter.ReporterID)
	set("priority", string(filter.Priority))
	set("sortBy", string(filter.SortBy))
	set("sortOrder", string(filter.SortOrder))

	var out []wire.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &out); err != nil {
		return nil, err
	}
	return wire.Tasks(out), nil
}

// GetTask returns task.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var out wire.Task
	if err := c.do(ctx, http.MethodGet, join("tasks", id), nil, nil, &out); err != nil {
		return domain.Task{}, err
	}
	return out.Domain(), nil
}

// CreateTask creates a task in a column.
func (c *Client) CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error) {
	req := wire.CreateTaskRequest{
		ColumnID:         wire.ID(strings.TrimSpace(in.ColumnID)),
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		AssigneeID:       wire.ID(strings.TrimSpace(in.AssigneeID)),
		Priority:         string(in.Priority),
		GithubCommitHash: strings.TrimSpace(in.CommitHash),
		LinesOfCode:      in.LinesOfCode,
	}
	var out wire.Task
	if err := c.do(ctx, http.MethodPost, join("projects", in.ProjectID, "tasks"), nil, req, &out); err != nil {
		return domain.Task{}, err
	}
	return out.Domain(), nil
}

// UpdateTask patches a task.
func (c *Client) UpdateTask(ctx context.Context, in app.UpdateTaskInput) (domain.Task, error) {
	req := wire.UpdateTaskRequest{
		ColumnID:         wire.Ptr(in.ColumnID),
		Title:            in.Title,
		Description:      in.Description,
		AssigneeID:       wire.Ptr(in.AssigneeID),
		GithubCommitHash: in.CommitHash,
		LinesOfCode:      in.LinesOfCode,
	}
	if in.Priority != nil {
		priority := string(*in.Priority)
		req.Priority = &priority
	}
	var out wire.Task
	if err := c.do(ctx, http.MethodPatch, join("tasks", in.ID), nil, req, &out); err != nil {
		return domain.Task{}, err
	}
	return out.Domain(), nil
}

// DeleteTask deletes task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join("tasks", id), nil, nil, nil)
}

// ListRepositories lists a project's repositories.
func (c *Client) ListRepositories(ctx context.Context, projectID string) ([]domain.Repository, error) {
	var out []wire.Repository
	if err := c.do(ctx, http.MethodGet, join("repositories", "project", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return wire.Repositories(out), nil
}

// GetRepository returns repository.
func (c *Client) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	var out wire.Repository
	if err := c.do(ctx, http.MethodGet, join("repositories", id), nil, nil, &out); err != nil {
		return domain.Repository{}, err
	}
	return out.Domain(), nil
}

// CreateRepository connects a repository to a project.
func (c *Client) CreateRepository(ctx context.Context, in app.CreateRepositoryInput) (domain.Repository, error) {
	req := wire.CreateRepositoryRequest{
		ProjectID:    wire.ID(strings.TrimSpace(in.ProjectID)),
		GithubRepoID: wire.ID(strings.TrimSpace(in.GithubRepoID)),
	}
	var out wire.Repository
	if err := c.do(ctx, http.MethodPost, "/repositories", nil, req, &out); err != nil {
		return domain.Repository{}, err
	}
	return out.Domain(), nil
}

// UpdateRepository patches a repository.
func (c *Client) UpdateRepository(ctx context.Context, in app.UpdateRepositoryInput) (domain.Repository, error) {
	req := wire.UpdateRepositoryRequest{
		GithubRepoID:   wire.Ptr(in.GithubRepoID),
		InstallationID: in.InstallationID,
	}
	var out wire.Repository
	if err := c.do(ctx, http.MethodPatch, join("repositories", in.ID), nil, req, &out); err != nil {
		return domain.Repository{}, err
	}
	return out.Domain(), nil
}

// DeleteRepository disconnects a repository.
func (c *Client) DeleteRepository(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join("repositories", id), nil, nil, nil)
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var out wire.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &out); err != nil {
		return domain.User{}, err
	}
	return out.Domain(), nil
}

// ListUsers lists users.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []wire.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return wire.Users(out), nil
}

// GetUser returns user.
func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	var out wire.User
	if err := c.do(ctx, http.MethodGet, join("users", id), nil, nil, &out); err != nil {
		return domain.User{}, err
	}
	return out.Domain(), nil
}

// FetchBoard loads the project, its columns and its tasks concurrently.
func (c *Client) FetchBoard(ctx context.Context, projectID string) (app.BoardData, error) {
	var data app.BoardData
	workers := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithFirstError()
	workers.Go(func(ctx context.Context) error {
		project, err := c.GetProject(ctx, projectID)
		data.Project = project
		return err
	})
	workers.Go(func(ctx context.Context) error {
		columns, err := c.ListColumns(ctx, projectID)
		data.Columns = columns
		return err
	})
	workers.Go(func(ctx context.Context) error {
		tasks, err := c.ListTasks(ctx, app.TaskFilter{ProjectID: projectID})
		data.Tasks = tasks
		return err
	})
	if err := workers.Wait(); err != nil {
		return app.BoardData{}, err
	}
	return data, nil
}

// CommitTaskMove sends only the new column id.
func (c *Client) CommitTaskMove(ctx context.Context, taskID, columnID string) (domain.Task, error) {
	return c.UpdateTask(ctx, app.UpdateTaskInput{ID: taskID, ColumnID: &columnID})
}

// CommitColumnReorder sends only the new order value.
func (c *Client) CommitColumnReorder(ctx context.Context, projectID, columnID string, order int) (domain.Column, error) {
	return c.UpdateColumn(ctx, app.UpdateColumnInput{ProjectID: projectID, ColumnID: columnID, Order: &order})
}

// do issues one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := *c.baseURL
	target.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(target.RawPath)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	target.Path = unescaped
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := decodeStatusError(method, path, resp.StatusCode, raw)
		if errors.Is(statusErr, app.ErrUnauthorized) {
			c.SetToken("")
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
		}
		return statusErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// join builds an escaped API path from segments.
func join(segments ...string) string {
	var b strings.Builder
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(strings.TrimSpace(segment)))
	}
	return b.String()
}
