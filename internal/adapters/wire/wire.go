// Package wire holds the JSON shapes exchanged with the board API and the
// conversions between them and domain values.
package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ID is an entity identifier that may travel as a JSON number or string.
// Numeric IDs are written back as numbers.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("decode id %s: %w", data, err)
		}
		*id = ID(data)
		return nil
	}
}

// MarshalJSON writes decimal IDs as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return sonic.Marshal(string(id))
}

// numeric reports whether id is a canonical non-negative integer.
func (id ID) numeric() bool {
	s := string(id)
	if s == "" || len(s) > 18 || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String returns the id text.
func (id ID) String() string {
	return string(id)
}

// Ptr returns a pointer to an ID built from s, or nil when s is nil.
func Ptr(s *string) *ID {
	if s == nil {
		return nil
	}
	id := ID(strings.TrimSpace(*s))
	return &id
}

// Project is the project resource.
type Project struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Status      string    `json:"status"`
	OwnerID     ID        `json:"ownerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Column is the column resource.
type Column struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is the task resource.
type Task struct {
	ID               ID        `json:"id"`
	ProjectID        ID        `json:"projectId"`
	ColumnID         ID        `json:"columnId"`
	Position         int       `json:"position"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	AssigneeID       ID        `json:"assigneeId,omitempty"`
	ReporterID       ID        `json:"reporterId,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	GithubCommitHash string    `json:"githubCommitHash,omitempty"`
	LinesOfCode      int       `json:"linesOfCode,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Repository is the connected-repository resource.
type Repository struct {
	ID             ID        `json:"id"`
	ProjectID      ID        `json:"projectId"`
	GithubRepoID   ID        `json:"githubRepoId"`
	InstallationID string    `json:"installationId,omitempty"`
	ConnectedAt    time.Time `json:"connectedAt"`
}

// User is the user resource.
type User struct {
	ID        ID        `json:"id"`
	Login     string    `json:"login"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ColumnSeed names one initial column of a new project.
type ColumnSeed struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CreateProjectRequest is the POST /projects body.
type CreateProjectRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	Columns     []ColumnSeed `json:"columns,omitempty"`
}

// UpdateProjectRequest is the PATCH /projects/{id} body.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// AddMemberRequest is the POST /projects/{id}/members body.
type AddMemberRequest struct {
	UserID ID     `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// CreateColumnRequest is the POST /projects/{pid}/columns body.
type CreateColumnRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// UpdateColumnRequest is the PATCH /projects/{pid}/columns/{cid} body.
type UpdateColumnRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// CreateTaskRequest is the POST /projects/{pid}/tasks body.
type CreateTaskRequest struct {
	ColumnID         ID     `json:"columnId"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	AssigneeID       ID     `json:"assigneeId,omitempty"`
	Priority         string `json:"priority,omitempty"`
	GithubCommitHash string `json:"githubCommitHash,omitempty"`
	LinesOfCode      int    `json:"linesOfCode,omitempty"`
}

// UpdateTaskRequest is the PATCH /tasks/{id} body.
type UpdateTaskRequest struct {
	ColumnID         *ID     `json:"columnId,omitempty"`
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	AssigneeID       *ID     `json:"assigneeId,omitempty"`
	Priority         *string `json:"priority,omitempty"`
	GithubCommitHash *string `json:"githubCommitHash,omitempty"`
	LinesOfCode      *int    `json:"linesOfCode,omitempty"`
}

// CreateRepositoryRequest is the POST /repositories body.
type CreateRepositoryRequest struct {
	ProjectID    ID     `json:"projectId"`
	GithubRepoID ID     `json:"githubRepoId"`
	AccessToken  string `json:"accessToken,omitempty"`
}

// UpdateRepositoryRequest is the PATCH /repositories/{id} body.
type UpdateRepositoryRequest struct {
	GithubRepoID   *ID     `json:"githubRepoId,omitempty"`
	InstallationID *string `json:"installationId,omitempty"`
	AccessToken    *string `json:"accessToken,omitempty"`
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
