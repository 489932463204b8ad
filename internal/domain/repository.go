package domain

import (
	"strings"
	"time"
)

// Repository links a project to a GitHub repository used for code-quality scoring.
type Repository struct {
	ID             string
	ProjectID      string
	GithubRepoID   string
	InstallationID string
	ConnectedAt    time.Time
}

// NewRepository validates input and builds a repository link.
func NewRepository(id, projectID, githubRepoID string, now time.Time) (Repository, error) {
	id = strings.TrimSpace(id)
	projectID = strings.TrimSpace(projectID)
	githubRepoID = strings.TrimSpace(githubRepoID)
	if id == "" || projectID == "" {
		return Repository{}, ErrInvalidID
	}
	if githubRepoID == "" {
		return Repository{}, ErrInvalidRepository
	}
	return Repository{
		ID:           id,
		ProjectID:    projectID,
		GithubRepoID: githubRepoID,
		ConnectedAt:  now.UTC(),
	}, nil
}

// User is a board member.
type User struct {
	ID        string
	Login     string
	FirstName string
	LastName  string
	Email     string
	AvatarURL string
	CreatedAt time.Time
}

// DisplayName returns the full name, falling back to the login.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Login
	}
	return name
}
