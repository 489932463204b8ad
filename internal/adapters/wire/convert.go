package wire

import (
	"strings"

	"github.com/hylla/qboard/internal/domain"
)

// FromProject converts a domain project.
func FromProject(p domain.Project) Project {
	return Project{
		ID:          ID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		AvatarURL:   p.AvatarURL,
		Status:      string(p.Status),
		OwnerID:     ID(p.OwnerID),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Domain converts to a domain project. Unknown statuses read as active.
func (p Project) Domain() domain.Project {
	status, err := domain.ParseProjectStatus(p.Status)
	if err != nil {
		status = domain.ProjectActive
	}
	return domain.Project{
		ID:          p.ID.String(),
		Slug:        strings.ToLower(strings.Join(strings.Fields(p.Name), "-")),
		Name:        p.Name,
		Description: p.Description,
		AvatarURL:   p.AvatarURL,
		Status:      status,
		OwnerID:     p.OwnerID.String(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// FromColumn converts a domain column.
func FromColumn(c domain.Column) Column {
	return Column{
		ID:        ID(c.ID),
		ProjectID: ID(c.ProjectID),
		Name:      c.Name,
		Color:     string(c.Color),
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Domain converts to a domain column. Unknown colors read as slate.
func (c Column) Domain() domain.Column {
	color, err := domain.NormalizeColumnColor(domain.ColumnColor(c.Color))
	if err != nil {
		color = domain.ColorSlate
	}
	return domain.Column{
		ID:        c.ID.String(),
		ProjectID: c.ProjectID.String(),
		Name:      c.Name,
		Color:     color,
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// FromTask converts a domain task.
func FromTask(t domain.Task) Task {
	return Task{
		ID:               ID(t.ID),
		ProjectID:        ID(t.ProjectID),
		ColumnID:         ID(t.ColumnID),
		Position:         t.Position,
		Title:            t.Title,
		Description:      t.Description,
		AssigneeID:       ID(t.AssigneeID),
		ReporterID:       ID(t.ReporterID),
		Priority:         string(t.Priority),
		GithubCommitHash: t.CommitHash,
		LinesOfCode:      t.LinesOfCode,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// Domain converts to a domain task. Unknown priorities read as none.
func (t Task) Domain() domain.Task {
	priority, err := domain.ParsePriority(t.Priority)
	if err != nil {
		priority = domain.PriorityNone
	}
	return domain.Task{
		ID:          t.ID.String(),
		ProjectID:   t.ProjectID.String(),
		ColumnID:    t.ColumnID.String(),
		Position:    t.Position,
		Title:       t.Title,
		Description: t.Description,
		Priority:    priority,
		AssigneeID:  t.AssigneeID.String(),
		ReporterID:  t.ReporterID.String(),
		CommitHash:  t.GithubCommitHash,
		LinesOfCode: t.LinesOfCode,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// FromRepository converts a domain repository.
func FromRepository(r domain.Repository) Repository {
	return Repository{
		ID:             ID(r.ID),
		ProjectID:      ID(r.ProjectID),
		GithubRepoID:   ID(r.GithubRepoID),
		InstallationID: r.InstallationID,
		ConnectedAt:    r.ConnectedAt,
	}
}

// Domain converts to a domain repository.
func (r Repository) Domain() domain.Repository {
	return domain.Repository{
		ID:             r.ID.String(),
		ProjectID:      r.ProjectID.String(),
		GithubRepoID:   r.GithubRepoID.String(),
		InstallationID: r.InstallationID,
		ConnectedAt:    r.ConnectedAt,
	}
}

// FromUser converts a domain user.
func FromUser(u domain.User) User {
	return User{
		ID:        ID(u.ID),
		Login:     u.Login,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// Domain converts to a domain user.
func (u User) Domain() domain.User {
	return domain.User{
		ID:        u.ID.String(),
		Login:     u.Login,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// Projects converts a project list.
func Projects(in []Project) []domain.Project {
	out := make([]domain.Project, 0, len(in))
	for _, p := range in {
		out = append(out, p.Domain())
	}
	return out
}

// Columns converts a column list.
func Columns(in []Column) []domain.Column {
	out := make([]domain.Column, 0, len(in))
	for _, c := range in {
		out = append(out, c.Domain())
	}
	return out
}

// Tasks converts a task list.
func Tasks(in []Task) []domain.Task {
	out := make([]domain.Task, 0, len(in))
	for _, t := range in {
		out = append(out, t.Domain())
	}
	return out
}

// Repositories converts a repository list.
func Repositories(in []Repository) []domain.Repository {
	out := make([]domain.Repository, 0, len(in))
	for _, r := range in {
		out = append(out, r.Domain())
	}
	return out
}

// Users converts a user list.
func Users(in []User) []domain.User {
	out := make([]domain.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.Domain())
	}
	return out
}
