package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxProjectNameLen and MaxProjectDescriptionLen bound project text fields.
const (
	MaxProjectNameLen        = 100
	MaxProjectDescriptionLen = 500
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// ProjectActive and ProjectArchived enumerate project statuses.
const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

// Project groups a board, its repositories and members.
type Project struct {
	ID          string
	Slug        string
	Name        string
	Description string
	AvatarURL   string
	Status      ProjectStatus
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProject constructs a new value for this package.
func NewProject(id, name, description string, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Project{}, ErrInvalidID
	}
	name, err := validateProjectName(name)
	if err != nil {
		return Project{}, err
	}
	description, err = validateProjectDescription(description)
	if err != nil {
		return Project{}, err
	}

	return Project{
		ID:          id,
		Slug:        normalizeSlug(name),
		Name:        name,
		Description: description,
		Status:      ProjectActive,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// ParseProjectStatus normalizes a raw status value.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	switch status := ProjectStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case ProjectActive, ProjectArchived:
		return status, nil
	case "":
		return ProjectActive, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Rename renames the project and refreshes its slug.
func (p *Project) Rename(name string, now time.Time) error {
	name, err := validateProjectName(name)
	if err != nil {
		return err
	}
	p.Name = name
	p.Slug = normalizeSlug(name)
	p.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails updates state for the requested operation.
func (p *Project) UpdateDetails(name, description, avatarURL string, now time.Time) error {
	if err := p.Rename(name, now); err != nil {
		return err
	}
	description, err := validateProjectDescription(description)
	if err != nil {
		return err
	}
	p.Description = description
	p.AvatarURL = strings.TrimSpace(avatarURL)
	return nil
}

// SetStatus handles set status.
func (p *Project) SetStatus(status ProjectStatus, now time.Time) error {
	parsed, err := ParseProjectStatus(string(status))
	if err != nil {
		return err
	}
	p.Status = parsed
	p.UpdatedAt = now.UTC()
	return nil
}

// Archived reports whether the project is archived.
func (p Project) Archived() bool {
	return p.Status == ProjectArchived
}

// validateProjectName trims and bounds a project name.
func validateProjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxProjectNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

// validateProjectDescription trims and bounds a project description.
func validateProjectDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > MaxProjectDescriptionLen {
		return "", ErrInvalidDescription
	}
	return description, nil
}

// normalizeSlug normalizes slug.
func normalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
