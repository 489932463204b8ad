package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTaskTitleLen bounds task titles.
const MaxTaskTitleLen = 100

// Task is one card on a board.
type Task struct {
	ID          string
	ProjectID   string
	ColumnID    string
	Position    int
	Title       string
	Description string
	Priority    Priority
	AssigneeID  string
	ReporterID  string
	CommitHash  string
	LinesOfCode int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput holds constructor input for NewTask.
type TaskInput struct {
	ID          string
	ProjectID   string
	ColumnID    string
	Position    int
	Title       string
	Description string
	Priority    Priority
	AssigneeID  string
	ReporterID  string
	CommitHash  string
	LinesOfCode int
}

// NewTask validates input and builds a task.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" || in.ProjectID == "" {
		return Task{}, ErrInvalidID
	}
	if in.ColumnID == "" {
		return Task{}, ErrInvalidColumnID
	}
	if err := validateTaskTitle(in.Title); err != nil {
		return Task{}, err
	}
	if in.Position < 0 || in.LinesOfCode < 0 {
		return Task{}, ErrInvalidPosition
	}
	priority, err := ParsePriority(string(in.Priority))
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:          in.ID,
		ProjectID:   in.ProjectID,
		ColumnID:    in.ColumnID,
		Position:    in.Position,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		AssigneeID:  strings.TrimSpace(in.AssigneeID),
		ReporterID:  strings.TrimSpace(in.ReporterID),
		CommitHash:  strings.TrimSpace(in.CommitHash),
		LinesOfCode: in.LinesOfCode,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Move places the task into a column at the given position.
func (t *Task) Move(columnID string, position int, now time.Time) error {
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return ErrInvalidColumnID
	}
	if position < 0 {
		return ErrInvalidPosition
	}
	t.ColumnID = columnID
	t.Position = position
	t.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails replaces the editable text fields.
func (t *Task) UpdateDetails(title, description string, priority Priority, now time.Time) error {
	title = strings.TrimSpace(title)
	if err := validateTaskTitle(title); err != nil {
		return err
	}
	parsed, err := ParsePriority(string(priority))
	if err != nil {
		return err
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.Priority = parsed
	t.UpdatedAt = now.UTC()
	return nil
}

// validateTaskTitle checks presence and length.
func validateTaskTitle(title string) error {
	if title == "" || utf8.RuneCountInString(title) > MaxTaskTitleLen {
		return ErrInvalidTitle
	}
	return nil
}
