package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewProjectAndSlug(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	p, err := NewProject("p1", "  Quality Board!  ", " desc ", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if p.Slug != "quality-board" {
		t.Fatalf("unexpected slug %q", p.Slug)
	}
	if p.Name != "Quality Board!" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if p.Status != ProjectActive {
		t.Fatalf("unexpected status %q", p.Status)
	}
}

func TestNewProjectValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewProject("", "ok", "", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewProject("id", "   ", "", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewProject("id", strings.Repeat("x", MaxProjectNameLen+1), "", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName for long name, got %v", err)
	}
	if _, err := NewProject("id", "ok", strings.Repeat("d", MaxProjectDescriptionLen+1), now); err != ErrInvalidDescription {
		t.Fatalf("expected ErrInvalidDescription, got %v", err)
	}
}

func TestProjectStatus(t *testing.T) {
	now := time.Now()
	p, err := NewProject("p1", "test", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := p.SetStatus("archived", now.Add(time.Minute)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if !p.Archived() {
		t.Fatal("expected archived project")
	}
	if err := p.SetStatus("paused", now); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNewColumnValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewColumn("c1", "p1", "todo", ColorSlate, -1, now); err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if _, err := NewColumn("c1", "p1", "todo", "magenta", 0, now); err != ErrInvalidColor {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	c, err := NewColumn("c1", "p1", "todo", "", 0, now)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	if c.Color != ColorSlate {
		t.Fatalf("expected slate fallback, got %q", c.Color)
	}
}

func TestColumnMutations(t *testing.T) {
	now := time.Now()
	c, err := NewColumn("c1", "p1", "todo", ColorBlue, 0, now)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	if err := c.Rename("  done ", now.Add(time.Minute)); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if c.Name != "done" {
		t.Fatalf("unexpected column name %q", c.Name)
	}
	if err := c.SetOrder(3, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetOrder() error = %v", err)
	}
	if c.Order != 3 {
		t.Fatalf("unexpected order %d", c.Order)
	}
	if err := c.Recolor("GREEN", now); err != nil || c.Color != ColorGreen {
		t.Fatalf("Recolor() = %q, %v", c.Color, err)
	}
}

func TestNewTaskValidation(t *testing.T) {
	now := time.Now()
	base := TaskInput{ID: "t1", ProjectID: "p1", ColumnID: "c1", Title: "Fix lint"}

	cases := []struct {
		name string
		edit func(*TaskInput)
		want error
	}{
		{name: "missing id", edit: func(in *TaskInput) { in.ID = " " }, want: ErrInvalidID},
		{name: "missing column", edit: func(in *TaskInput) { in.ColumnID = "" }, want: ErrInvalidColumnID},
		{name: "empty title", edit: func(in *TaskInput) { in.Title = "" }, want: ErrInvalidTitle},
		{name: "long title", edit: func(in *TaskInput) { in.Title = strings.Repeat("t", MaxTaskTitleLen+1) }, want: ErrInvalidTitle},
		{name: "negative position", edit: func(in *TaskInput) { in.Position = -1 }, want: ErrInvalidPosition},
		{name: "bad priority", edit: func(in *TaskInput) { in.Priority = "urgent" }, want: ErrInvalidPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.edit(&in)
			if _, err := NewTask(in, now); !errors.Is(err, tc.want) {
				t.Fatalf("NewTask() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewTaskNormalizesPriority(t *testing.T) {
	task, err := NewTask(TaskInput{ID: "t1", ProjectID: "p1", ColumnID: "c1", Title: "x", Priority: "high"}, time.Now())
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Priority != PriorityHigh {
		t.Fatalf("unexpected priority %q", task.Priority)
	}
	unset, err := NewTask(TaskInput{ID: "t2", ProjectID: "p1", ColumnID: "c1", Title: "y"}, time.Now())
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if unset.Priority != PriorityNone {
		t.Fatalf("expected unset priority, got %q", unset.Priority)
	}
}

func TestTaskMove(t *testing.T) {
	now := time.Now()
	task, err := NewTask(TaskInput{ID: "t1", ProjectID: "p1", ColumnID: "c1", Title: "x"}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := task.Move("c2", 4, now.Add(time.Second)); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if task.ColumnID != "c2" || task.Position != 4 {
		t.Fatalf("unexpected placement %s/%d", task.ColumnID, task.Position)
	}
	if err := task.Move("", 0, now); err != ErrInvalidColumnID {
		t.Fatalf("expected ErrInvalidColumnID, got %v", err)
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityMedium.Rank() && PriorityMedium.Rank() > PriorityLow.Rank() && PriorityLow.Rank() > PriorityNone.Rank()) {
		t.Fatal("expected HIGH > MEDIUM > LOW > unset")
	}
	if Priority("high").Valid() {
		t.Fatal("expected lowercase priority to be non-canonical")
	}
}

func TestUserDisplayName(t *testing.T) {
	if got := (User{Login: "octo"}).DisplayName(); got != "octo" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := (User{Login: "octo", FirstName: "Ada", LastName: "Lovelace"}).DisplayName(); got != "Ada Lovelace" {
		t.Fatalf("unexpected display name %q", got)
	}
}
