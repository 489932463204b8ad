package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
)

func seedProject(t *testing.T, repo *Repository, now time.Time) (domain.Project, domain.Column, domain.Column) {
	t.Helper()
	ctx := context.Background()
	project, err := domain.NewProject("p1", "Example", "desc", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	todo, err := domain.NewColumn("c1", project.ID, "To Do", domain.ColorBlue, 0, now)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	done, err := domain.NewColumn("c2", project.ID, "Done", domain.ColorGreen, 1, now)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	for _, c := range []domain.Column{todo, done} {
		if err := repo.CreateColumn(ctx, c); err != nil {
			t.Fatalf("CreateColumn(%s) error = %v", c.ID, err)
		}
	}
	return project, todo, done
}

func TestRepository_ProjectColumnTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(filepath.Join(t.TempDir(), "qboard.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project, todo, done := seedProject(t, repo, now)

	loadedProject, err := repo.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if loadedProject.Name != "Example" || loadedProject.Status != domain.ProjectActive {
		t.Fatalf("unexpected project %+v", loadedProject)
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          "t1",
		ProjectID:   project.ID,
		ColumnID:    todo.ID,
		Title:       "Task title",
		Description: "Task details",
		Priority:    domain.PriorityHigh,
		CommitHash:  "abc123",
		LinesOfCode: 12,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := task.Move(done.ID, 0, now.Add(time.Minute)); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if err := repo.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	loaded, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if loaded.ColumnID != done.ID || loaded.Priority != domain.PriorityHigh || loaded.CommitHash != "abc123" || loaded.LinesOfCode != 12 {
		t.Fatalf("unexpected task %+v", loaded)
	}
	if !loaded.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("UpdatedAt = %s", loaded.UpdatedAt)
	}

	if err := todo.SetOrder(5, now); err != nil {
		t.Fatalf("SetOrder() error = %v", err)
	}
	if err := repo.UpdateColumn(ctx, todo); err != nil {
		t.Fatalf("UpdateColumn() error = %v", err)
	}
	columns, err := repo.ListColumns(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	if len(columns) != 2 || columns[0].ID != done.ID || columns[1].Order != 5 || columns[1].Color != domain.ColorBlue {
		t.Fatalf("unexpected columns %+v", columns)
	}
}

func TestRepository_ListTasksFilter(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project, todo, done := seedProject(t, repo, now)

	inputs := []domain.TaskInput{
		{ID: "a", ProjectID: project.ID, ColumnID: todo.ID, Position: 1, Title: "a", Priority: domain.PriorityLow, AssigneeID: "u1"},
		{ID: "b", ProjectID: project.ID, ColumnID: todo.ID, Position: 0, Title: "b", Priority: domain.PriorityHigh},
		{ID: "c", ProjectID: project.ID, ColumnID: done.ID, Position: 0, Title: "c", Priority: domain.PriorityHigh, AssigneeID: "u1"},
	}
	for _, in := range inputs {
		task, err := domain.NewTask(in, now)
		if err != nil {
			t.Fatalf("NewTask(%s) error = %v", in.ID, err)
		}
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", in.ID, err)
		}
	}

	cases := []struct {
		name   string
		filter app.TaskFilter
		want   []string
	}{
		{name: "project", filter: app.TaskFilter{ProjectID: project.ID}, want: []string{"b", "a", "c"}},
		{name: "column", filter: app.TaskFilter{ColumnID: done.ID}, want: []string{"c"}},
		{name: "assignee", filter: app.TaskFilter{ProjectID: project.ID, AssigneeID: "u1"}, want: []string{"a", "c"}},
		{name: "priority", filter: app.TaskFilter{Priority: domain.PriorityHigh}, want: []string{"b", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks, err := repo.ListTasks(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListTasks() error = %v", err)
			}
			if len(tasks) != len(tc.want) {
				t.Fatalf("got %d tasks, want %v", len(tasks), tc.want)
			}
			for idx, id := range tc.want {
				if tasks[idx].ID != id {
					t.Fatalf("tasks[%d] = %s, want %s", idx, tasks[idx].ID, id)
				}
			}
		})
	}
}

func TestRepository_CascadesAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project, todo, _ := seedProject(t, repo, now)

	task, _ := domain.NewTask(domain.TaskInput{ID: "t1", ProjectID: project.ID, ColumnID: todo.ID, Title: "x"}, now)
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if err := repo.DeleteColumn(ctx, todo.ID); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	if _, err := repo.GetTask(ctx, task.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected cascaded task delete, got %v", err)
	}

	orphan, _ := domain.NewTask(domain.TaskInput{ID: "t2", ProjectID: project.ID, ColumnID: "missing", Title: "x"}, now)
	if err := repo.CreateTask(ctx, orphan); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected foreign key failure as ErrNotFound, got %v", err)
	}

	repoRow, _ := domain.NewRepository("r1", project.ID, "987", now)
	if err := repo.CreateRepository(ctx, repoRow); err != nil {
		t.Fatalf("CreateRepository() error = %v", err)
	}
	if err := repo.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := repo.GetRepository(ctx, repoRow.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected cascaded repository delete, got %v", err)
	}
	if err := repo.DeleteProject(ctx, project.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.UpdateTask(ctx, task); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating deleted task, got %v", err)
	}
}

func TestRepository_UsersAndMembers(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	project, _, _ := seedProject(t, repo, now)

	user := domain.User{ID: "u1", Login: "octo", FirstName: "Octo", LastName: "Cat", CreatedAt: now}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := repo.CreateUser(ctx, user); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate user, got %v", err)
	}
	if err := repo.AddProjectMember(ctx, project.ID, user.ID); err != nil {
		t.Fatalf("AddProjectMember() error = %v", err)
	}
	if err := repo.AddProjectMember(ctx, project.ID, user.ID); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate member, got %v", err)
	}
	if err := repo.AddProjectMember(ctx, project.ID, "ghost"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	members, err := repo.ListProjectMembers(ctx, project.ID)
	if err != nil || len(members) != 1 || members[0].DisplayName() == "" {
		t.Fatalf("members = %+v, err = %v", members, err)
	}
	if err := repo.RemoveProjectMember(ctx, project.ID, user.ID); err != nil {
		t.Fatalf("RemoveProjectMember() error = %v", err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("users = %+v, err = %v", users, err)
	}
}

func TestRepository_ServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ids := 0
	svc := app.NewService(repo, func() string {
		ids++
		return "id-" + string(rune('a'+ids))
	}, nil, app.ServiceConfig{})
	if _, err := svc.EnsureLocalUser(ctx); err != nil {
		t.Fatalf("EnsureLocalUser() error = %v", err)
	}
	project, err := svc.CreateProject(ctx, app.CreateProjectInput{Name: "Roadmap"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	data, err := svc.FetchBoard(ctx, project.ID)
	if err != nil {
		t.Fatalf("FetchBoard() error = %v", err)
	}
	if len(data.Columns) != 4 {
		t.Fatalf("columns = %+v", data.Columns)
	}
	members, err := svc.ListProjectMembers(ctx, project.ID)
	if err != nil || len(members) != 1 {
		t.Fatalf("members = %+v, err = %v", members, err)
	}
}
