package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/qboard/internal/adapters/server"
	"github.com/hylla/qboard/internal/adapters/storage/sqlite"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
)

// createdTaskID extracts the id from "created <id> in <column>" output.
func createdTaskID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	if len(fields) < 4 || fields[0] != "created" {
		t.Fatalf("unexpected task add output %q", out)
	}
	return fields[1]
}

// TestRunTaskAddLocalDefaultsToFirstColumn verifies task add lands in the lowest-order column.
func TestRunTaskAddLocalDefaultsToFirstColumn(t *testing.T) {
	dbPath, cfgPath := localWorkspace(t)
	seeded := seedSQLiteFile(t, dbPath)

	var out bytes.Buffer
	args := []string{"--config", cfgPath, "task", "add", "--local", "--project", seeded.projectID,
		"--title", "Cut tag", "--priority", "high", "--loc", "12"}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), "in To Do") {
		t.Fatalf("expected task created in To Do, got %q", out.String())
	}
	task := reopenTask(t, dbPath, createdTaskID(t, out.String()))
	if task.Title != "Cut tag" || task.ColumnID != seeded.todoID || task.Priority != domain.PriorityHigh || task.LinesOfCode != 12 {
		t.Fatalf("unexpected created task %#v", task)
	}
	if task.Position != 2 {
		t.Fatalf("expected task appended after the seeded tasks, got position %d", task.Position)
	}
}

// TestRunTaskAddRejectsUnknownColumnAndPriority verifies invalid flags fail before writing.
func TestRunTaskAddRejectsUnknownColumnAndPriority(t *testing.T) {
	dbPath, cfgPath := localWorkspace(t)
	seeded := seedSQLiteFile(t, dbPath)

	args := []string{"--config", cfgPath, "task", "add", "--local", "--project", seeded.projectID, "--title", "x", "--column", "missing"}
	if err := run(context.Background(), args, io.Discard, io.Discard); !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	args = []string{"--config", cfgPath, "task", "add", "--local", "--project", seeded.projectID, "--title", "x", "--priority", "urgent"}
	if err := run(context.Background(), args, io.Discard, io.Discard); !errors.Is(err, app.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// TestRunTaskEditLocalChangesOnlyGivenFields verifies edit leaves unset fields alone.
func TestRunTaskEditLocalChangesOnlyGivenFields(t *testing.T) {
	dbPath, cfgPath := localWorkspace(t)
	seeded := seedSQLiteFile(t, dbPath)

	var out bytes.Buffer
	args := []string{"--config", cfgPath, "task", "edit", "--local", "--task", seeded.taskIDs[0],
		"--title", "Write the docs", "--priority", "low", "--column", seeded.doneID}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	want := fmt.Sprintf("updated %s in Done", seeded.taskIDs[0])
	if got := strings.TrimSpace(out.String()); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	task := reopenTask(t, dbPath, seeded.taskIDs[0])
	if task.Title != "Write the docs" || task.Priority != domain.PriorityLow || task.ColumnID != seeded.doneID {
		t.Fatalf("unexpected edited task %#v", task)
	}
	if task.CommitHash != "c0ffee" {
		t.Fatalf("expected untouched commit hash, got %q", task.CommitHash)
	}
}

// TestRunTaskRemoveLocal verifies rm deletes the task.
func TestRunTaskRemoveLocal(t *testing.T) {
	dbPath, cfgPath := localWorkspace(t)
	seeded := seedSQLiteFile(t, dbPath)

	var out bytes.Buffer
	args := []string{"--config", cfgPath, "task", "rm", "--local", "--task", seeded.taskIDs[1]}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "deleted "+seeded.taskIDs[1] {
		t.Fatalf("unexpected rm output %q", got)
	}
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()
	svc := app.NewService(repo, newSeedIDGen(), nil, app.ServiceConfig{})
	if _, err := svc.GetTask(context.Background(), seeded.taskIDs[1]); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
}

// TestRunTaskAddAndEditThroughAPIServer verifies the task commands drive the HTTP client.
func TestRunTaskAddAndEditThroughAPIServer(t *testing.T) {
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	svc := app.NewService(repo, newSeedIDGen(), nil, app.ServiceConfig{})
	seeded := seedLocalBoard(t, svc)

	handler, _, err := server.NewHandler(server.Config{}, server.Dependencies{Backend: svc})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, cfgPath := localWorkspace(t)
	t.Setenv("QBOARD_API_BASE_URL", srv.URL+"/api")
	t.Setenv("QBOARD_BOARD_PROJECT_ID", seeded.projectID)

	var out bytes.Buffer
	args := []string{"--config", cfgPath, "task", "add", "--title", "Review PR", "--column", seeded.doneID, "--description", "second pass"}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run(add) error = %v", err)
	}
	taskID := createdTaskID(t, out.String())
	created, err := svc.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if created.Title != "Review PR" || created.Description != "second pass" || created.ColumnID != seeded.doneID {
		t.Fatalf("unexpected remote task %#v", created)
	}

	out.Reset()
	args = []string{"--config", cfgPath, "task", "edit", "--task", taskID, "--priority", "medium"}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run(edit) error = %v", err)
	}
	if !strings.Contains(out.String(), "updated "+taskID+" in Done") {
		t.Fatalf("unexpected edit output %q", out.String())
	}
	edited, err := svc.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if edited.Priority != domain.PriorityMedium || edited.Title != "Review PR" || edited.Description != "second pass" {
		t.Fatalf("unexpected remote edit %#v", edited)
	}
}
