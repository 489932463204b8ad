package board

import (
	"errors"
	"testing"

	"github.com/hylla/qboard/internal/domain"
)

func sessionBoard(t *testing.T) Board {
	t.Helper()
	return mustBoard(t,
		[]domain.Column{col("todo", 0), col("done", 1)},
		[]domain.Task{task("t1", "todo", 0, ""), task("t2", "todo", 1, ""), task("t3", "done", 0, "")},
	)
}

func TestSessionLifecycleCommit(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.State() != Dragging || s.OriginColumnID() != "todo" {
		t.Fatalf("state = %s origin = %q", s.State(), s.OriginColumnID())
	}
	commit, err := s.Drop(b, Target{ColumnID: "done"})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if s.State() != Committing {
		t.Fatalf("state = %s, want committing", s.State())
	}
	if commit.TaskMoved == nil || commit.TaskMoved.ToColumnID != "done" {
		t.Fatalf("unexpected commit %+v", commit.TaskMoved)
	}
	s.Complete()
	if s.State() != Idle || s.LastOutcome() != Committing {
		t.Fatalf("state = %s last = %s", s.State(), s.LastOutcome())
	}
}

func TestSessionRejectsSecondStart(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	err := s.Start(b, Subject{Kind: SubjectTask, ID: "t2"})
	if !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}
	if s.Subject().ID != "t1" || s.State() != Dragging {
		t.Fatalf("first session disturbed: subject=%+v state=%s", s.Subject(), s.State())
	}
}

func TestSessionStartUnknownSubject(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "ghost"}); !errors.Is(err, domain.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if err := s.Start(b, Subject{Kind: SubjectColumn, ID: "ghost"}); !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if s.Active() {
		t.Fatal("expected idle session after failed starts")
	}
}

func TestSessionHoverIsIdempotent(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	target := Target{ColumnID: "done", ReferenceID: "t3", Position: Before}
	first, err := s.Hover(b, target)
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	second, err := s.Hover(b, target)
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if !first.Changed || second.Changed {
		t.Fatalf("Changed flags = %t, %t; want true, false", first.Changed, second.Changed)
	}
	if !first.Commit.Board.Equal(second.Commit.Board) {
		t.Fatal("expected identical previews for identical targets")
	}
	if !b.Equal(sessionBoard(t)) {
		t.Fatal("hover mutated the board")
	}
	if s.State() != Dragging {
		t.Fatalf("hover changed state to %s", s.State())
	}
}

func TestSessionDropOutsideCancels(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	commit, err := s.Drop(b, Target{})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !commit.Cancelled || !commit.Board.Equal(b) {
		t.Fatalf("expected cancelled commit with unchanged board, got %+v", commit)
	}
	if s.State() != Idle || s.LastOutcome() != Cancelled {
		t.Fatalf("state = %s last = %s", s.State(), s.LastOutcome())
	}
}

func TestSessionDropUnknownColumnAborts(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	commit, err := s.Drop(b, Target{ColumnID: "archive"})
	if !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if !commit.Board.Equal(b) {
		t.Fatal("expected board unchanged")
	}
	if s.State() != Idle {
		t.Fatalf("state = %s, want idle", s.State())
	}
}

func TestSessionNoopDropReturnsToIdle(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t2"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	commit, err := s.Drop(b, Target{ColumnID: "todo", ReferenceID: "t1", Position: After})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !commit.NoOp || s.State() != Idle {
		t.Fatalf("noop=%t state=%s", commit.NoOp, s.State())
	}
}

func TestSessionCancelAndIdleOperations(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if _, err := s.Hover(b, Target{ColumnID: "done"}); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession from Hover, got %v", err)
	}
	if _, err := s.Drop(b, Target{ColumnID: "done"}); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession from Drop, got %v", err)
	}
	if err := s.Start(b, Subject{Kind: SubjectColumn, ID: "done"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Cancel()
	if s.State() != Idle || s.LastOutcome() != Cancelled {
		t.Fatalf("state = %s last = %s", s.State(), s.LastOutcome())
	}
	if err := s.Start(b, Subject{Kind: SubjectTask, ID: "t1"}); err != nil {
		t.Fatalf("restart after cancel error = %v", err)
	}
}

func TestSessionColumnDrag(t *testing.T) {
	b := sessionBoard(t)
	s := NewSession(Resolver{})
	if err := s.Start(b, Subject{Kind: SubjectColumn, ID: "done"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	commit, err := s.Drop(b, Target{ReferenceID: "todo", Position: Before})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if got := commit.Board.ColumnIDs(); len(got) != 2 || got[0] != "done" {
		t.Fatalf("unexpected order %v", got)
	}
	if len(commit.Reordered) != 2 {
		t.Fatalf("expected two reorder events, got %+v", commit.Reordered)
	}
}
