package board

import (
	"fmt"

	"github.com/hylla/qboard/internal/domain"
)

// SubjectKind distinguishes task drags from column drags.
type SubjectKind int

// SubjectTask and SubjectColumn enumerate drag subjects.
const (
	SubjectTask SubjectKind = iota + 1
	SubjectColumn
)

// String returns the subject kind label.
func (k SubjectKind) String() string {
	switch k {
	case SubjectTask:
		return "task"
	case SubjectColumn:
		return "column"
	default:
		return "unknown"
	}
}

// Subject is the item being dragged.
type Subject struct {
	Kind SubjectKind
	ID   string
}

// State is a drag session state.
type State int

// Idle and related constants enumerate session states.
const (
	Idle State = iota
	Dragging
	Committing
	Cancelled
)

// String returns the state label.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Preview is the non-committing result of hovering a target.
type Preview struct {
	Target  Target
	Commit  Commit
	Changed bool
}

// Session tracks at most one in-progress drag.
// It is owned by the UI goroutine and is not safe for concurrent use.
type Session struct {
	resolver Resolver
	state    State
	subject  Subject
	origin   string
	hover    Target
	hovered  bool
	last     State
}

// NewSession constructs an idle session.
func NewSession(resolver Resolver) *Session {
	return &Session{resolver: resolver}
}

// SetResolver replaces the resolver used for later hovers and drops.
func (s *Session) SetResolver(resolver Resolver) {
	s.resolver = resolver
}

// Resolver returns the active resolver.
func (s *Session) Resolver() Resolver {
	return s.resolver
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Active reports whether a drag is in progress.
func (s *Session) Active() bool {
	return s.state != Idle
}

// Subject returns the dragged item, zero when idle.
func (s *Session) Subject() Subject {
	return s.subject
}

// OriginColumnID returns the column a dragged task started in.
func (s *Session) OriginColumnID() string {
	return s.origin
}

// HoverTarget returns the most recent hover target.
func (s *Session) HoverTarget() (Target, bool) {
	return s.hover, s.hovered
}

// LastOutcome reports how the previous session ended: Committing or Cancelled.
func (s *Session) LastOutcome() State {
	return s.last
}

// Start begins a drag of subject on b.
// A second Start while a session is active fails and leaves the first session untouched.
func (s *Session) Start(b Board, subject Subject) error {
	if s.state != Idle {
		return fmt.Errorf("start %s drag %q: %w", subject.Kind, subject.ID, domain.ErrSessionAlreadyActive)
	}
	origin := ""
	switch subject.Kind {
	case SubjectTask:
		columnID, _, ok := b.Locate(subject.ID)
		if !ok {
			return fmt.Errorf("start task drag %q: %w", subject.ID, domain.ErrUnknownTask)
		}
		origin = columnID
	case SubjectColumn:
		if !b.HasColumn(subject.ID) {
			return fmt.Errorf("start column drag %q: %w", subject.ID, domain.ErrUnknownColumn)
		}
		origin = subject.ID
	default:
		return fmt.Errorf("start drag: unsupported subject kind %d", subject.Kind)
	}

	s.state = Dragging
	s.subject = subject
	s.origin = origin
	s.hover = Target{}
	s.hovered = false
	return nil
}

// Hover resolves a preview without committing it.
// The same target always yields the same preview; Changed is false on repeats.
func (s *Session) Hover(b Board, target Target) (Preview, error) {
	if s.state != Dragging {
		return Preview{}, domain.ErrNoActiveSession
	}
	preview := Preview{
		Target:  target,
		Changed: !s.hovered || s.hover != target,
	}
	s.hover = target
	s.hovered = true
	if target.IsZero() {
		preview.Commit = Commit{Subject: s.subject, Before: b, Board: b, NoOp: true}
		return preview, nil
	}
	commit, err := s.resolver.Resolve(b, s.subject, target)
	if err != nil {
		return Preview{}, err
	}
	preview.Commit = commit
	return preview, nil
}

// Drop resolves target and moves the session to Committing.
// A zero target cancels. Resolver errors abort the session back to Idle.
// No-op drops return to Idle immediately.
func (s *Session) Drop(b Board, target Target) (Commit, error) {
	if s.state != Dragging {
		return Commit{Before: b, Board: b, NoOp: true}, domain.ErrNoActiveSession
	}
	if target.IsZero() {
		commit := Commit{Subject: s.subject, Before: b, Board: b, NoOp: true, Cancelled: true}
		s.Cancel()
		return commit, nil
	}

	commit, err := s.resolver.Resolve(b, s.subject, target)
	if err != nil {
		s.reset(Cancelled)
		return commit, err
	}
	if commit.NoOp {
		s.reset(Committing)
		return commit, nil
	}
	s.state = Committing
	return commit, nil
}

// Complete ends a committing session once the commit has been handed to the sync layer.
func (s *Session) Complete() {
	if s.state == Committing {
		s.reset(Committing)
	}
}

// Cancel abandons an in-progress drag without touching the board.
func (s *Session) Cancel() {
	if s.state != Dragging {
		return
	}
	s.state = Cancelled
	s.reset(Cancelled)
}

// reset returns to Idle and records the outcome.
func (s *Session) reset(outcome State) {
	s.state = Idle
	s.subject = Subject{}
	s.origin = ""
	s.hover = Target{}
	s.hovered = false
	s.last = outcome
}
