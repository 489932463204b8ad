package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/qboard/internal/board"
	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"
)

// maxReorderRequests caps concurrent column order commits.
const maxReorderRequests = 4

// MutationEvent is delivered to listeners when a drop changes the board.
// A column drop yields one event for the dragged column; Changes lists
// every column whose order now differs from the server-confirmed value.
type MutationEvent struct {
	ID              string
	Sequence        uint64
	At              time.Time
	TaskMoved       *board.TaskMoved
	ColumnReordered *board.ColumnReordered
	Changes         []board.ColumnReordered
}

// Listeners receives mutation events synchronously on the caller's goroutine.
type Listeners struct {
	OnTaskMoved       func(MutationEvent)
	OnColumnReordered func(MutationEvent)
}

// PendingCommit is the work a drop hands to the sync layer.
type PendingCommit struct {
	ID        string
	Sequence  uint64
	ProjectID string
	Commit    board.Commit
	At        time.Time
	refetch   bool
}

// NeedsSync reports whether the commit has anything to send.
// No-ops and same-column task reorders stay local.
func (p PendingCommit) NeedsSync() bool {
	if p.Commit.NoOp || p.Commit.Cancelled {
		return false
	}
	if p.Commit.TaskMoved != nil {
		return p.Commit.TaskMoved.CrossColumn()
	}
	return len(p.Commit.Reordered) > 0
}

// SyncResult is the outcome of Sync.
type SyncResult struct {
	ID        string
	Sequence  uint64
	ProjectID string
	Data      BoardData
	CommitErr error
	FetchErr  error
	Requests  int
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	PrioritySort bool
	Listeners    Listeners
	Logger       *log.Logger
	Clock        Clock
}

// Controller owns one board view: the current board, the drag session and
// the sequence of optimistic commits. Everything except Sync runs on the UI
// goroutine.
type Controller struct {
	remote    Remote
	logger    *log.Logger
	clock     Clock
	listeners Listeners

	projectID string
	board     board.Board
	project   BoardData
	loaded    bool
	session   *board.Session

	issued  uint64
	applied uint64
}

// NewController constructs a controller over remote.
func NewController(remote Remote, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		remote:    remote,
		logger:    logger,
		clock:     clock,
		listeners: opts.Listeners,
		session:   board.NewSession(board.Resolver{PrioritySort: opts.PrioritySort}),
	}
}

// Load fetches a project's board and replaces local state.
func (c *Controller) Load(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrNoProject
	}
	data, err := c.Fetch(ctx, projectID)
	if err != nil {
		return err
	}
	return c.Adopt(projectID, data)
}

// Fetch reads a project's board without touching controller state, so it may
// run off the UI goroutine. Pass the result to Adopt.
func (c *Controller) Fetch(ctx context.Context, projectID string) (BoardData, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return BoardData{}, ErrNoProject
	}
	data, err := c.remote.FetchBoard(ctx, projectID)
	if err != nil {
		return BoardData{}, fmt.Errorf("load board %q: %w", projectID, err)
	}
	return data, nil
}

// Adopt replaces local state with a fetched board. Commits issued before the
// call are superseded.
func (c *Controller) Adopt(projectID string, data BoardData) error {
	if err := c.apply(strings.TrimSpace(projectID), data); err != nil {
		return err
	}
	c.applied = c.issued
	return nil
}

// ProjectID returns the loaded project id.
func (c *Controller) ProjectID() string {
	return c.projectID
}

// Loaded reports whether a board has been loaded.
func (c *Controller) Loaded() bool {
	return c.loaded
}

// Data returns the last authoritative snapshot.
func (c *Controller) Data() BoardData {
	return c.project
}

// Board returns the current, possibly optimistic, board.
func (c *Controller) Board() board.Board {
	return c.board
}

// Session returns the drag session.
func (c *Controller) Session() *board.Session {
	return c.session
}

// PrioritySort reports whether task drops sort the destination column by priority.
func (c *Controller) PrioritySort() bool {
	return c.session.Resolver().PrioritySort
}

// SetPrioritySort toggles priority sorting for later drops.
func (c *Controller) SetPrioritySort(on bool) {
	c.session.SetResolver(board.Resolver{PrioritySort: on})
}

// StartTaskDrag begins dragging a task.
func (c *Controller) StartTaskDrag(taskID string) error {
	if !c.loaded {
		return ErrNoProject
	}
	return c.session.Start(c.board, board.Subject{Kind: board.SubjectTask, ID: taskID})
}

// StartColumnDrag begins dragging a column.
func (c *Controller) StartColumnDrag(columnID string) error {
	if !c.loaded {
		return ErrNoProject
	}
	return c.session.Start(c.board, board.Subject{Kind: board.SubjectColumn, ID: columnID})
}

// Hover previews a drop without changing the board.
func (c *Controller) Hover(target board.Target) (board.Preview, error) {
	return c.session.Hover(c.board, target)
}

// Cancel abandons the active drag.
func (c *Controller) Cancel() {
	c.session.Cancel()
}

// Drop resolves the active drag on target, applies the result optimistically
// and notifies listeners. The returned commit must be passed to Sync when
// NeedsSync reports true.
func (c *Controller) Drop(target board.Target) (PendingCommit, error) {
	commit, err := c.session.Drop(c.board, target)
	if err != nil {
		return PendingCommit{}, err
	}
	if commit.StaleReference {
		c.logger.Debug("drop reference task is stale; appended", "subject", commit.Subject.ID, "column", target.ColumnID, "reference", target.ReferenceID)
	}
	return c.accept(commit), nil
}

// MoveTask drags and drops a task in one step.
func (c *Controller) MoveTask(taskID string, target board.Target) (PendingCommit, error) {
	if err := c.StartTaskDrag(taskID); err != nil {
		return PendingCommit{}, err
	}
	return c.Drop(target)
}

// MoveColumn drags and drops a column in one step.
func (c *Controller) MoveColumn(columnID string, target board.Target) (PendingCommit, error) {
	if err := c.StartColumnDrag(columnID); err != nil {
		return PendingCommit{}, err
	}
	return c.Drop(target)
}

// Reload issues a refetch that supersedes any earlier in-flight result.
func (c *Controller) Reload() PendingCommit {
	c.issued++
	return PendingCommit{
		ID:        ulid.Make().String(),
		Sequence:  c.issued,
		ProjectID: c.projectID,
		Commit:    board.Commit{Before: c.board, Board: c.board, NoOp: true},
		At:        c.clock().UTC(),
		refetch:   true,
	}
}

// accept applies a resolved commit and completes the session.
func (c *Controller) accept(commit board.Commit) PendingCommit {
	pending := PendingCommit{
		ID:        ulid.Make().String(),
		ProjectID: c.projectID,
		Commit:    commit,
		At:        c.clock().UTC(),
	}
	if commit.NoOp || commit.Cancelled {
		pending.Sequence = c.issued
		return pending
	}

	c.board = commit.Board
	c.session.Complete()
	if pending.NeedsSync() {
		c.issued++
	}
	pending.Sequence = c.issued

	if commit.TaskMoved != nil && c.listeners.OnTaskMoved != nil {
		c.listeners.OnTaskMoved(MutationEvent{ID: pending.ID, Sequence: pending.Sequence, At: pending.At, TaskMoved: commit.TaskMoved})
	}
	if commit.Subject.Kind == board.SubjectColumn && c.listeners.OnColumnReordered != nil {
		event := draggedColumn(commit)
		c.listeners.OnColumnReordered(MutationEvent{
			ID:              pending.ID,
			Sequence:        pending.Sequence,
			At:              pending.At,
			ColumnReordered: &event,
			Changes:         slices.Clone(commit.Reordered),
		})
	}
	return pending
}

// draggedColumn reports the dropped column's new order index.
func draggedColumn(commit board.Commit) board.ColumnReordered {
	event := board.ColumnReordered{ColumnID: commit.Subject.ID, PreviousOrder: -1}
	if column, ok := commit.Board.Column(commit.Subject.ID); ok {
		event.Order = column.Order
	}
	if previous, ok := commit.Before.ConfirmedOrder(commit.Subject.ID); ok {
		event.PreviousOrder = previous
	}
	return event
}

// Sync sends the minimal request set for p and refetches the board.
// It reads only p and the remote, so it may run off the UI goroutine.
// The refetch runs even when the commit fails so the caller can revert.
func (c *Controller) Sync(ctx context.Context, p PendingCommit) SyncResult {
	res := SyncResult{ID: p.ID, Sequence: p.Sequence, ProjectID: p.ProjectID}
	if !p.NeedsSync() && !p.refetch {
		return res
	}

	switch {
	case p.Commit.TaskMoved != nil:
		move := p.Commit.TaskMoved
		res.Requests++
		if _, err := c.remote.CommitTaskMove(ctx, move.TaskID, move.ToColumnID); err != nil {
			res.CommitErr = fmt.Errorf("move task %q to column %q: %w", move.TaskID, move.ToColumnID, err)
		}
	case len(p.Commit.Reordered) > 0:
		res.Requests += len(p.Commit.Reordered)
		workers := pool.New().WithMaxGoroutines(maxReorderRequests).WithErrors().WithContext(ctx)
		for _, event := range p.Commit.Reordered {
			workers.Go(func(ctx context.Context) error {
				if _, err := c.remote.CommitColumnReorder(ctx, p.ProjectID, event.ColumnID, event.Order); err != nil {
					return fmt.Errorf("reorder column %q to %d: %w", event.ColumnID, event.Order, err)
				}
				return nil
			})
		}
		res.CommitErr = workers.Wait()
	}

	res.Requests++
	data, err := c.remote.FetchBoard(ctx, p.ProjectID)
	if err != nil {
		res.FetchErr = fmt.Errorf("refetch board %q: %w", p.ProjectID, err)
		return res
	}
	res.Data = data
	return res
}

// Reconcile applies an authoritative refetch over the optimistic board.
// Results older than the newest issued commit are dropped so a slow response
// cannot overwrite newer optimistic state. The returned error carries commit
// and fetch failures for display.
func (c *Controller) Reconcile(res SyncResult) error {
	failure := errors.Join(res.CommitErr, res.FetchErr)
	if res.CommitErr != nil {
		c.logger.Warn("board commit failed", "id", res.ID, "seq", res.Sequence, "err", res.CommitErr)
	}
	if res.ProjectID != c.projectID {
		return failure
	}
	if res.Sequence < c.issued || res.Sequence < c.applied {
		c.logger.Debug("ignoring stale board snapshot", "seq", res.Sequence, "latest", c.issued)
		return failure
	}
	if res.FetchErr != nil {
		return failure
	}
	if err := c.apply(c.projectID, res.Data); err != nil {
		return errors.Join(failure, err)
	}
	c.applied = res.Sequence
	return failure
}

// apply swaps in an authoritative snapshot. An active drag is cancelled when
// its subject vanished.
func (c *Controller) apply(projectID string, data BoardData) error {
	next, err := board.New(data.Columns, data.Tasks)
	if err != nil {
		return fmt.Errorf("apply board %q: %w", projectID, err)
	}
	c.projectID = projectID
	c.project = data
	c.board = next
	c.loaded = true
	if c.session.State() == board.Dragging {
		subject := c.session.Subject()
		_, _, hasTask := next.Locate(subject.ID)
		if (subject.Kind == board.SubjectTask && !hasTask) || (subject.Kind == board.SubjectColumn && !next.HasColumn(subject.ID)) {
			c.session.Cancel()
		}
	}
	return nil
}
