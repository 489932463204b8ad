package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/hylla/qboard/internal/board"
	"github.com/hylla/qboard/internal/domain"
)

type fakeRemote struct {
	mu       sync.Mutex
	data     BoardData
	moves    []string
	reorders map[string]int
	fetches  int
	moveErr  error
	fetchErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		data: BoardData{
			Project: domain.Project{ID: "p1", Name: "Roadmap"},
			Columns: []domain.Column{
				{ID: "todo", ProjectID: "p1", Name: "To Do", Order: 0},
				{ID: "doing", ProjectID: "p1", Name: "In Progress", Order: 1},
				{ID: "done", ProjectID: "p1", Name: "Done", Order: 2},
			},
			Tasks: []domain.Task{
				{ID: "t1", ProjectID: "p1", ColumnID: "todo", Position: 0, Title: "one"},
				{ID: "t2", ProjectID: "p1", ColumnID: "todo", Position: 1, Title: "two"},
				{ID: "t3", ProjectID: "p1", ColumnID: "done", Position: 0, Title: "three"},
			},
		},
		reorders: map[string]int{},
	}
}

func (f *fakeRemote) FetchBoard(_ context.Context, projectID string) (BoardData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return BoardData{}, f.fetchErr
	}
	if projectID != f.data.Project.ID {
		return BoardData{}, ErrNotFound
	}
	return BoardData{
		Project: f.data.Project,
		Columns: slices.Clone(f.data.Columns),
		Tasks:   slices.Clone(f.data.Tasks),
	}, nil
}

func (f *fakeRemote) CommitTaskMove(_ context.Context, taskID, columnID string) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, taskID+"->"+columnID)
	if f.moveErr != nil {
		return domain.Task{}, f.moveErr
	}
	for idx := range f.data.Tasks {
		if f.data.Tasks[idx].ID == taskID {
			f.data.Tasks[idx].ColumnID = columnID
			f.data.Tasks[idx].Position = 100
			return f.data.Tasks[idx], nil
		}
	}
	return domain.Task{}, ErrNotFound
}

func (f *fakeRemote) CommitColumnReorder(_ context.Context, _ string, columnID string, order int) (domain.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reorders[columnID] = order
	for idx := range f.data.Columns {
		if f.data.Columns[idx].ID == columnID {
			f.data.Columns[idx].Order = order
			return f.data.Columns[idx], nil
		}
	}
	return domain.Column{}, ErrNotFound
}

func loadedController(t *testing.T, remote *fakeRemote, opts ControllerOptions) *Controller {
	t.Helper()
	c := NewController(remote, opts)
	if err := c.Load(context.Background(), "p1"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func columnTaskIDs(b board.Board, columnID string) []string {
	var out []string
	for _, task := range b.TasksInColumn(columnID) {
		out = append(out, task.ID)
	}
	return out
}

func TestControllerCrossColumnDropSyncsAndReconciles(t *testing.T) {
	remote := newFakeRemote()
	var moved []MutationEvent
	c := loadedController(t, remote, ControllerOptions{Listeners: Listeners{
		OnTaskMoved: func(e MutationEvent) { moved = append(moved, e) },
	}})

	if err := c.StartTaskDrag("t1"); err != nil {
		t.Fatalf("StartTaskDrag() error = %v", err)
	}
	pending, err := c.Drop(board.Target{ColumnID: "done"})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !pending.NeedsSync() || pending.Sequence != 1 || pending.ID == "" {
		t.Fatalf("unexpected pending commit %+v", pending)
	}
	if got := columnTaskIDs(c.Board(), "done"); !slices.Equal(got, []string{"t3", "t1"}) {
		t.Fatalf("optimistic done = %v", got)
	}
	if len(moved) != 1 || moved[0].TaskMoved.TaskID != "t1" || moved[0].Sequence != 1 {
		t.Fatalf("listener events = %+v", moved)
	}
	if c.Session().Active() {
		t.Fatal("expected session idle after drop")
	}

	res := c.Sync(context.Background(), pending)
	if res.Requests != 2 || !slices.Equal(remote.moves, []string{"t1->done"}) {
		t.Fatalf("requests = %d moves = %v", res.Requests, remote.moves)
	}
	if err := c.Reconcile(res); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := columnTaskIDs(c.Board(), "done"); !slices.Equal(got, []string{"t3", "t1"}) {
		t.Fatalf("reconciled done = %v", got)
	}
}

func TestControllerSameColumnReorderStaysLocal(t *testing.T) {
	remote := newFakeRemote()
	c := loadedController(t, remote, ControllerOptions{})
	pending, err := c.MoveTask("t2", board.Target{ColumnID: "todo", ReferenceID: "t1", Position: board.Before})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if pending.NeedsSync() {
		t.Fatal("same-column reorder must not sync")
	}
	res := c.Sync(context.Background(), pending)
	if res.Requests != 0 || remote.fetches != 1 {
		t.Fatalf("requests = %d fetches = %d", res.Requests, remote.fetches)
	}
	if got := columnTaskIDs(c.Board(), "todo"); !slices.Equal(got, []string{"t2", "t1"}) {
		t.Fatalf("todo = %v", got)
	}
}

func TestControllerNoopDropIssuesNothing(t *testing.T) {
	remote := newFakeRemote()
	var events int
	c := loadedController(t, remote, ControllerOptions{Listeners: Listeners{
		OnTaskMoved:       func(MutationEvent) { events++ },
		OnColumnReordered: func(MutationEvent) { events++ },
	}})
	before := c.Board()
	pending, err := c.MoveTask("t1", board.Target{ColumnID: "todo", ReferenceID: "t2", Position: board.Before})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if pending.NeedsSync() || events != 0 {
		t.Fatalf("noop emitted events=%d needsSync=%t", events, pending.NeedsSync())
	}
	if !c.Board().Equal(before) || c.Session().Active() {
		t.Fatal("expected unchanged board and idle session")
	}
}

func TestControllerCommitFailureRevertsViaRefetch(t *testing.T) {
	remote := newFakeRemote()
	remote.moveErr = ErrConflict
	c := loadedController(t, remote, ControllerOptions{})
	pending, err := c.MoveTask("t1", board.Target{ColumnID: "doing"})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	if got := columnTaskIDs(c.Board(), "doing"); !slices.Equal(got, []string{"t1"}) {
		t.Fatalf("optimistic doing = %v", got)
	}
	res := c.Sync(context.Background(), pending)
	if !errors.Is(res.CommitErr, ErrConflict) || res.FetchErr != nil {
		t.Fatalf("commitErr = %v fetchErr = %v", res.CommitErr, res.FetchErr)
	}
	err = c.Reconcile(res)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Reconcile() error = %v, want conflict", err)
	}
	if got := columnTaskIDs(c.Board(), "doing"); len(got) != 0 {
		t.Fatalf("expected revert, doing = %v", got)
	}
	if got := columnTaskIDs(c.Board(), "todo"); !slices.Equal(got, []string{"t1", "t2"}) {
		t.Fatalf("todo = %v", got)
	}
}

func TestControllerIgnoresStaleRefetch(t *testing.T) {
	remote := newFakeRemote()
	c := loadedController(t, remote, ControllerOptions{})
	first, err := c.MoveTask("t1", board.Target{ColumnID: "doing"})
	if err != nil {
		t.Fatalf("MoveTask(first) error = %v", err)
	}
	staleRes := c.Sync(context.Background(), first)

	second, err := c.MoveTask("t2", board.Target{ColumnID: "done"})
	if err != nil {
		t.Fatalf("MoveTask(second) error = %v", err)
	}
	if second.Sequence <= first.Sequence {
		t.Fatalf("sequence did not increase: %d then %d", first.Sequence, second.Sequence)
	}
	if err := c.Reconcile(staleRes); err != nil {
		t.Fatalf("Reconcile(stale) error = %v", err)
	}
	if got := columnTaskIDs(c.Board(), "done"); !slices.Equal(got, []string{"t3", "t2"}) {
		t.Fatalf("stale refetch overwrote newer optimistic state: done = %v", got)
	}

	if err := c.Reconcile(c.Sync(context.Background(), second)); err != nil {
		t.Fatalf("Reconcile(latest) error = %v", err)
	}
	if got := columnTaskIDs(c.Board(), "doing"); !slices.Equal(got, []string{"t1"}) {
		t.Fatalf("doing = %v", got)
	}
}

func TestControllerColumnReorderFansOut(t *testing.T) {
	remote := newFakeRemote()
	var events []MutationEvent
	c := loadedController(t, remote, ControllerOptions{Listeners: Listeners{
		OnColumnReordered: func(e MutationEvent) { events = append(events, e) },
	}})
	pending, err := c.MoveColumn("done", board.Target{ReferenceID: "todo", Position: board.Before})
	if err != nil {
		t.Fatalf("MoveColumn() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event per drop, got %d", len(events))
	}
	dragged := events[0].ColumnReordered
	if dragged == nil || dragged.ColumnID != "done" || dragged.Order != 0 || dragged.PreviousOrder != 2 {
		t.Fatalf("dragged column event = %+v", dragged)
	}
	var changed []string
	for _, change := range events[0].Changes {
		changed = append(changed, change.ColumnID)
	}
	if !slices.Equal(changed, []string{"done", "todo", "doing"}) {
		t.Fatalf("changed columns = %v", changed)
	}
	res := c.Sync(context.Background(), pending)
	if res.CommitErr != nil || res.Requests != 4 {
		t.Fatalf("requests = %d err = %v", res.Requests, res.CommitErr)
	}
	if remote.reorders["done"] != 0 || remote.reorders["todo"] != 1 || remote.reorders["doing"] != 2 {
		t.Fatalf("reorders = %v", remote.reorders)
	}
	if err := c.Reconcile(res); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := c.Board().ColumnIDs(); !slices.Equal(got, []string{"done", "todo", "doing"}) {
		t.Fatalf("columns = %v", got)
	}
}

func TestControllerFetchFailureKeepsOptimisticBoard(t *testing.T) {
	remote := newFakeRemote()
	c := loadedController(t, remote, ControllerOptions{})
	pending, _ := c.MoveTask("t1", board.Target{ColumnID: "doing"})
	remote.fetchErr = errors.New("offline")
	err := c.Reconcile(c.Sync(context.Background(), pending))
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if got := columnTaskIDs(c.Board(), "doing"); !slices.Equal(got, []string{"t1"}) {
		t.Fatalf("doing = %v", got)
	}
}

func TestControllerRequiresLoadedBoard(t *testing.T) {
	c := NewController(newFakeRemote(), ControllerOptions{})
	if err := c.StartTaskDrag("t1"); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	if err := c.Load(context.Background(), " "); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	if err := c.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestControllerReloadAndPrioritySort(t *testing.T) {
	remote := newFakeRemote()
	c := loadedController(t, remote, ControllerOptions{PrioritySort: true})
	if !c.PrioritySort() {
		t.Fatal("expected priority sort enabled")
	}
	c.SetPrioritySort(false)
	if c.PrioritySort() {
		t.Fatal("expected priority sort disabled")
	}
	remote.data.Tasks = append(remote.data.Tasks, domain.Task{ID: "t4", ProjectID: "p1", ColumnID: "doing", Title: "four"})
	res := c.Sync(context.Background(), c.Reload())
	if res.Requests != 1 {
		t.Fatalf("reload requests = %d", res.Requests)
	}
	if err := c.Reconcile(res); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if _, ok := c.Board().Task("t4"); !ok {
		t.Fatal("expected reload to pick up new task")
	}
}

func TestControllerFetchAndAdoptSupersedeInFlightCommits(t *testing.T) {
	remote := newFakeRemote()
	c := loadedController(t, remote, ControllerOptions{})
	pending, err := c.MoveTask("t1", board.Target{ColumnID: "done"})
	if err != nil {
		t.Fatalf("MoveTask() error = %v", err)
	}
	res := c.Sync(context.Background(), pending)

	data, err := c.Fetch(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	remote.data.Tasks = append(remote.data.Tasks, domain.Task{ID: "t9", ProjectID: "p1", ColumnID: "todo", Title: "late"})
	if err := c.Adopt("p1", data); err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	if _, ok := c.Board().Task("t9"); ok {
		t.Fatal("adopted board should not include tasks created after the fetch")
	}
	if err := c.Reconcile(res); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := columnTaskIDs(c.Board(), "done"); !slices.Equal(got, []string{"t3", "t1"}) {
		t.Fatalf("done column = %v", got)
	}
	if _, err := c.Fetch(context.Background(), ""); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}
