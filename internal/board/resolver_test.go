package board

import (
	"errors"
	"slices"
	"testing"

	"github.com/hylla/qboard/internal/domain"
)

func TestPositionFromPointer(t *testing.T) {
	cases := []struct {
		name string
		y    int
		box  Rect
		want Position
	}{
		{name: "two rows top", y: 10, box: Rect{Top: 10, Height: 2}, want: Before},
		{name: "two rows bottom", y: 11, box: Rect{Top: 10, Height: 2}, want: After},
		{name: "three rows middle", y: 11, box: Rect{Top: 10, Height: 3}, want: Before},
		{name: "three rows last", y: 12, box: Rect{Top: 10, Height: 3}, want: After},
		{name: "single row", y: 4, box: Rect{Top: 4, Height: 1}, want: Before},
		{name: "pixel top half", y: 119, box: Rect{Top: 100, Height: 40}, want: Before},
		{name: "pixel bottom half", y: 120, box: Rect{Top: 100, Height: 40}, want: After},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PositionFromPointer(tc.y, tc.box); got != tc.want {
				t.Fatalf("PositionFromPointer(%d, %+v) = %s, want %s", tc.y, tc.box, got, tc.want)
			}
		})
	}
}

func TestResolveTaskCrossColumnEmptySpace(t *testing.T) {
	b := mustBoard(t,
		[]domain.Column{col("todo", 0), col("done", 1)},
		[]domain.Task{task("t1", "todo", 0, ""), task("t2", "todo", 1, ""), task("t3", "done", 0, "")},
	)
	commit, err := Resolver{}.ResolveTask(b, "t1", Target{ColumnID: "done"})
	if err != nil {
		t.Fatalf("ResolveTask() error = %v", err)
	}
	if commit.NoOp {
		t.Fatal("expected a real move")
	}
	if got := taskIDs(commit.Board.TasksInColumn("todo")); !slices.Equal(got, []string{"t2"}) {
		t.Fatalf("todo = %v", got)
	}
	if got := taskIDs(commit.Board.TasksInColumn("done")); !slices.Equal(got, []string{"t3", "t1"}) {
		t.Fatalf("done = %v", got)
	}
	want := TaskMoved{TaskID: "t1", FromColumnID: "todo", ToColumnID: "done", FromIndex: 0, ToIndex: 1}
	if commit.TaskMoved == nil || *commit.TaskMoved != want {
		t.Fatalf("TaskMoved = %+v, want %+v", commit.TaskMoved, want)
	}
	if !commit.TaskMoved.CrossColumn() {
		t.Fatal("expected cross-column move")
	}
}

func TestResolveTaskWithinColumnTopHalf(t *testing.T) {
	b := mustBoard(t,
		[]domain.Column{col("todo", 0)},
		[]domain.Task{task("a", "todo", 0, ""), task("b", "todo", 1, ""), task("c", "todo", 2, "")},
	)
	pos := PositionFromPointer(20, Rect{Top: 20, Height: 2})
	commit, err := Resolver{}.ResolveTask(b, "c", Target{ColumnID: "todo", ReferenceID: "a", Position: pos})
	if err != nil {
		t.Fatalf("ResolveTask() error = %v", err)
	}
	if got := taskIDs(commit.Board.TasksInColumn("todo")); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Fatalf("todo = %v, want [c a b]", got)
	}
	if commit.TaskMoved == nil || commit.TaskMoved.CrossColumn() {
		t.Fatalf("expected same-column TaskMoved, got %+v", commit.TaskMoved)
	}
	assertDense(t, commit.Board)
}

func TestResolveTaskSamePositionIsNoop(t *testing.T) {
	b := mustBoard(t,
		[]domain.Column{col("todo", 0), col("done", 1)},
		[]domain.Task{task("a", "todo", 0, ""), task("b", "todo", 1, ""), task("c", "todo", 2, "")},
	)
	cases := []Target{
		{ColumnID: "todo", ReferenceID: "a", Position: After},
		{ColumnID: "todo", ReferenceID: "c", Position: Before},
		{ColumnID: "todo", ReferenceID: "b", Position: Before},
		{ColumnID: "todo", ReferenceID: "b", Position: After},
	}
	for _, target := range cases {
		commit, err := Resolver{}.ResolveTask(b, "b", target)
		if err != nil {
			t.Fatalf("ResolveTask(%+v) error = %v", target, err)
		}
		if !commit.NoOp {
			t.Fatalf("ResolveTask(%+v) expected no-op", target)
		}
		if commit.TaskMoved != nil {
			t.Fatalf("ResolveTask(%+v) emitted %+v", target, commit.TaskMoved)
		}
		if !commit.Board.Equal(b) {
			t.Fatalf("ResolveTask(%+v) changed the board", target)
		}
	}

	last, err := Resolver{}.ResolveTask(b, "c", Target{ColumnID: "todo"})
	if err != nil {
		t.Fatalf("ResolveTask(append last) error = %v", err)
	}
	if !last.NoOp {
		t.Fatal("expected appending the last task to its own column to be a no-op")
	}
}

func TestResolveTaskPrioritySortDestinationOnly(t *testing.T) {
	b := mustBoard(t,
		[]domain.Column{col("src", 0), col("dst", 1)},
		[]domain.Task{
			task("x", "src", 0, domain.PriorityLow),
			task("y", "src", 1, domain.PriorityHigh),
			task("d", "src", 2, domain.PriorityHigh),
			task("a", "dst", 0, domain.PriorityHigh),
			task("b", "dst", 1, domain.PriorityMedium),
			task("c", "dst", 2, domain.PriorityHigh),
		},
	)
	commit, err := Resolver{PrioritySort: true}.ResolveTask(b, "d", Target{ColumnID: "dst"})
	if err != nil {
		t.Fatalf("ResolveTask() error = %v", err)
	}
	if got := taskIDs(commit.Board.TasksInColumn("dst")); !slices.Equal(got, []string{"a", "c", "d", "b"}) {
		t.Fatalf("dst = %v, want [a c d b]", got)
	}
	if got := taskIDs(commit.Board.TasksInColumn("src")); !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("src = %v, want [x y] untouched", got)
	}
	if commit.TaskMoved.ToIndex != 2 {
		t.Fatalf("ToIndex = %d, want 2", commit.TaskMoved.ToIndex)
	}
	assertDense(t, commit.Board)
}

func TestResolveTaskStaleReferenceAppends(t *testing.T) {
	b := mustBoard(t,
		[]domain.Column{col("todo", 0), col("done", 1)},
		[]domain.Task{task("t1", "todo", 0, ""), task("t2", "todo", 1, ""), task("t3", "done", 0, "")},
	)
	for _, reference := range []string{"ghost", "t2"} {
		commit, err := Resolver{}.ResolveTask(b, "t1", Target{ColumnID: "done", ReferenceID: reference, Position: Before})
		if err != nil {
			t.Fatalf("ResolveTask(ref=%s) error = %v", reference, err)
		}
		if !commit.StaleReference {
			t.Fatalf("ResolveTask(ref=%s) expected stale reference", reference)
		}
		if got := taskIDs(commit.Board.TasksInColumn("done")); !slices.Equal(got, []string{"t3", "t1"}) {
			t.Fatalf("ResolveTask(ref=%s) done = %v, want [t3 t1]", reference, got)
		}
	}
}

func TestResolveTaskUnknownColumn(t *testing.T) {
	b := mustBoard(t, []domain.Column{col("todo", 0)}, []domain.Task{task("t1", "todo", 0, "")})
	commit, err := Resolver{}.ResolveTask(b, "t1", Target{ColumnID: "archive"})
	if !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if !commit.Board.Equal(b) {
		t.Fatal("expected board unchanged on error")
	}
}

func TestResolveColumnReorder(t *testing.T) {
	b := mustBoard(t, []domain.Column{col("todo", 0), col("doing", 1), col("done", 2)}, nil)
	commit, err := Resolver{}.ResolveColumn(b, "done", Target{ReferenceID: "todo", Position: Before})
	if err != nil {
		t.Fatalf("ResolveColumn() error = %v", err)
	}
	if got := commit.Board.ColumnIDs(); !slices.Equal(got, []string{"done", "todo", "doing"}) {
		t.Fatalf("order = %v, want [done todo doing]", got)
	}
	assertDense(t, commit.Board)
	want := []ColumnReordered{
		{ColumnID: "done", Order: 0, PreviousOrder: 2},
		{ColumnID: "todo", Order: 1, PreviousOrder: 0},
		{ColumnID: "doing", Order: 2, PreviousOrder: 1},
	}
	if !slices.Equal(commit.Reordered, want) {
		t.Fatalf("Reordered = %+v, want %+v", commit.Reordered, want)
	}
}

func TestResolveColumnEmitsOnlyChangedColumns(t *testing.T) {
	b := mustBoard(t, []domain.Column{col("a", 0), col("b", 1), col("c", 2), col("d", 3)}, nil)
	commit, err := Resolver{}.ResolveColumn(b, "d", Target{ReferenceID: "c", Position: Before})
	if err != nil {
		t.Fatalf("ResolveColumn() error = %v", err)
	}
	want := []ColumnReordered{
		{ColumnID: "d", Order: 2, PreviousOrder: 3},
		{ColumnID: "c", Order: 3, PreviousOrder: 2},
	}
	if !slices.Equal(commit.Reordered, want) {
		t.Fatalf("Reordered = %+v, want %+v", commit.Reordered, want)
	}
}

func TestResolveColumnComparesAgainstServerOrders(t *testing.T) {
	b := mustBoard(t, []domain.Column{col("a", 10), col("b", 20), col("c", 30), col("d", 40)}, nil)
	commit, err := Resolver{}.ResolveColumn(b, "d", Target{ReferenceID: "b", Position: Before})
	if err != nil {
		t.Fatalf("ResolveColumn() error = %v", err)
	}
	if got := commit.Board.ColumnIDs(); !slices.Equal(got, []string{"a", "d", "b", "c"}) {
		t.Fatalf("order = %v", got)
	}
	if len(commit.Reordered) != 4 {
		t.Fatalf("expected every column to need an update against sparse server orders, got %+v", commit.Reordered)
	}
}

func TestResolveColumnNoopAndAppend(t *testing.T) {
	b := mustBoard(t, []domain.Column{col("todo", 0), col("doing", 1), col("done", 2)}, nil)
	noop, err := Resolver{}.ResolveColumn(b, "doing", Target{ReferenceID: "todo", Position: After})
	if err != nil {
		t.Fatalf("ResolveColumn(noop) error = %v", err)
	}
	if !noop.NoOp || len(noop.Reordered) != 0 {
		t.Fatalf("expected no-op, got %+v", noop.Reordered)
	}
	appended, err := Resolver{}.ResolveColumn(b, "todo", Target{})
	if err != nil {
		t.Fatalf("ResolveColumn(append) error = %v", err)
	}
	if got := appended.Board.ColumnIDs(); !slices.Equal(got, []string{"doing", "done", "todo"}) {
		t.Fatalf("append order = %v", got)
	}
	if _, err := (Resolver{}).ResolveColumn(b, "todo", Target{ReferenceID: "ghost"}); !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}
