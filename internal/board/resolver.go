package board

import (
	"fmt"
	"slices"

	"github.com/hylla/qboard/internal/domain"
)

// Position places a dropped item relative to the item under the pointer.
type Position int

// Before and After enumerate drop positions.
const (
	Before Position = iota
	After
)

// String returns the position label.
func (p Position) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// Rect is the vertical extent of a rendered item, in the shell's units.
type Rect struct {
	Top    int
	Height int
}

// Contains reports whether y falls inside the rect.
func (r Rect) Contains(y int) bool {
	return y >= r.Top && y < r.Top+r.Height
}

// PositionFromPointer maps a pointer inside a box to Before for the top half and After for the bottom half.
func PositionFromPointer(pointerY int, box Rect) Position {
	if 2*(pointerY-box.Top) < box.Height {
		return Before
	}
	return After
}

// Target describes what the pointer is over during a drag.
//
// Task drags set ColumnID to the column under the pointer and ReferenceID to
// the task row under it, or leave ReferenceID empty over empty column space.
// Column drags set ReferenceID to the column under the pointer.
// The zero Target means the pointer is outside every drop target.
type Target struct {
	ColumnID    string
	ReferenceID string
	Position    Position
}

// IsZero reports whether the target is outside every drop target.
func (t Target) IsZero() bool {
	return t.ColumnID == "" && t.ReferenceID == ""
}

// Commit is the resolved outcome of a drop.
type Commit struct {
	Subject        Subject
	Before         Board
	Board          Board
	NoOp           bool
	Cancelled      bool
	StaleReference bool
	TaskMoved      *TaskMoved
	Reordered      []ColumnReordered
}

// Resolver turns a drop target into a new board.
type Resolver struct {
	// PrioritySort stable-sorts the destination column by priority after a task drop.
	PrioritySort bool
}

// Resolve dispatches on the subject kind.
func (r Resolver) Resolve(b Board, subject Subject, target Target) (Commit, error) {
	switch subject.Kind {
	case SubjectTask:
		return r.ResolveTask(b, subject.ID, target)
	case SubjectColumn:
		return r.ResolveColumn(b, subject.ID, target)
	default:
		return Commit{Subject: subject, Before: b, Board: b}, fmt.Errorf("resolve drop: unsupported subject kind %d", subject.Kind)
	}
}

// ResolveTask computes the board after dropping a task on target.
func (r Resolver) ResolveTask(b Board, taskID string, target Target) (Commit, error) {
	commit := Commit{
		Subject: Subject{Kind: SubjectTask, ID: taskID},
		Before:  b,
		Board:   b,
	}
	if !b.HasColumn(target.ColumnID) {
		return commit, fmt.Errorf("drop task %q on column %q: %w", taskID, target.ColumnID, domain.ErrUnknownColumn)
	}
	sourceColumnID, fromIndex, ok := b.Locate(taskID)
	if !ok {
		return commit, fmt.Errorf("drop task %q: %w", taskID, domain.ErrUnknownTask)
	}
	if target.ReferenceID == taskID {
		commit.NoOp = true
		return commit, nil
	}

	reference := target.ReferenceID
	if reference != "" {
		if columnID, _, found := b.Locate(reference); !found || columnID != target.ColumnID {
			commit.StaleReference = true
			reference = ""
		}
	}

	next, err := b.MoveTask(taskID, target.ColumnID, reference, target.Position)
	if err != nil {
		return commit, err
	}
	_, toIndex, _ := next.Locate(taskID)
	if sourceColumnID == target.ColumnID && toIndex == fromIndex {
		commit.NoOp = true
		return commit, nil
	}

	if r.PrioritySort {
		next = next.withColumnTasks(target.ColumnID, SortByPriority(next.tasks[target.ColumnID]))
		_, toIndex, _ = next.Locate(taskID)
	}
	if next.Equal(b) {
		commit.NoOp = true
		return commit, nil
	}

	commit.Board = next
	commit.TaskMoved = &TaskMoved{
		TaskID:       taskID,
		FromColumnID: sourceColumnID,
		ToColumnID:   target.ColumnID,
		FromIndex:    fromIndex,
		ToIndex:      toIndex,
	}
	return commit, nil
}

// ResolveColumn computes the board after dropping a column before or after the reference column.
// An empty reference appends the column at the end.
func (r Resolver) ResolveColumn(b Board, columnID string, target Target) (Commit, error) {
	commit := Commit{
		Subject: Subject{Kind: SubjectColumn, ID: columnID},
		Before:  b,
		Board:   b,
	}
	if !b.HasColumn(columnID) {
		return commit, fmt.Errorf("drop column %q: %w", columnID, domain.ErrUnknownColumn)
	}
	reference := target.ReferenceID
	if reference == columnID {
		commit.NoOp = true
		return commit, nil
	}
	if reference != "" && !b.HasColumn(reference) {
		return commit, fmt.Errorf("drop column %q next to %q: %w", columnID, reference, domain.ErrUnknownColumn)
	}

	current := b.ColumnIDs()
	ids := slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == columnID })
	at := len(ids)
	if reference != "" {
		at = slices.Index(ids, reference)
		if target.Position == After {
			at++
		}
	}
	ids = slices.Insert(ids, at, columnID)
	if slices.Equal(ids, current) {
		commit.NoOp = true
		return commit, nil
	}

	next, err := b.ReorderColumns(ids)
	if err != nil {
		return commit, err
	}
	commit.Board = next
	commit.Reordered = changedColumnOrders(b, next)
	return commit, nil
}

// changedColumnOrders lists columns whose new order differs from what the server last confirmed.
func changedColumnOrders(before, after Board) []ColumnReordered {
	out := []ColumnReordered{}
	for _, column := range after.columns {
		previous, ok := before.ConfirmedOrder(column.ID)
		if !ok {
			previous = -1
		}
		if ok && previous == column.Order {
			continue
		}
		out = append(out, ColumnReordered{
			ColumnID:      column.ID,
			Order:         column.Order,
			PreviousOrder: previous,
		})
	}
	return out
}
