// Package board holds the pure Kanban board model together with the drag
// session state machine and drop resolver that rearrange it.
package board

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/qboard/internal/domain"
)

// Board is an immutable snapshot of one project's columns and tasks.
// Every mutating operation returns a new Board and leaves the receiver intact.
type Board struct {
	columns   []domain.Column
	tasks     map[string][]domain.Task
	confirmed map[string]int
}

// New builds a board from server data.
// Columns are ordered by Order and tasks by Position, ties keeping input
// sequence, and both are renumbered densely from zero.
func New(columns []domain.Column, tasks []domain.Task) (Board, error) {
	cols := slices.Clone(columns)
	known := make(map[string]struct{}, len(cols))
	confirmed := make(map[string]int, len(cols))
	for idx, column := range cols {
		if strings.TrimSpace(column.ID) == "" {
			return Board{}, fmt.Errorf("%w: column %d has an empty id", domain.ErrInvalidModel, idx)
		}
		if _, dup := known[column.ID]; dup {
			return Board{}, fmt.Errorf("%w: duplicate column %q", domain.ErrInvalidModel, column.ID)
		}
		known[column.ID] = struct{}{}
		confirmed[column.ID] = column.Order
	}
	slices.SortStableFunc(cols, func(a, b domain.Column) int {
		return cmp.Compare(a.Order, b.Order)
	})
	for idx := range cols {
		cols[idx].Order = idx
	}

	grouped := make(map[string][]domain.Task, len(cols))
	seen := make(map[string]struct{}, len(tasks))
	for idx, task := range tasks {
		if strings.TrimSpace(task.ID) == "" {
			return Board{}, fmt.Errorf("%w: task %d has an empty id", domain.ErrInvalidModel, idx)
		}
		if _, dup := seen[task.ID]; dup {
			return Board{}, fmt.Errorf("%w: duplicate task %q", domain.ErrInvalidModel, task.ID)
		}
		if _, ok := known[task.ColumnID]; !ok {
			return Board{}, fmt.Errorf("%w: task %q references unknown column %q", domain.ErrInvalidModel, task.ID, task.ColumnID)
		}
		seen[task.ID] = struct{}{}
		grouped[task.ColumnID] = append(grouped[task.ColumnID], task)
	}
	for columnID, list := range grouped {
		slices.SortStableFunc(list, func(a, b domain.Task) int {
			return cmp.Compare(a.Position, b.Position)
		})
		grouped[columnID] = renumber(list)
	}

	return Board{columns: cols, tasks: grouped, confirmed: confirmed}, nil
}

// ReplaceAll discards the receiver and builds a board from authoritative data.
func (b Board) ReplaceAll(columns []domain.Column, tasks []domain.Task) (Board, error) {
	return New(columns, tasks)
}

// ColumnsOrdered returns columns sorted by ascending order.
func (b Board) ColumnsOrdered() []domain.Column {
	return slices.Clone(b.columns)
}

// ColumnIDs returns column ids in display order.
func (b Board) ColumnIDs() []string {
	out := make([]string, 0, len(b.columns))
	for _, column := range b.columns {
		out = append(out, column.ID)
	}
	return out
}

// TasksInColumn returns the column's tasks in display order, or nil when the column is unknown.
func (b Board) TasksInColumn(columnID string) []domain.Task {
	if !b.HasColumn(columnID) {
		return nil
	}
	return append([]domain.Task{}, b.tasks[columnID]...)
}

// Tasks returns every task, column by column.
func (b Board) Tasks() []domain.Task {
	out := make([]domain.Task, 0, b.Len())
	for _, column := range b.columns {
		out = append(out, b.tasks[column.ID]...)
	}
	return out
}

// Len returns the number of tasks on the board.
func (b Board) Len() int {
	total := 0
	for _, list := range b.tasks {
		total += len(list)
	}
	return total
}

// HasColumn reports whether the board contains the column.
func (b Board) HasColumn(columnID string) bool {
	_, ok := b.Column(columnID)
	return ok
}

// Column returns one column by id.
func (b Board) Column(columnID string) (domain.Column, bool) {
	for _, column := range b.columns {
		if column.ID == columnID {
			return column, true
		}
	}
	return domain.Column{}, false
}

// Task returns one task by id.
func (b Board) Task(taskID string) (domain.Task, bool) {
	columnID, idx, ok := b.Locate(taskID)
	if !ok {
		return domain.Task{}, false
	}
	return b.tasks[columnID][idx], true
}

// Locate returns the column and index holding the task.
func (b Board) Locate(taskID string) (string, int, bool) {
	if taskID == "" {
		return "", -1, false
	}
	for _, column := range b.columns {
		for idx, task := range b.tasks[column.ID] {
			if task.ID == taskID {
				return column.ID, idx, true
			}
		}
	}
	return "", -1, false
}

// ConfirmedOrder returns the order value the server last reported for a column.
func (b Board) ConfirmedOrder(columnID string) (int, bool) {
	order, ok := b.confirmed[columnID]
	return order, ok
}

// MoveTask places a task into the target column before or after the reference task.
// An empty reference, or one that is not in the target column, appends.
// Moving a task relative to itself returns the receiver unchanged.
func (b Board) MoveTask(taskID, targetColumnID, referenceTaskID string, pos Position) (Board, error) {
	if !b.HasColumn(targetColumnID) {
		return b, fmt.Errorf("move task %q to %q: %w", taskID, targetColumnID, domain.ErrUnknownColumn)
	}
	sourceColumnID, idx, ok := b.Locate(taskID)
	if !ok {
		return b, fmt.Errorf("move task %q: %w", taskID, domain.ErrUnknownTask)
	}
	if referenceTaskID == taskID {
		return b, nil
	}

	task := b.tasks[sourceColumnID][idx]
	source := slices.Delete(slices.Clone(b.tasks[sourceColumnID]), idx, idx+1)
	target := source
	if sourceColumnID != targetColumnID {
		target = slices.Clone(b.tasks[targetColumnID])
	}

	at := len(target)
	if referenceTaskID != "" {
		if ref := indexOfTask(target, referenceTaskID); ref >= 0 {
			at = ref
			if pos == After {
				at++
			}
		}
	}
	task.ColumnID = targetColumnID
	target = slices.Insert(target, at, task)

	out := b.clone()
	if sourceColumnID != targetColumnID {
		out.tasks[sourceColumnID] = renumber(source)
	}
	out.tasks[targetColumnID] = renumber(target)
	return out, nil
}

// ReorderColumns applies a complete column order and renumbers orders densely.
func (b Board) ReorderColumns(orderedIDs []string) (Board, error) {
	if len(orderedIDs) != len(b.columns) {
		return b, fmt.Errorf("reorder %d columns on a board of %d: %w", len(orderedIDs), len(b.columns), domain.ErrColumnSetMismatch)
	}
	byID := make(map[string]domain.Column, len(b.columns))
	for _, column := range b.columns {
		byID[column.ID] = column
	}
	cols := make([]domain.Column, 0, len(orderedIDs))
	for idx, id := range orderedIDs {
		column, ok := byID[id]
		if !ok {
			return b, fmt.Errorf("reorder column %q: %w", id, domain.ErrColumnSetMismatch)
		}
		delete(byID, id)
		column.Order = idx
		cols = append(cols, column)
	}

	out := b.clone()
	out.columns = cols
	return out, nil
}

// Equal reports whether two boards hold the same columns and tasks in the same order.
func (b Board) Equal(other Board) bool {
	if !slices.Equal(b.columns, other.columns) {
		return false
	}
	for _, column := range b.columns {
		if !slices.Equal(b.tasks[column.ID], other.tasks[column.ID]) {
			return false
		}
	}
	return true
}

// withColumnTasks returns a board whose column holds exactly the given tasks.
func (b Board) withColumnTasks(columnID string, tasks []domain.Task) Board {
	out := b.clone()
	out.tasks[columnID] = renumber(slices.Clone(tasks))
	return out
}

// clone copies the lookup maps; task slices are shared until replaced.
func (b Board) clone() Board {
	tasks := make(map[string][]domain.Task, len(b.tasks))
	for columnID, list := range b.tasks {
		tasks[columnID] = list
	}
	return Board{columns: b.columns, tasks: tasks, confirmed: b.confirmed}
}

// renumber assigns dense positions in slice order.
func renumber(tasks []domain.Task) []domain.Task {
	for idx := range tasks {
		tasks[idx].Position = idx
	}
	return tasks
}

// indexOfTask returns the slice index of a task id, or -1.
func indexOfTask(tasks []domain.Task, taskID string) int {
	return slices.IndexFunc(tasks, func(task domain.Task) bool {
		return task.ID == taskID
	})
}
