package board

// TaskMoved records a task landing in a column at a final index.
type TaskMoved struct {
	TaskID       string
	FromColumnID string
	ToColumnID   string
	FromIndex    int
	ToIndex      int
}

// CrossColumn reports whether the task changed columns.
func (e TaskMoved) CrossColumn() bool {
	return e.FromColumnID != e.ToColumnID
}

// ColumnReordered records a column order change against the server-confirmed value.
// PreviousOrder is -1 when the server never reported one.
type ColumnReordered struct {
	ColumnID      string
	Order         int
	PreviousOrder int
}
