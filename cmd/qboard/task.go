package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
	"github.com/spf13/cobra"
)

// taskTarget holds the backend selection flags shared by task subcommands.
type taskTarget struct {
	projectID string
	local     bool
}

// taskAddOptions holds task add flags.
type taskAddOptions struct {
	taskTarget
	columnID    string
	title       string
	description string
	priority    string
	assigneeID  string
	commitHash  string
	linesOfCode int
}

// taskEditOptions holds task edit flags. Unset flags leave fields unchanged.
type taskEditOptions struct {
	taskTarget
	taskID      string
	columnID    *string
	title       *string
	description *string
	priority    *string
	assigneeID  *string
	commitHash  *string
	linesOfCode *int
}

// taskRemoveOptions holds task rm flags.
type taskRemoveOptions struct {
	taskTarget
	taskID string
}

func bindTaskTargetFlags(cmd *cobra.Command, opts *taskTarget) {
	cmd.Flags().StringVar(&opts.projectID, "project", "", "project id (default: board.project_id, then the first project)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "use the local sqlite database instead of the remote API")
}

func taskCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, edit or delete tasks",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		taskAddCmd(root, stdout, stderr),
		taskEditCmd(root, stdout, stderr),
		taskRemoveCmd(root, stdout, stderr),
	)
	return cmd
}

func taskAddCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &taskAddOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task (default column: the first one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTaskAdd(cmd.Context(), root, *opts, stdout, stderr)
		},
	}
	bindTaskTargetFlags(cmd, &opts.taskTarget)
	cmd.Flags().StringVar(&opts.columnID, "column", "", "column id for the new task")
	cmd.Flags().StringVar(&opts.title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.description, "description", "", "task description")
	cmd.Flags().StringVar(&opts.priority, "priority", "", "priority (low|medium|high)")
	cmd.Flags().StringVar(&opts.assigneeID, "assignee", "", "assignee user id")
	cmd.Flags().StringVar(&opts.commitHash, "commit", "", "commit hash the task tracks")
	cmd.Flags().IntVar(&opts.linesOfCode, "loc", 0, "lines of code")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskEditCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		opts                                                         taskEditOptions
		columnID, title, description, priority, assignee, commitHash string
		linesOfCode                                                  int
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit task fields; only the given flags change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			setString := func(name, value string) *string {
				if !flags.Changed(name) {
					return nil
				}
				return &value
			}
			opts.columnID = setString("column", columnID)
			opts.title = setString("title", title)
			opts.description = setString("description", description)
			opts.priority = setString("priority", priority)
			opts.assigneeID = setString("assignee", assignee)
			opts.commitHash = setString("commit", commitHash)
			if flags.Changed("loc") {
				opts.linesOfCode = &linesOfCode
			}
			return runTaskEdit(cmd.Context(), root, opts, stdout, stderr)
		},
	}
	bindTaskTargetFlags(cmd, &opts.taskTarget)
	cmd.Flags().StringVar(&opts.taskID, "task", "", "task id to edit")
	cmd.Flags().StringVar(&columnID, "column", "", "move the task to the end of this column")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low|medium|high, empty clears)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id (empty clears)")
	cmd.Flags().StringVar(&commitHash, "commit", "", "commit hash the task tracks")
	cmd.Flags().IntVar(&linesOfCode, "loc", 0, "lines of code")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func taskRemoveCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &taskRemoveOptions{}
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTaskRemove(cmd.Context(), root, *opts, stdout, stderr)
		},
	}
	bindTaskTargetFlags(cmd, &opts.taskTarget)
	cmd.Flags().StringVar(&opts.taskID, "task", "", "task id to delete")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// runTaskAdd creates one task through the selected backend.
func runTaskAdd(ctx context.Context, root *rootOptions, opts taskAddOptions, stdout, stderr io.Writer) error {
	priority, err := domain.ParsePriority(opts.priority)
	if err != nil {
		return fmt.Errorf("--priority %q: %w: %w", opts.priority, app.ErrInvalidInput, err)
	}
	rt, err := root.setup("task add", stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	backend, release, err := rt.openBackend(ctx, opts.local)
	if err != nil {
		return err
	}
	defer release()
	projectID, err := rt.resolveProject(ctx, backend, opts.projectID, opts.local)
	if err != nil {
		return err
	}
	columns, err := backend.ListColumns(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list columns: %w", err)
	}
	column, err := pickColumn(columns, opts.columnID)
	if err != nil {
		return err
	}

	task, err := backend.CreateTask(ctx, app.CreateTaskInput{
		ProjectID:   projectID,
		ColumnID:    column.ID,
		Title:       opts.title,
		Description: opts.description,
		Priority:    priority,
		AssigneeID:  strings.TrimSpace(opts.assigneeID),
		CommitHash:  strings.TrimSpace(opts.commitHash),
		LinesOfCode: opts.linesOfCode,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "created %s in %s\n", task.ID, column.Name)
	rt.logger.Info("command flow complete", "command", "task add", "project", projectID, "task", task.ID, "column", column.ID)
	return nil
}

// runTaskEdit patches the given fields of one task.
func runTaskEdit(ctx context.Context, root *rootOptions, opts taskEditOptions, stdout, stderr io.Writer) error {
	in := app.UpdateTaskInput{
		ID:          strings.TrimSpace(opts.taskID),
		ColumnID:    opts.columnID,
		Title:       opts.title,
		Description: opts.description,
		AssigneeID:  opts.assigneeID,
		CommitHash:  opts.commitHash,
		LinesOfCode: opts.linesOfCode,
	}
	if opts.priority != nil {
		priority, err := domain.ParsePriority(*opts.priority)
		if err != nil {
			return fmt.Errorf("--priority %q: %w: %w", *opts.priority, app.ErrInvalidInput, err)
		}
		in.Priority = &priority
	}
	if in.ID == "" {
		return fmt.Errorf("--task is required: %w", app.ErrInvalidInput)
	}

	rt, err := root.setup("task edit", stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	backend, release, err := rt.openBackend(ctx, opts.local)
	if err != nil {
		return err
	}
	defer release()

	task, err := backend.UpdateTask(ctx, in)
	if err != nil {
		return fmt.Errorf("update task %q: %w", in.ID, err)
	}
	name := task.ColumnID
	if columns, err := backend.ListColumns(ctx, task.ProjectID); err == nil {
		if column, err := pickColumn(columns, task.ColumnID); err == nil {
			name = column.Name
		}
	}
	_, _ = fmt.Fprintf(stdout, "updated %s in %s\n", task.ID, name)
	rt.logger.Info("command flow complete", "command", "task edit", "project", task.ProjectID, "task", task.ID)
	return nil
}

// runTaskRemove deletes one task.
func runTaskRemove(ctx context.Context, root *rootOptions, opts taskRemoveOptions, stdout, stderr io.Writer) error {
	taskID := strings.TrimSpace(opts.taskID)
	if taskID == "" {
		return fmt.Errorf("--task is required: %w", app.ErrInvalidInput)
	}
	rt, err := root.setup("task rm", stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	backend, release, err := rt.openBackend(ctx, opts.local)
	if err != nil {
		return err
	}
	defer release()

	if err := backend.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task %q: %w", taskID, err)
	}
	_, _ = fmt.Fprintf(stdout, "deleted %s\n", taskID)
	rt.logger.Info("command flow complete", "command", "task rm", "task", taskID)
	return nil
}

// pickColumn returns the column with id, or the lowest-order column when id is empty.
func pickColumn(columns []domain.Column, id string) (domain.Column, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		if len(columns) == 0 {
			return domain.Column{}, fmt.Errorf("project has no columns: %w", domain.ErrUnknownColumn)
		}
		return slices.MinFunc(columns, func(a, b domain.Column) int { return cmp.Compare(a.Order, b.Order) }), nil
	}
	idx := slices.IndexFunc(columns, func(c domain.Column) bool { return c.ID == id })
	if idx < 0 {
		return domain.Column{}, fmt.Errorf("column %q: %w", id, domain.ErrUnknownColumn)
	}
	return columns[idx], nil
}
