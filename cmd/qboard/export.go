package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/board"
	"gopkg.in/yaml.v3"
)

// exportFormat names a supported export encoding.
type exportFormat string

// formatJSON and formatYAML enumerate export encodings.
const (
	formatJSON exportFormat = "json"
	formatYAML exportFormat = "yaml"
)

// errUnsupportedFormat reports an unknown export format.
var errUnsupportedFormat = errors.New("unsupported export format")

// boardExport is the export document: one project with ordered columns and tasks.
type boardExport struct {
	ExportedAt time.Time      `json:"exportedAt" yaml:"exported_at"`
	Project    exportProject  `json:"project" yaml:"project"`
	Columns    []exportColumn `json:"columns" yaml:"columns"`
}

type exportProject struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type exportColumn struct {
	ID    string       `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Color string       `json:"color" yaml:"color"`
	Order int          `json:"order" yaml:"order"`
	Tasks []exportTask `json:"tasks" yaml:"tasks"`
}

type exportTask struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Position    int    `json:"position" yaml:"position"`
	Priority    string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty" yaml:"assignee_id,omitempty"`
	CommitHash  string `json:"commitHash,omitempty" yaml:"commit_hash,omitempty"`
	LinesOfCode int    `json:"linesOfCode,omitempty" yaml:"lines_of_code,omitempty"`
}

// newBoardExport orders a fetched board the way the board view shows it.
func newBoardExport(data app.BoardData, now time.Time) (boardExport, error) {
	b, err := board.New(data.Columns, data.Tasks)
	if err != nil {
		return boardExport{}, fmt.Errorf("build board %q: %w", data.Project.ID, err)
	}
	doc := boardExport{
		ExportedAt: now,
		Project: exportProject{
			ID:          data.Project.ID,
			Name:        data.Project.Name,
			Description: data.Project.Description,
		},
		Columns: make([]exportColumn, 0, len(data.Columns)),
	}
	for _, column := range b.ColumnsOrdered() {
		tasks := b.TasksInColumn(column.ID)
		out := exportColumn{
			ID:    column.ID,
			Name:  column.Name,
			Color: string(column.Color),
			Order: column.Order,
			Tasks: make([]exportTask, 0, len(tasks)),
		}
		for _, task := range tasks {
			out.Tasks = append(out.Tasks, exportTask{
				ID:          task.ID,
				Title:       task.Title,
				Position:    task.Position,
				Priority:    string(task.Priority),
				Description: task.Description,
				AssigneeID:  task.AssigneeID,
				CommitHash:  task.CommitHash,
				LinesOfCode: task.LinesOfCode,
			})
		}
		doc.Columns = append(doc.Columns, out)
	}
	return doc, nil
}

// parseExportFormat validates the --format flag.
func parseExportFormat(raw string) (exportFormat, error) {
	switch exportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q (want json or yaml)", errUnsupportedFormat, raw)
	}
}

// encodeExport encodes doc in format with a trailing newline.
func encodeExport(doc boardExport, format exportFormat) ([]byte, error) {
	switch format {
	case formatYAML:
		encoded, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode board yaml: %w", err)
		}
		return encoded, nil
	default:
		encoded, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode board json: %w", err)
		}
		return append(encoded, '\n'), nil
	}
}

// exportFilePath names a dated export file inside dir.
func exportFilePath(dir, projectID string, format exportFormat, now time.Time) string {
	name := fmt.Sprintf("%s-%s.%s", sanitizeLogFileStem(projectID), now.Format("20060102-150405"), format)
	return filepath.Join(dir, name)
}

// writeExport writes encoded to stdout for "-" or an empty path, else to outPath.
func writeExport(outPath string, encoded []byte, stdout io.Writer) error {
	if outPath == "" || outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write export to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}
