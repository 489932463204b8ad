// Package mcpapi exposes board reads and drag-equivalent moves as MCP tools
// over a stateless streamable-HTTP transport.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/qboard/internal/adapters/wire"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/board"
	"github.com/hylla/qboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// boardColumn is one column of a get_board result with its ordered tasks.
type boardColumn struct {
	wire.Column
	Tasks []wire.Task `json:"tasks"`
}

// boardResult is the get_board and move tool payload.
type boardResult struct {
	Project  wire.Project  `json:"project"`
	Columns  []boardColumn `json:"columns"`
	Requests int           `json:"requests,omitempty"`
	NoOp     bool          `json:"noOp,omitempty"`
}

// NewHandler builds one stateless MCP adapter over backend.
func NewHandler(cfg Config, backend app.Backend) (*Handler, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerProjectTools(mcpSrv, backend)
	registerBoardTools(mcpSrv, backend)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "qboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerProjectTools registers the project listing tool.
func registerProjectTools(srv *mcpserver.MCPServer, backend app.Backend) {
	srv.AddTool(
		mcp.NewTool(
			"qboard.list_projects",
			mcp.WithDescription("List projects visible to the server."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projects, err := backend.ListProjects(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			out := make([]wire.Project, 0, len(projects))
			for _, project := range projects {
				out = append(out, wire.FromProject(project))
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"projects": out})
			if err != nil {
				return nil, fmt.Errorf("encode list_projects result: %w", err)
			}
			return result, nil
		},
	)
}

// registerBoardTools registers board read and move tools. Moves run through a
// fresh controller so they resolve exactly like an interactive drop.
func registerBoardTools(srv *mcpserver.MCPServer, backend app.Backend) {
	srv.AddTool(
		mcp.NewTool(
			"qboard.get_board",
			mcp.WithDescription("Return one project's columns in order, each with its ordered tasks."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			ctrl := app.NewController(backend, app.ControllerOptions{})
			if err := ctrl.Load(ctx, projectID); err != nil {
				return toolResultFromError(err), nil
			}
			return encodeBoard("get_board", ctrl, app.SyncResult{}, false)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"qboard.move_task",
			mcp.WithDescription("Drop a task into a column, optionally before or after a reference task."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to move")),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Destination column")),
			mcp.WithString("reference_id", mcp.Description("Task the drop lands next to; empty appends")),
			mcp.WithString("position", mcp.Description("before or after the reference"), mcp.Enum("before", "after")),
			mcp.WithBoolean("priority_sort", mcp.Description("Sort the destination column by priority after the drop")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			ctrl := app.NewController(backend, app.ControllerOptions{PrioritySort: req.GetBool("priority_sort", false)})
			if err := ctrl.Load(ctx, projectID); err != nil {
				return toolResultFromError(err), nil
			}
			pending, err := ctrl.MoveTask(taskID, board.Target{
				ColumnID:    columnID,
				ReferenceID: req.GetString("reference_id", ""),
				Position:    parsePosition(req.GetString("position", "")),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return syncAndEncode(ctx, "move_task", ctrl, pending)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"qboard.move_column",
			mcp.WithDescription("Reorder a column before or after a reference column."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Column to move")),
			mcp.WithString("reference_id", mcp.Description("Column the drop lands next to; empty appends")),
			mcp.WithString("position", mcp.Description("before or after the reference"), mcp.Enum("before", "after")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			ctrl := app.NewController(backend, app.ControllerOptions{})
			if err := ctrl.Load(ctx, projectID); err != nil {
				return toolResultFromError(err), nil
			}
			referenceID := req.GetString("reference_id", "")
			// A column target with no reference appends; ColumnID keeps it non-zero.
			pending, err := ctrl.MoveColumn(columnID, board.Target{
				ColumnID:    columnID,
				ReferenceID: referenceID,
				Position:    parsePosition(req.GetString("position", "")),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return syncAndEncode(ctx, "move_column", ctrl, pending)
		},
	)
}

// syncAndEncode commits pending, reconciles the refetch, and encodes the board.
func syncAndEncode(ctx context.Context, tool string, ctrl *app.Controller, pending app.PendingCommit) (*mcp.CallToolResult, error) {
	if !pending.NeedsSync() {
		return encodeBoard(tool, ctrl, app.SyncResult{}, pending.Commit.NoOp)
	}
	res := ctrl.Sync(ctx, pending)
	if err := ctrl.Reconcile(res); err != nil {
		return toolResultFromError(err), nil
	}
	return encodeBoard(tool, ctrl, res, false)
}

// encodeBoard renders the controller's board as a JSON tool result.
func encodeBoard(tool string, ctrl *app.Controller, res app.SyncResult, noOp bool) (*mcp.CallToolResult, error) {
	b := ctrl.Board()
	out := boardResult{
		Project:  wire.FromProject(ctrl.Data().Project),
		Columns:  make([]boardColumn, 0, len(b.ColumnIDs())),
		Requests: res.Requests,
		NoOp:     noOp,
	}
	for _, column := range b.ColumnsOrdered() {
		entry := boardColumn{Column: wire.FromColumn(column), Tasks: []wire.Task{}}
		for _, task := range b.TasksInColumn(column.ID) {
			entry.Tasks = append(entry.Tasks, wire.FromTask(task))
		}
		out.Columns = append(out.Columns, entry)
	}
	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// parsePosition maps the tool argument onto a drop position, defaulting to before.
func parsePosition(raw string) board.Position {
	if strings.EqualFold(strings.TrimSpace(raw), "after") {
		return board.After
	}
	return board.Before
}

// toolResultFromError maps errors into stable tool error text prefixes.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrNotFound), errors.Is(err, domain.ErrUnknownTask), errors.Is(err, domain.ErrUnknownColumn):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrNoProject), errors.Is(err, domain.ErrInvalidModel):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, app.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
