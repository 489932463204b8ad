package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/qboard/internal/adapters/remote/httpclient"
	"github.com/hylla/qboard/internal/adapters/server"
	"github.com/hylla/qboard/internal/adapters/storage/sqlite"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/board"
	"github.com/hylla/qboard/internal/config"
	"github.com/hylla/qboard/internal/domain"
	"github.com/hylla/qboard/internal/platform"
	"github.com/hylla/qboard/internal/tui"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the reference API server.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it with args.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds global flags.
type rootOptions struct {
	configPath string
	appName    string
	devMode    bool
}

// boardOptions holds board command flags.
type boardOptions struct {
	projectID string
	local     bool
}

// serveOptions holds serve command flags.
type serveOptions struct {
	bind   string
	dbPath string
}

// exportOptions holds export command flags.
type exportOptions struct {
	projectID string
	local     bool
	format    string
	outPath   string
	save      bool
}

// moveOptions holds move command flags.
type moveOptions struct {
	projectID string
	local     bool
	taskID    string
	columnID  string
	before    string
	after     string
}

// newRootCommand constructs the qboard command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{
		appName: "qboard",
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("QBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("QBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	rootBoard := &boardOptions{}
	root := &cobra.Command{
		Use:          "qboard",
		Short:        "Kanban board for the terminal with drag and drop",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), opts, *rootBoard, stderr)
		},
	}
	bindBoardFlags(root, rootBoard)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		boardCmd(opts, stderr),
		serveCmd(opts, stderr),
		exportCmd(opts, stdout, stderr),
		moveCmd(opts, stdout, stderr),
		taskCmd(opts, stdout, stderr),
		pathsCmd(opts, stdout),
		versionCmd(stdout),
	)
	return root
}

func bindBoardFlags(cmd *cobra.Command, opts *boardOptions) {
	cmd.Flags().StringVar(&opts.projectID, "project", "", "project id to open (default: board.project_id, then the first project)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "use the local sqlite database instead of the remote API")
}

func boardCmd(root *rootOptions, stderr io.Writer) *cobra.Command {
	opts := &boardOptions{}
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), root, *opts, stderr)
		},
	}
	bindBoardFlags(cmd, opts)
	return cmd
}

func serveCmd(root *rootOptions, stderr io.Writer) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference board API server over sqlite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, *opts, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.bind, "bind", "", "HTTP listen address (default: server.bind)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "path to sqlite database (default: server.db_path)")
	return cmd
}

func exportCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one project board as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), root, *opts, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.projectID, "project", "", "project id to export")
	cmd.Flags().BoolVar(&opts.local, "local", false, "read from the local sqlite database instead of the remote API")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format (json|yaml)")
	cmd.Flags().StringVar(&opts.outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "write into the export directory instead of --out")
	return cmd
}

func moveCmd(root *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &moveOptions{}
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move one task to a column, as a board drop would",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMove(cmd.Context(), root, *opts, stdout, stderr)
		},
	}
	cmd.Flags().StringVar(&opts.projectID, "project", "", "project id (default: board.project_id, then the first project)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "use the local sqlite database instead of the remote API")
	cmd.Flags().StringVar(&opts.taskID, "task", "", "task id to move")
	cmd.Flags().StringVar(&opts.columnID, "column", "", "destination column id")
	cmd.Flags().StringVar(&opts.before, "before", "", "place the task before this task")
	cmd.Flags().StringVar(&opts.after, "after", "", "place the task after this task")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("column")
	cmd.MarkFlagsMutuallyExclusive("before", "after")
	return cmd
}

func pathsCmd(root *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: root.appName, DevMode: root.devMode})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", root.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", root.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", root.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "export_dir: %s\n", paths.ExportDir)
			return nil
		},
	}
}

func versionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the qboard version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(stdout, "qboard %s\n", version)
		},
	}
}

// runtimeEnv is the resolved per-invocation state shared by commands.
type runtimeEnv struct {
	appName    string
	devMode    bool
	configPath string
	paths      platform.Paths
	cfg        config.Config
	logger     *runtimeLogger
	stderr     io.Writer
}

// resolveConfigPath applies --config, then QBOARD_CONFIG, then the platform default.
func (o *rootOptions) resolveConfigPath(paths platform.Paths) string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	if envPath := strings.TrimSpace(os.Getenv("QBOARD_CONFIG")); envPath != "" {
		return envPath
	}
	return paths.ConfigPath
}

// setup resolves paths, config and logging for one command.
func (o *rootOptions) setup(command string, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: o.appName, DevMode: o.devMode})
	if err != nil {
		return nil, err
	}
	configPath := o.resolveConfigPath(paths)
	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg, err = cfg.ApplyEnv(env)
	if err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "board" {
		// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Server.DBPath)
	logger.Info("configuration loaded", "config_path", configPath, "api", cfg.API.BaseURL, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &runtimeEnv{
		appName:    o.appName,
		devMode:    o.devMode,
		configPath: configPath,
		paths:      paths,
		cfg:        cfg,
		logger:     logger,
		stderr:     stderr,
	}, nil
}

// close releases the log sinks.
func (rt *runtimeEnv) close() {
	if closeErr := rt.logger.Close(); closeErr != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(rt.stderr, "warning: close runtime log sink: %v\n", closeErr)
	}
}

// openBackend returns the remote API client, or the local sqlite service when local is set.
// The returned func releases local resources.
func (rt *runtimeEnv) openBackend(ctx context.Context, local bool) (app.Backend, func(), error) {
	if local {
		svc, closeRepo, err := rt.openLocalService(ctx, rt.cfg.Server.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return svc, closeRepo, nil
	}

	timeout, err := rt.cfg.APITimeout()
	if err != nil {
		return nil, nil, err
	}
	client, err := httpclient.New(httpclient.Options{
		BaseURL: rt.cfg.API.BaseURL,
		Token:   rt.cfg.API.Token,
		Timeout: timeout,
		Logger:  rt.logger.Component("http"),
		OnUnauthorized: func() {
			rt.logger.Warn("api token rejected; login required", "api", rt.cfg.API.BaseURL)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configure api client: %w", err)
	}
	rt.logger.Info("remote api client ready", "api", client.BaseURL())
	return client, func() {}, nil
}

// openLocalService opens the sqlite repository at dbPath behind an app.Service.
func (rt *runtimeEnv) openLocalService(ctx context.Context, dbPath string) (*app.Service, func(), error) {
	rt.logger.Info("opening sqlite repository", "db_path", dbPath)
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		rt.logger.Error("sqlite open failed", "db_path", dbPath, "err", err)
		return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	closeRepo := func() {
		if closeErr := repo.Close(); closeErr != nil {
			rt.logger.Warn("sqlite close failed", "db_path", dbPath, "err", closeErr)
		}
	}
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		DefaultColumns: columnTemplates(rt.cfg.Board.Columns),
	})
	if _, err := svc.EnsureLocalUser(ctx); err != nil {
		closeRepo()
		return nil, nil, fmt.Errorf("ensure local user: %w", err)
	}
	rt.logger.Info("sqlite repository ready", "db_path", dbPath, "migrations", "ensured")
	return svc, closeRepo, nil
}

// resolveProject picks the explicit project, then board.project_id, then the
// first listed project. Local databases without projects get one seeded from
// the configured columns.
func (rt *runtimeEnv) resolveProject(ctx context.Context, backend app.Backend, explicit string, local bool) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(rt.cfg.Board.ProjectID); id != "" {
		return id, nil
	}
	projects, err := backend.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("list projects: %w", err)
	}
	if len(projects) > 0 {
		return projects[0].ID, nil
	}
	if !local {
		return "", fmt.Errorf("remote has no projects: %w", app.ErrNoProject)
	}
	project, err := backend.CreateProject(ctx, app.CreateProjectInput{Name: "My Board"})
	if err != nil {
		return "", fmt.Errorf("seed local project: %w", err)
	}
	rt.logger.Info("seeded local project", "project", project.ID)
	return project.ID, nil
}

// newController wires a board controller whose mutation events go to the runtime log.
func (rt *runtimeEnv) newController(backend app.Backend) *app.Controller {
	return app.NewController(backend, app.ControllerOptions{
		PrioritySort: rt.cfg.Board.PrioritySort,
		Logger:       rt.logger.Component("board"),
		Listeners: app.Listeners{
			OnTaskMoved: func(e app.MutationEvent) {
				move := e.TaskMoved
				rt.logger.Info("task moved", "id", e.ID, "seq", e.Sequence, "task", move.TaskID, "from", move.FromColumnID, "to", move.ToColumnID, "index", move.ToIndex)
			},
			OnColumnReordered: func(e app.MutationEvent) {
				reorder := e.ColumnReordered
				rt.logger.Info("column reordered", "id", e.ID, "seq", e.Sequence, "column", reorder.ColumnID, "order", reorder.Order, "previous", reorder.PreviousOrder, "changes", len(e.Changes))
			},
		},
	})
}

// runBoard runs the interactive board.
func runBoard(ctx context.Context, root *rootOptions, opts boardOptions, stderr io.Writer) error {
	rt, err := root.setup("board", stderr)
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
	timeout, err := rt.cfg.APITimeout()
	if err != nil {
		return err
	}

	m := tui.NewModel(
		rt.newController(backend),
		projectID,
		tui.WithTaskFieldConfig(tui.TaskFieldConfig{
			ShowPriority:    rt.cfg.Board.ShowPriority,
			ShowDescription: rt.cfg.Board.ShowDescription,
		}),
		tui.WithKeyConfig(toTUIKeyConfig(rt.cfg.Keys)),
		tui.WithSyncTimeout(timeout),
		tui.WithLogger(rt.logger.Component("tui")),
	)
	rt.logger.Info("starting tui program loop", "project", projectID, "local", opts.local)
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "board")
	return nil
}

// runServe runs the reference API server until interrupted.
func runServe(ctx context.Context, root *rootOptions, opts serveOptions, stderr io.Writer) error {
	rt, err := root.setup("serve", stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	dbPath := strings.TrimSpace(opts.dbPath)
	if dbPath == "" {
		dbPath = rt.cfg.Server.DBPath
	}
	bind := strings.TrimSpace(opts.bind)
	if bind == "" {
		bind = rt.cfg.Server.Bind
	}
	svc, release, err := rt.openLocalService(ctx, dbPath)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	rt.logger.Info("command flow start", "command", "serve", "bind", bind)
	err = serveCommandRunner(ctx, server.Config{
		HTTPBind:       bind,
		APIEndpoint:    rt.cfg.Server.Endpoint,
		MCPEndpoint:    rt.cfg.Server.MCPEndpoint,
		AllowedOrigins: rt.cfg.Server.AllowedOrigins,
		Token:          rt.cfg.Server.Token,
		ServerName:     rt.appName,
		ServerVersion:  version,
	}, server.Dependencies{
		Backend: svc,
		Logger:  rt.logger.Component("server"),
	})
	if err != nil {
		rt.logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "serve")
	return nil
}

// runExport writes one project board to stdout or a file.
func runExport(ctx context.Context, root *rootOptions, opts exportOptions, stdout, stderr io.Writer) error {
	format, err := parseExportFormat(opts.format)
	if err != nil {
		return err
	}
	rt, err := root.setup("export", stderr)
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
	data, err := backend.FetchBoard(ctx, projectID)
	if err != nil {
		return fmt.Errorf("fetch board %q: %w", projectID, err)
	}
	doc, err := newBoardExport(data, time.Now().UTC())
	if err != nil {
		return err
	}
	encoded, err := encodeExport(doc, format)
	if err != nil {
		return err
	}

	outPath := strings.TrimSpace(opts.outPath)
	if opts.save {
		outPath = exportFilePath(rt.paths.ExportDir, projectID, format, time.Now().UTC())
	}
	if err := writeExport(outPath, encoded, stdout); err != nil {
		return err
	}
	rt.logger.Info("command flow complete", "command", "export", "project", projectID, "format", format, "out", outPath)
	return nil
}

// runMove performs one scripted task move through the board controller.
func runMove(ctx context.Context, root *rootOptions, opts moveOptions, stdout, stderr io.Writer) error {
	rt, err := root.setup("move", stderr)
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

	ctrl := rt.newController(backend)
	if err := ctrl.Load(ctx, projectID); err != nil {
		return fmt.Errorf("load board %q: %w", projectID, err)
	}
	target, err := moveTarget(opts)
	if err != nil {
		return err
	}
	pending, err := ctrl.MoveTask(strings.TrimSpace(opts.taskID), target)
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	if pending.Commit.NoOp {
		_, _ = fmt.Fprintln(stdout, "no change")
		return nil
	}
	if pending.NeedsSync() {
		if err := ctrl.Reconcile(ctrl.Sync(ctx, pending)); err != nil {
			return fmt.Errorf("sync move: %w", err)
		}
	}

	columnID, idx, ok := ctrl.Board().Locate(pending.Commit.Subject.ID)
	if !ok {
		return fmt.Errorf("task %q missing after move: %w", pending.Commit.Subject.ID, domain.ErrUnknownTask)
	}
	name := columnID
	if column, ok := ctrl.Board().Column(columnID); ok {
		name = column.Name
	}
	_, _ = fmt.Fprintf(stdout, "moved %s to %s #%d\n", pending.Commit.Subject.ID, name, idx+1)
	if !pending.NeedsSync() || target.ReferenceID != "" {
		_, _ = fmt.Fprintln(stdout, "note: in-column order is not persisted by the API")
	}
	return nil
}

// moveTarget builds the drop target for the move flags.
func moveTarget(opts moveOptions) (board.Target, error) {
	target := board.Target{ColumnID: strings.TrimSpace(opts.columnID)}
	before, after := strings.TrimSpace(opts.before), strings.TrimSpace(opts.after)
	switch {
	case before != "" && after != "":
		return board.Target{}, fmt.Errorf("--before and --after are exclusive: %w", app.ErrInvalidInput)
	case before != "":
		target.ReferenceID, target.Position = before, board.Before
	case after != "":
		target.ReferenceID, target.Position = after, board.After
	}
	if target.ColumnID == "" {
		return board.Target{}, fmt.Errorf("--column is required: %w", app.ErrInvalidInput)
	}
	return target, nil
}

// columnTemplates maps configured column seeds onto service templates.
func columnTemplates(in []config.ColumnConfig) []app.ColumnTemplate {
	out := make([]app.ColumnTemplate, 0, len(in))
	for _, column := range in {
		out = append(out, app.ColumnTemplate{Name: column.Name, Color: domain.ColumnColor(column.Color)})
	}
	return out
}

// toTUIKeyConfig maps persisted key overrides into board options.
func toTUIKeyConfig(keys config.KeyConfig) tui.KeyConfig {
	return tui.KeyConfig{
		Grab:         keys.Grab,
		GrabColumn:   keys.GrabColumn,
		Drop:         keys.Drop,
		Cancel:       keys.Cancel,
		PrioritySort: keys.PrioritySort,
		Reload:       keys.Reload,
		Detail:       keys.Detail,
		Yank:         keys.Yank,
	}
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
