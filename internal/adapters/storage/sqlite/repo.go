package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// pragmaDSN enables foreign keys on every pooled connection.
const pragmaDSN = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository implements app.Repository on sqlite.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, "file:"+path+"?"+pragmaDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?"+pragmaDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			login TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			owner_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			added_at TEXT NOT NULL,
			PRIMARY KEY(project_id, user_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS board_columns (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT 'slate',
			sort_order INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			column_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			assignee_id TEXT NOT NULL DEFAULT '',
			reporter_id TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			lines_of_code INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY(column_id) REFERENCES board_columns(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS repositories (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			github_repo_id TEXT NOT NULL,
			installation_id TEXT NOT NULL DEFAULT '',
			connected_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_board_columns_project ON board_columns(project_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_project ON repositories(project_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateProject creates project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, slug, name, description, avatar_url, status, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Name, p.Description, p.AvatarURL, string(p.Status), p.OwnerID, ts(p.CreatedAt), ts(p.UpdatedAt))
	return translateConstraint(err)
}

// UpdateProject updates state for the requested operation.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET slug = ?, name = ?, description = ?, avatar_url = ?, status = ?, owner_id = ?, updated_at = ?
		WHERE id = ?
	`, p.Slug, p.Name, p.Description, p.AvatarURL, string(p.Status), p.OwnerID, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject returns project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, avatar_url, status, owner_id, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, description, avatar_url, status, owner_id, created_at, updated_at
		FROM projects
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject deletes a project and everything under it.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// AddProjectMember adds a membership row.
func (r *Repository) AddProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_members(project_id, user_id, added_at)
		VALUES (?, ?, ?)
	`, projectID, userID, ts(time.Now()))
	return translateConstraint(err)
}

// RemoveProjectMember removes a membership row.
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListProjectMembers lists users who are members of a project.
func (r *Repository) ListProjectMembers(ctx context.Context, projectID string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.login, u.first_name, u.last_name, u.email, u.avatar_url, u.created_at
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.added_at ASC, u.id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateColumn creates column.
func (r *Repository) CreateColumn(ctx context.Context, c domain.Column) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO board_columns(id, project_id, name, color, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Name, string(c.Color), c.Order, ts(c.CreatedAt), ts(c.UpdatedAt))
	return translateConstraint(err)
}

// UpdateColumn updates state for the requested operation.
func (r *Repository) UpdateColumn(ctx context.Context, c domain.Column) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE board_columns
		SET name = ?, color = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, string(c.Color), c.Order, ts(c.UpdatedAt), c.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetColumn returns column.
func (r *Repository) GetColumn(ctx context.Context, id string) (domain.Column, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, color, sort_order, created_at, updated_at
		FROM board_columns
		WHERE id = ?
	`, id)
	return scanColumn(row)
}

// ListColumns lists columns.
func (r *Repository) ListColumns(ctx context.Context, projectID string) ([]domain.Column, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, color, sort_order, created_at, updated_at
		FROM board_columns
		WHERE project_id = ?
		ORDER BY sort_order ASC, created_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Column{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteColumn deletes a column and its tasks.
func (r *Repository) DeleteColumn(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateTask creates task.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks(
			id, project_id, column_id, position, title, description, priority,
			assignee_id, reporter_id, commit_hash, lines_of_code, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.ProjectID, t.ColumnID, t.Position, t.Title, t.Description, string(t.Priority),
		t.AssigneeID, t.ReporterID, t.CommitHash, t.LinesOfCode, ts(t.CreatedAt), ts(t.UpdatedAt),
	)
	return translateConstraint(err)
}

// UpdateTask updates state for the requested operation.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET column_id = ?, position = ?, title = ?, description = ?, priority = ?,
			assignee_id = ?, commit_hash = ?, lines_of_code = ?, updated_at = ?
		WHERE id = ?
	`,
		t.ColumnID, t.Position, t.Title, t.Description, string(t.Priority),
		t.AssigneeID, t.CommitHash, t.LinesOfCode, ts(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return translateConstraint(err)
	}
	return translateNoRows(res)
}

// GetTask returns task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks lists tasks matching filter by column then position.
// Sorting by other keys is applied by the caller.
func (r *Repository) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause, value string) {
		if value = strings.TrimSpace(value); value != "" {
			where = append(where, clause)
			args = append(args, value)
		}
	}
	add("project_id = ?", filter.ProjectID)
	add("column_id = ?", filter.ColumnID)
	add("assignee_id = ?", filter.AssigneeID)
	add("reporter_id = ?", filter.ReporterID)
	add("priority = ?", string(filter.Priority))

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY column_id ASC, position ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask deletes task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateRepository creates repository.
func (r *Repository) CreateRepository(ctx context.Context, repo domain.Repository) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO repositories(id, project_id, github_repo_id, installation_id, connected_at)
		VALUES (?, ?, ?, ?, ?)
	`, repo.ID, repo.ProjectID, repo.GithubRepoID, repo.InstallationID, ts(repo.ConnectedAt))
	return translateConstraint(err)
}

// UpdateRepository updates state for the requested operation.
func (r *Repository) UpdateRepository(ctx context.Context, repo domain.Repository) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE repositories
		SET github_repo_id = ?, installation_id = ?
		WHERE id = ?
	`, repo.GithubRepoID, repo.InstallationID, repo.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetRepository returns repository.
func (r *Repository) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, github_repo_id, installation_id, connected_at
		FROM repositories
		WHERE id = ?
	`, id)
	return scanRepository(row)
}

// ListRepositories lists repositories.
func (r *Repository) ListRepositories(ctx context.Context, projectID string) ([]domain.Repository, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, github_repo_id, installation_id, connected_at
		FROM repositories
		WHERE project_id = ?
		ORDER BY connected_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Repository{}
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// DeleteRepository deletes repository.
func (r *Repository) DeleteRepository(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, login, first_name, last_name, email, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Login, u.FirstName, u.LastName, u.Email, u.AvatarURL, ts(u.CreatedAt))
	return translateConstraint(err)
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, login, first_name, last_name, email, avatar_url, created_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers lists users.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, login, first_name, last_name, email, avatar_url, created_at
		FROM users
		ORDER BY login ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// taskColumns lists task columns in scanTask order.
const taskColumns = `id, project_id, column_id, position, title, description, priority,
	assignee_id, reporter_id, commit_hash, lines_of_code, created_at, updated_at`

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject handles scan project.
func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.AvatarURL, &status, &p.OwnerID, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

// scanColumn handles scan column.
func scanColumn(s scanner) (domain.Column, error) {
	var (
		c          domain.Column
		color      string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.ProjectID, &c.Name, &color, &c.Order, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Column{}, app.ErrNotFound
		}
		return domain.Column{}, err
	}
	c.Color = domain.ColumnColor(color)
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// scanTask handles scan task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		priority   string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&t.ColumnID,
		&t.Position,
		&t.Title,
		&t.Description,
		&priority,
		&t.AssigneeID,
		&t.ReporterID,
		&t.CommitHash,
		&t.LinesOfCode,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// scanRepository handles scan repository.
func scanRepository(s scanner) (domain.Repository, error) {
	var (
		repo         domain.Repository
		connectedRaw string
	)
	if err := s.Scan(&repo.ID, &repo.ProjectID, &repo.GithubRepoID, &repo.InstallationID, &connectedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Repository{}, app.ErrNotFound
		}
		return domain.Repository{}, err
	}
	repo.ConnectedAt = parseTS(connectedRaw)
	return repo, nil
}

// scanUser handles scan user.
func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		createdRaw string
	)
	if err := s.Scan(&u.ID, &u.Login, &u.FirstName, &u.LastName, &u.Email, &u.AvatarURL, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// translateConstraint maps sqlite constraint failures onto app errors.
func translateConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"), strings.Contains(msg, "primary key"):
		return fmt.Errorf("%w: %w", app.ErrConflict, err)
	case strings.Contains(msg, "foreign key constraint failed"):
		return fmt.Errorf("%w: %w", app.ErrNotFound, err)
	default:
		return err
	}
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
