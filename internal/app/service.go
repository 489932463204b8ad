package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/qboard/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultColumns []ColumnTemplate
	LocalUser      domain.User
}

// ColumnTemplate seeds one column of a new project.
type ColumnTemplate struct {
	Name  string
	Color domain.ColumnColor
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements Backend on top of a Repository.
type Service struct {
	repo      Repository
	idGen     IDGenerator
	clock     Clock
	columns   []ColumnTemplate
	localUser domain.User
}

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	Name        string
	Description string
	AvatarURL   string
	Columns     []ColumnTemplate
}

// UpdateProjectInput holds input values for update project operations.
// Nil fields are left unchanged.
type UpdateProjectInput struct {
	ID          string
	Name        *string
	Description *string
	AvatarURL   *string
	Status      *domain.ProjectStatus
}

// CreateColumnInput holds input values for create column operations.
type CreateColumnInput struct {
	ProjectID string
	Name      string
	Color     domain.ColumnColor
}

// UpdateColumnInput holds input values for update column operations.
type UpdateColumnInput struct {
	ProjectID string
	ColumnID  string
	Name      *string
	Color     *domain.ColumnColor
	Order     *int
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ProjectID   string
	ColumnID    string
	Title       string
	Description string
	Priority    domain.Priority
	AssigneeID  string
	CommitHash  string
	LinesOfCode int
}

// UpdateTaskInput holds input values for update task operations.
type UpdateTaskInput struct {
	ID          string
	ColumnID    *string
	Title       *string
	Description *string
	Priority    *domain.Priority
	AssigneeID  *string
	CommitHash  *string
	LinesOfCode *int
}

// CreateRepositoryInput holds input values for connecting a repository.
type CreateRepositoryInput struct {
	ProjectID    string
	GithubRepoID string
}

// UpdateRepositoryInput holds input values for update repository operations.
type UpdateRepositoryInput struct {
	ID             string
	GithubRepoID   *string
	InstallationID *string
}

// TaskSortField names a task list sort key.
type TaskSortField string

// SortByPosition and related constants enumerate task sort keys.
const (
	SortByPosition  TaskSortField = ""
	SortByCreatedAt TaskSortField = "createdAt"
	SortByUpdatedAt TaskSortField = "updatedAt"
	SortByPriority  TaskSortField = "priority"
)

// SortOrder is ascending or descending.
type SortOrder string

// SortAsc and SortDesc enumerate sort directions.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TaskFilter narrows and orders task listings. Empty fields match everything.
type TaskFilter struct {
	ProjectID  string
	ColumnID   string
	AssigneeID string
	ReporterID string
	Priority   domain.Priority
	SortBy     TaskSortField
	SortOrder  SortOrder
}

// Validate checks sort options.
func (f TaskFilter) Validate() error {
	switch f.SortBy {
	case SortByPosition, SortByCreatedAt, SortByUpdatedAt, SortByPriority:
	default:
		return fmt.Errorf("%w: unsupported sortBy %q", ErrInvalidInput, f.SortBy)
	}
	switch f.SortOrder {
	case "", SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unsupported sortOrder %q", ErrInvalidInput, f.SortOrder)
	}
	if !f.Priority.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidPriority)
	}
	return nil
}

// DefaultColumnTemplates returns the columns a project gets when none are requested.
func DefaultColumnTemplates() []ColumnTemplate {
	return []ColumnTemplate{
		{Name: "To Do", Color: domain.ColorSlate},
		{Name: "In Progress", Color: domain.ColorAmber},
		{Name: "In Review", Color: domain.ColorPurple},
		{Name: "Done", Color: domain.ColorGreen},
	}
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	columns := sanitizeColumnTemplates(cfg.DefaultColumns)
	if len(columns) == 0 {
		columns = DefaultColumnTemplates()
	}
	local := cfg.LocalUser
	if strings.TrimSpace(local.ID) == "" {
		local.ID = "local"
	}
	if strings.TrimSpace(local.Login) == "" {
		local.Login = "local"
	}
	return &Service{
		repo:      repo,
		idGen:     idGen,
		clock:     clock,
		columns:   columns,
		localUser: local,
	}
}

// EnsureLocalUser creates the single local user on first run.
func (s *Service) EnsureLocalUser(ctx context.Context) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, s.localUser.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.User{}, err
	}
	user = s.localUser
	user.CreatedAt = s.clock().UTC()
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ListProjects lists projects.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// GetProject returns project.
func (s *Service) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(id))
}

// CreateProject creates a project and seeds its columns.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	now := s.clock()
	project, err := domain.NewProject(s.idGen(), in.Name, in.Description, now)
	if err != nil {
		return domain.Project{}, invalid(err)
	}
	project.AvatarURL = strings.TrimSpace(in.AvatarURL)
	project.OwnerID = s.localUser.ID

	templates := sanitizeColumnTemplates(in.Columns)
	if len(templates) == 0 {
		templates = s.columns
	}
	columns := make([]domain.Column, 0, len(templates))
	for idx, tpl := range templates {
		column, err := domain.NewColumn(s.idGen(), project.ID, tpl.Name, tpl.Color, idx, now)
		if err != nil {
			return domain.Project{}, invalid(err)
		}
		columns = append(columns, column)
	}

	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	for _, column := range columns {
		if err := s.repo.CreateColumn(ctx, column); err != nil {
			return domain.Project{}, err
		}
	}
	if err := s.repo.AddProjectMember(ctx, project.ID, project.OwnerID); err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Project{}, err
	}
	return project, nil
}

// UpdateProject applies the non-nil fields of in.
func (s *Service) UpdateProject(ctx context.Context, in UpdateProjectInput) (domain.Project, error) {
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(in.ID))
	if err != nil {
		return domain.Project{}, err
	}
	now := s.clock()
	name := project.Name
	if in.Name != nil {
		name = *in.Name
	}
	description := project.Description
	if in.Description != nil {
		description = *in.Description
	}
	avatar := project.AvatarURL
	if in.AvatarURL != nil {
		avatar = *in.AvatarURL
	}
	if err := project.UpdateDetails(name, description, avatar, now); err != nil {
		return domain.Project{}, invalid(err)
	}
	if in.Status != nil {
		if err := project.SetStatus(*in.Status, now); err != nil {
			return domain.Project{}, invalid(err)
		}
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// DeleteProject deletes a project with its columns, tasks and repositories.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	return s.repo.DeleteProject(ctx, strings.TrimSpace(id))
}

// AddProjectMember adds a user to a project.
func (s *Service) AddProjectMember(ctx context.Context, projectID, userID string) error {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.AddProjectMember(ctx, projectID, userID)
}

// RemoveProjectMember removes a user from a project.
func (s *Service) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return s.repo.RemoveProjectMember(ctx, projectID, userID)
}

// ListProjectMembers lists project members.
func (s *Service) ListProjectMembers(ctx context.Context, projectID string) ([]domain.User, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListProjectMembers(ctx, projectID)
}

// ListColumns lists a project's columns by order.
func (s *Service) ListColumns(ctx context.Context, projectID string) ([]domain.Column, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	columns, err := s.repo.ListColumns(ctx, projectID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(columns, func(a, b domain.Column) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return columns, nil
}

// CreateColumn appends a column to a project.
func (s *Service) CreateColumn(ctx context.Context, in CreateColumnInput) (domain.Column, error) {
	columns, err := s.ListColumns(ctx, in.ProjectID)
	if err != nil {
		return domain.Column{}, err
	}
	order := 0
	for _, column := range columns {
		if column.Order >= order {
			order = column.Order + 1
		}
	}
	column, err := domain.NewColumn(s.idGen(), in.ProjectID, in.Name, in.Color, order, s.clock())
	if err != nil {
		return domain.Column{}, invalid(err)
	}
	if err := s.repo.CreateColumn(ctx, column); err != nil {
		return domain.Column{}, err
	}
	return column, nil
}

// UpdateColumn applies the non-nil fields of in.
func (s *Service) UpdateColumn(ctx context.Context, in UpdateColumnInput) (domain.Column, error) {
	column, err := s.projectColumn(ctx, in.ProjectID, in.ColumnID)
	if err != nil {
		return domain.Column{}, err
	}
	now := s.clock()
	if in.Name != nil {
		if err := column.Rename(*in.Name, now); err != nil {
			return domain.Column{}, invalid(err)
		}
	}
	if in.Color != nil {
		if err := column.Recolor(*in.Color, now); err != nil {
			return domain.Column{}, invalid(err)
		}
	}
	if in.Order != nil {
		if err := column.SetOrder(*in.Order, now); err != nil {
			return domain.Column{}, invalid(err)
		}
	}
	if err := s.repo.UpdateColumn(ctx, column); err != nil {
		return domain.Column{}, err
	}
	return column, nil
}

// DeleteColumn deletes a column and its tasks.
func (s *Service) DeleteColumn(ctx context.Context, projectID, columnID string) error {
	if _, err := s.projectColumn(ctx, projectID, columnID); err != nil {
		return err
	}
	return s.repo.DeleteColumn(ctx, columnID)
}

// ListTasks lists tasks matching the filter.
func (s *Service) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortTasks(tasks, filter.SortBy, filter.SortOrder)
	return tasks, nil
}

// GetTask returns task.
func (s *Service) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return s.repo.GetTask(ctx, strings.TrimSpace(id))
}

// CreateTask appends a task to a column.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	if _, err := s.projectColumn(ctx, in.ProjectID, in.ColumnID); err != nil {
		return domain.Task{}, err
	}
	position, err := s.nextTaskPosition(ctx, in.ColumnID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   in.ProjectID,
		ColumnID:    in.ColumnID,
		Position:    position,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		ReporterID:  s.localUser.ID,
		CommitHash:  in.CommitHash,
		LinesOfCode: in.LinesOfCode,
	}, s.clock())
	if err != nil {
		return domain.Task{}, invalid(err)
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask applies the non-nil fields of in.
// A column change appends the task to the end of the target column.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(in.ID))
	if err != nil {
		return domain.Task{}, err
	}
	now := s.clock()

	title, description, priority := task.Title, task.Description, task.Priority
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.Priority != nil {
		priority = *in.Priority
	}
	if err := task.UpdateDetails(title, description, priority, now); err != nil {
		return domain.Task{}, invalid(err)
	}
	if in.AssigneeID != nil {
		task.AssigneeID = strings.TrimSpace(*in.AssigneeID)
	}
	if in.CommitHash != nil {
		task.CommitHash = strings.TrimSpace(*in.CommitHash)
	}
	if in.LinesOfCode != nil {
		if *in.LinesOfCode < 0 {
			return domain.Task{}, invalid(domain.ErrInvalidPosition)
		}
		task.LinesOfCode = *in.LinesOfCode
	}

	if in.ColumnID != nil && strings.TrimSpace(*in.ColumnID) != task.ColumnID {
		columnID := strings.TrimSpace(*in.ColumnID)
		if _, err := s.projectColumn(ctx, task.ProjectID, columnID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return domain.Task{}, invalid(fmt.Errorf("column %q: %w", columnID, domain.ErrUnknownColumn))
			}
			return domain.Task{}, err
		}
		position, err := s.nextTaskPosition(ctx, columnID)
		if err != nil {
			return domain.Task{}, err
		}
		if err := task.Move(columnID, position, now); err != nil {
			return domain.Task{}, invalid(err)
		}
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.repo.DeleteTask(ctx, strings.TrimSpace(id))
}

// ListRepositories lists repositories connected to a project.
func (s *Service) ListRepositories(ctx context.Context, projectID string) ([]domain.Repository, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListRepositories(ctx, projectID)
}

// GetRepository returns repository.
func (s *Service) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	return s.repo.GetRepository(ctx, strings.TrimSpace(id))
}

// CreateRepository connects a GitHub repository to a project.
func (s *Service) CreateRepository(ctx context.Context, in CreateRepositoryInput) (domain.Repository, error) {
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return domain.Repository{}, err
	}
	repo, err := domain.NewRepository(s.idGen(), in.ProjectID, in.GithubRepoID, s.clock())
	if err != nil {
		return domain.Repository{}, invalid(err)
	}
	if err := s.repo.CreateRepository(ctx, repo); err != nil {
		return domain.Repository{}, err
	}
	return repo, nil
}

// UpdateRepository applies the non-nil fields of in.
func (s *Service) UpdateRepository(ctx context.Context, in UpdateRepositoryInput) (domain.Repository, error) {
	repo, err := s.repo.GetRepository(ctx, strings.TrimSpace(in.ID))
	if err != nil {
		return domain.Repository{}, err
	}
	if in.GithubRepoID != nil {
		githubRepoID := strings.TrimSpace(*in.GithubRepoID)
		if githubRepoID == "" {
			return domain.Repository{}, invalid(domain.ErrInvalidRepository)
		}
		repo.GithubRepoID = githubRepoID
	}
	if in.InstallationID != nil {
		repo.InstallationID = strings.TrimSpace(*in.InstallationID)
	}
	if err := s.repo.UpdateRepository(ctx, repo); err != nil {
		return domain.Repository{}, err
	}
	return repo, nil
}

// DeleteRepository disconnects a repository.
func (s *Service) DeleteRepository(ctx context.Context, id string) error {
	return s.repo.DeleteRepository(ctx, strings.TrimSpace(id))
}

// CurrentUser returns the local user.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	return s.EnsureLocalUser(ctx)
}

// ListUsers lists users.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns user.
func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.repo.GetUser(ctx, strings.TrimSpace(id))
}

// FetchBoard loads a project's columns and tasks.
func (s *Service) FetchBoard(ctx context.Context, projectID string) (BoardData, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return BoardData{}, err
	}
	columns, err := s.ListColumns(ctx, projectID)
	if err != nil {
		return BoardData{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{ProjectID: projectID})
	if err != nil {
		return BoardData{}, err
	}
	return BoardData{Project: project, Columns: columns, Tasks: tasks}, nil
}

// CommitTaskMove persists a task's column membership.
func (s *Service) CommitTaskMove(ctx context.Context, taskID, columnID string) (domain.Task, error) {
	return s.UpdateTask(ctx, UpdateTaskInput{ID: taskID, ColumnID: &columnID})
}

// CommitColumnReorder persists one column's order value.
func (s *Service) CommitColumnReorder(ctx context.Context, projectID, columnID string, order int) (domain.Column, error) {
	return s.UpdateColumn(ctx, UpdateColumnInput{ProjectID: projectID, ColumnID: columnID, Order: &order})
}

// projectColumn loads a column and checks it belongs to the project.
func (s *Service) projectColumn(ctx context.Context, projectID, columnID string) (domain.Column, error) {
	column, err := s.repo.GetColumn(ctx, strings.TrimSpace(columnID))
	if err != nil {
		return domain.Column{}, err
	}
	if column.ProjectID != strings.TrimSpace(projectID) {
		return domain.Column{}, fmt.Errorf("column %q in project %q: %w", columnID, projectID, ErrNotFound)
	}
	return column, nil
}

// nextTaskPosition returns the append position for a column.
func (s *Service) nextTaskPosition(ctx context.Context, columnID string) (int, error) {
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{ColumnID: columnID})
	if err != nil {
		return 0, err
	}
	position := 0
	for _, task := range tasks {
		if task.Position >= position {
			position = task.Position + 1
		}
	}
	return position, nil
}

// sortTasks orders tasks in place; position order is column then position.
func sortTasks(tasks []domain.Task, by TaskSortField, order SortOrder) {
	compare := func(a, b domain.Task) int {
		switch by {
		case SortByCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		case SortByUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByPriority:
			return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		default:
			return cmp.Or(cmp.Compare(a.ColumnID, b.ColumnID), cmp.Compare(a.Position, b.Position))
		}
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if order == SortDesc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

// sanitizeColumnTemplates drops blank templates.
func sanitizeColumnTemplates(in []ColumnTemplate) []ColumnTemplate {
	out := make([]ColumnTemplate, 0, len(in))
	for _, tpl := range in {
		tpl.Name = strings.TrimSpace(tpl.Name)
		if tpl.Name == "" {
			continue
		}
		out = append(out, tpl)
	}
	return out
}

// invalid tags a validation error so transports can map it.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
