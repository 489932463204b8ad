package app

import (
	"context"

	"github.com/hylla/qboard/internal/domain"
)

// Repository is the persistence port backing Service.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context) ([]domain.Project, error)
	DeleteProject(context.Context, string) error
	AddProjectMember(context.Context, string, string) error
	RemoveProjectMember(context.Context, string, string) error
	ListProjectMembers(context.Context, string) ([]domain.User, error)

	CreateColumn(context.Context, domain.Column) error
	UpdateColumn(context.Context, domain.Column) error
	GetColumn(context.Context, string) (domain.Column, error)
	ListColumns(context.Context, string) ([]domain.Column, error)
	DeleteColumn(context.Context, string) error

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	CreateRepository(context.Context, domain.Repository) error
	UpdateRepository(context.Context, domain.Repository) error
	GetRepository(context.Context, string) (domain.Repository, error)
	ListRepositories(context.Context, string) ([]domain.Repository, error)
	DeleteRepository(context.Context, string) error

	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)
}

// Remote is the persistence capability the board controller depends on.
// Only column membership of tasks and column order values are persisted through it.
type Remote interface {
	FetchBoard(context.Context, string) (BoardData, error)
	CommitTaskMove(context.Context, string, string) (domain.Task, error)
	CommitColumnReorder(context.Context, string, string, int) (domain.Column, error)
}

// Backend is the full project-management surface, served locally by Service
// and remotely by the HTTP client.
type Backend interface {
	Remote

	ListProjects(context.Context) ([]domain.Project, error)
	GetProject(context.Context, string) (domain.Project, error)
	CreateProject(context.Context, CreateProjectInput) (domain.Project, error)
	UpdateProject(context.Context, UpdateProjectInput) (domain.Project, error)
	DeleteProject(context.Context, string) error
	AddProjectMember(context.Context, string, string) error
	RemoveProjectMember(context.Context, string, string) error
	ListProjectMembers(context.Context, string) ([]domain.User, error)

	ListColumns(context.Context, string) ([]domain.Column, error)
	CreateColumn(context.Context, CreateColumnInput) (domain.Column, error)
	UpdateColumn(context.Context, UpdateColumnInput) (domain.Column, error)
	DeleteColumn(context.Context, string, string) error

	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)
	GetTask(context.Context, string) (domain.Task, error)
	CreateTask(context.Context, CreateTaskInput) (domain.Task, error)
	UpdateTask(context.Context, UpdateTaskInput) (domain.Task, error)
	DeleteTask(context.Context, string) error

	ListRepositories(context.Context, string) ([]domain.Repository, error)
	GetRepository(context.Context, string) (domain.Repository, error)
	CreateRepository(context.Context, CreateRepositoryInput) (domain.Repository, error)
	UpdateRepository(context.Context, UpdateRepositoryInput) (domain.Repository, error)
	DeleteRepository(context.Context, string) error

	CurrentUser(context.Context) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)
	GetUser(context.Context, string) (domain.User, error)
}

// BoardData is one fetched snapshot of a project board.
type BoardData struct {
	Project domain.Project
	Columns []domain.Column
	Tasks   []domain.Task
}
