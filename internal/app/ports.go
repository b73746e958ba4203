package app

import (
	"context"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// ActivityFilter narrows ListActivities. Zero values do not filter. StartFrom is inclusive
// and StartTo exclusive; Department matches the owner's department.
type ActivityFilter struct {
	OwnerID    string
	Department string
	Statuses   []domain.Status
	StartFrom  time.Time
	StartTo    time.Time
	EndFrom    time.Time
}

// Repository represents the persistence port used by the service.
type Repository interface {
	// WithinTx runs fn against a transaction-scoped repository. Any error rolls back.
	WithinTx(context.Context, func(Repository) error) error

	CreateUser(context.Context, domain.User) error
	UpdateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	GetUserByUsername(context.Context, string) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)
	CountUsersByRole(context.Context, domain.Role) (int, error)

	CreateDepartment(context.Context, domain.Department) error
	GetDepartment(context.Context, string) (domain.Department, error)
	ListDepartments(context.Context) ([]domain.Department, error)
	DeleteDepartment(context.Context, string) error
	CountUsersInDepartment(context.Context, string) (int, error)

	CreateActivity(context.Context, domain.Activity) error
	UpdateActivity(context.Context, domain.Activity) error
	GetActivity(context.Context, string) (domain.Activity, error)
	ListActivities(context.Context, ActivityFilter) ([]domain.Activity, error)
	DeleteActivity(context.Context, string) error

	CreateTag(context.Context, domain.Tag) error
	ListTags(context.Context, string) ([]domain.Tag, error)

	CreateDependency(context.Context, domain.Dependency) error
	DeleteDependency(context.Context, string, string) error
	ListPrerequisites(context.Context, string) ([]domain.Dependency, error)
	ListDependents(context.Context, string) ([]domain.Dependency, error)
	ListAllDependencies(context.Context) ([]domain.Dependency, error)

	CreateComment(context.Context, domain.Comment) error
	ListComments(context.Context, string) ([]domain.Comment, error)

	CreateTimeEntry(context.Context, domain.TimeEntry) error
	ListTimeEntries(context.Context, string) ([]domain.TimeEntry, error)

	CreateReminder(context.Context, domain.Reminder) error
	GetReminder(context.Context, string) (domain.Reminder, error)
	MarkReminderSent(context.Context, string) error
	ListReminders(context.Context, string) ([]domain.Reminder, error)
	ListDueReminders(context.Context, time.Time) ([]domain.Reminder, error)

	AppendAudit(context.Context, domain.AuditEntry) error
	ListAudit(context.Context, int) ([]domain.AuditEntry, error)
}

// DashboardCache stores computed dashboards between mutations.
type DashboardCache interface {
	GetDashboard(context.Context, string) (Dashboard, bool, error)
	SetDashboard(context.Context, string, Dashboard) error
	Invalidate(context.Context) error
}
