// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"time"

	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

// ActivityService exposes the activity lifecycle and its attachments.
type ActivityService interface {
	CreateActivity(context.Context, app.CreateActivityInput) (domain.Activity, error)
	GetActivity(context.Context, string) (domain.Activity, error)
	ListActivities(context.Context, app.Scope) ([]domain.Activity, error)
	UpdateActivity(context.Context, string, domain.ActivityPatch) (domain.Activity, error)
	CompleteActivity(context.Context, string) (domain.Activity, error)
	DeleteActivity(context.Context, string) error
	EffectiveStatus(domain.Activity) domain.Status

	RecordTime(context.Context, app.RecordTimeInput) (domain.TimeEntry, error)
	TotalHours(context.Context, string) (float64, error)
	ListTimeEntries(context.Context, string) ([]domain.TimeEntry, error)

	AddDependency(context.Context, string, string) (domain.Dependency, error)
	RemoveDependency(context.Context, string, string) error
	IsUnblocked(context.Context, string) (bool, error)
	PrerequisitesOf(context.Context, string) ([]domain.Activity, error)
	DependentsOf(context.Context, string) ([]domain.Activity, error)

	AddComment(context.Context, string, string) (domain.Comment, error)
	ListComments(context.Context, string) ([]domain.Comment, error)
	AddTag(context.Context, string, string) (domain.Tag, error)
	ListTags(context.Context, string) ([]domain.Tag, error)
	AddReminder(context.Context, app.AddReminderInput) (domain.Reminder, error)
	ListReminders(context.Context, string) ([]domain.Reminder, error)
	DueReminders(context.Context, time.Time) ([]domain.Reminder, error)
	MarkReminderSent(context.Context, string) (domain.Reminder, error)
}

// MetricsService exposes the aggregate reads.
type MetricsService interface {
	Dashboard(context.Context, app.Scope) (app.Dashboard, error)
	ProductivitySeries(context.Context, app.Scope, int) ([]app.ProductivityPoint, error)
	DepartmentPerformance(context.Context) ([]app.DepartmentStat, error)
	TeamWorkload(context.Context, app.Scope) ([]app.WorkloadEntry, error)
	Timeline(context.Context, app.Scope) ([]app.TimelineEntry, error)
}

// AccountService exposes users, departments, authentication and the audit log.
type AccountService interface {
	Authenticate(context.Context, string, string) (domain.User, error)
	ActorResolver
	CreateUser(context.Context, app.CreateUserInput) (domain.User, error)
	UpdateUser(context.Context, string, app.UpdateUserInput) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)
	CreateDepartment(context.Context, string, string) (domain.Department, error)
	ListDepartments(context.Context) ([]domain.Department, error)
	DeleteDepartment(context.Context, string) error
	ListAudit(context.Context, int) ([]domain.AuditEntry, error)
}

// Service is the full operation surface served over HTTP and MCP.
type Service interface {
	ActivityService
	MetricsService
	AccountService
}

var _ Service = (*app.Service)(nil)

// TokenVerifier resolves a bearer token into an actor.
type TokenVerifier interface {
	Parse(string) (app.Actor, error)
}

// ActorResolver loads the current identity of a token subject.
type ActorResolver interface {
	ResolveActor(context.Context, string) (app.Actor, error)
}

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(domain.User) (string, time.Time, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	TokenVerifier
	TokenIssuer
}
