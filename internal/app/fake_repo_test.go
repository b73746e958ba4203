package app

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// fakeRepo is an in-memory Repository. WithinTx does not roll back.
type fakeRepo struct {
	users       map[string]domain.User
	departments map[string]domain.Department
	activities  map[string]domain.Activity
	tags        []domain.Tag
	deps        []domain.Dependency
	comments    []domain.Comment
	entries     []domain.TimeEntry
	reminders   map[string]domain.Reminder
	audit       []domain.AuditEntry
	failAudit   error
	lastFilter  ActivityFilter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       map[string]domain.User{},
		departments: map[string]domain.Department{},
		activities:  map[string]domain.Activity{},
		reminders:   map[string]domain.Reminder{},
	}
}

func (f *fakeRepo) WithinTx(_ context.Context, fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return ErrConflict
		}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) UpdateUser(_ context.Context, u domain.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return ErrNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (f *fakeRepo) ListUsers(context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.User) int { return cmp.Compare(a.Username, b.Username) })
	return out, nil
}

func (f *fakeRepo) CountUsersByRole(_ context.Context, role domain.Role) (int, error) {
	n := 0
	for _, u := range f.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateDepartment(_ context.Context, d domain.Department) error {
	if _, ok := f.departments[d.Name]; ok {
		return ErrConflict
	}
	f.departments[d.Name] = d
	return nil
}

func (f *fakeRepo) GetDepartment(_ context.Context, name string) (domain.Department, error) {
	d, ok := f.departments[name]
	if !ok {
		return domain.Department{}, ErrNotFound
	}
	return d, nil
}

func (f *fakeRepo) ListDepartments(context.Context) ([]domain.Department, error) {
	out := make([]domain.Department, 0, len(f.departments))
	for _, d := range f.departments {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b domain.Department) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (f *fakeRepo) DeleteDepartment(_ context.Context, name string) error {
	if _, ok := f.departments[name]; !ok {
		return ErrNotFound
	}
	delete(f.departments, name)
	return nil
}

func (f *fakeRepo) CountUsersInDepartment(_ context.Context, name string) (int, error) {
	n := 0
	for _, u := range f.users {
		if u.Department == name {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, a domain.Activity) error {
	f.activities[a.ID] = a
	return nil
}

func (f *fakeRepo) UpdateActivity(_ context.Context, a domain.Activity) error {
	if _, ok := f.activities[a.ID]; !ok {
		return ErrNotFound
	}
	f.activities[a.ID] = a
	return nil
}

func (f *fakeRepo) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) ListActivities(_ context.Context, filter ActivityFilter) ([]domain.Activity, error) {
	f.lastFilter = filter
	out := make([]domain.Activity, 0, len(f.activities))
	for _, a := range f.activities {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Department != "" && f.users[a.OwnerID].Department != filter.Department {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, a.Status) {
			continue
		}
		if !filter.StartFrom.IsZero() && a.StartTime.Before(filter.StartFrom) {
			continue
		}
		if !filter.StartTo.IsZero() && !a.StartTime.Before(filter.StartTo) {
			continue
		}
		if !filter.EndFrom.IsZero() && (a.EndTime == nil || a.EndTime.Before(filter.EndFrom)) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Activity) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (f *fakeRepo) DeleteActivity(_ context.Context, id string) error {
	if _, ok := f.activities[id]; !ok {
		return ErrNotFound
	}
	delete(f.activities, id)
	f.tags = slices.DeleteFunc(f.tags, func(t domain.Tag) bool { return t.ActivityID == id })
	f.deps = slices.DeleteFunc(f.deps, func(d domain.Dependency) bool { return d.ActivityID == id || d.DependsOnID == id })
	f.comments = slices.DeleteFunc(f.comments, func(c domain.Comment) bool { return c.ActivityID == id })
	f.entries = slices.DeleteFunc(f.entries, func(e domain.TimeEntry) bool { return e.ActivityID == id })
	for rid, r := range f.reminders {
		if r.ActivityID == id {
			delete(f.reminders, rid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateTag(_ context.Context, t domain.Tag) error {
	f.tags = append(f.tags, t)
	return nil
}

func (f *fakeRepo) ListTags(_ context.Context, activityID string) ([]domain.Tag, error) {
	var out []domain.Tag
	for _, t := range f.tags {
		if t.ActivityID == activityID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateDependency(_ context.Context, d domain.Dependency) error {
	f.deps = append(f.deps, d)
	return nil
}

func (f *fakeRepo) DeleteDependency(_ context.Context, activityID, dependsOnID string) error {
	before := len(f.deps)
	f.deps = slices.DeleteFunc(f.deps, func(d domain.Dependency) bool {
		return d.ActivityID == activityID && d.DependsOnID == dependsOnID
	})
	if len(f.deps) == before {
		return ErrNotFound
	}
	return nil
}

func (f *fakeRepo) ListPrerequisites(_ context.Context, activityID string) ([]domain.Dependency, error) {
	var out []domain.Dependency
	for _, d := range f.deps {
		if d.ActivityID == activityID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListDependents(_ context.Context, activityID string) ([]domain.Dependency, error) {
	var out []domain.Dependency
	for _, d := range f.deps {
		if d.DependsOnID == activityID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAllDependencies(context.Context) ([]domain.Dependency, error) {
	return slices.Clone(f.deps), nil
}

func (f *fakeRepo) CreateComment(_ context.Context, c domain.Comment) error {
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakeRepo) ListComments(_ context.Context, activityID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.comments {
		if c.ActivityID == activityID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTimeEntry(_ context.Context, e domain.TimeEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRepo) ListTimeEntries(_ context.Context, activityID string) ([]domain.TimeEntry, error) {
	var out []domain.TimeEntry
	for _, e := range f.entries {
		if e.ActivityID == activityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateReminder(_ context.Context, r domain.Reminder) error {
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeRepo) GetReminder(_ context.Context, id string) (domain.Reminder, error) {
	r, ok := f.reminders[id]
	if !ok {
		return domain.Reminder{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) MarkReminderSent(_ context.Context, id string) error {
	r, ok := f.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Sent = true
	f.reminders[id] = r
	return nil
}

func (f *fakeRepo) ListReminders(_ context.Context, activityID string) ([]domain.Reminder, error) {
	var out []domain.Reminder
	for _, r := range f.reminders {
		if r.ActivityID == activityID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reminder) int { return a.ReminderAt.Compare(b.ReminderAt) })
	return out, nil
}

func (f *fakeRepo) ListDueReminders(_ context.Context, before time.Time) ([]domain.Reminder, error) {
	var out []domain.Reminder
	for _, r := range f.reminders {
		if !r.Sent && !r.ReminderAt.After(before) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reminder) int { return a.ReminderAt.Compare(b.ReminderAt) })
	return out, nil
}

func (f *fakeRepo) AppendAudit(_ context.Context, e domain.AuditEntry) error {
	if f.failAudit != nil {
		return f.failAudit
	}
	e.ID = int64(len(f.audit) + 1)
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeRepo) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	out := slices.Clone(f.audit)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// auditActions lists recorded actions oldest first.
func (f *fakeRepo) auditActions() []domain.AuditAction {
	out := make([]domain.AuditAction, 0, len(f.audit))
	for _, e := range f.audit {
		out = append(out, e.Action)
	}
	return out
}

// fakeCache is an in-memory DashboardCache.
type fakeCache struct {
	items       map[string]Dashboard
	invalidated int
	fail        error
}

func (c *fakeCache) GetDashboard(_ context.Context, key string) (Dashboard, bool, error) {
	if c.fail != nil {
		return Dashboard{}, false, c.fail
	}
	d, ok := c.items[key]
	return d, ok, nil
}

func (c *fakeCache) SetDashboard(_ context.Context, key string, d Dashboard) error {
	if c.fail != nil {
		return c.fail
	}
	if c.items == nil {
		c.items = map[string]Dashboard{}
	}
	c.items[key] = d
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	if c.fail != nil {
		return c.fail
	}
	c.items = nil
	c.invalidated++
	return nil
}
