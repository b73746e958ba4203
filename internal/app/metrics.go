package app

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// Scope narrows metric and list reads. Zero values do not filter. From is inclusive and
// To exclusive, both applied to start_time.
type Scope struct {
	Department string
	OwnerID    string
	// Statuses match the effective status, so late is accepted here.
	Statuses []domain.Status
	From     time.Time
	To       time.Time

	// completedSince keeps only activities completed at or after this instant.
	completedSince time.Time
}

// cacheKey renders a stable key for the scope as seen by actor.
func (sc Scope) cacheKey(actor Actor, windowDays int) string {
	statuses := make([]string, 0, len(sc.Statuses))
	for _, st := range sc.Statuses {
		statuses = append(statuses, string(st))
	}
	slices.Sort(statuses)
	return fmt.Sprintf("dashboard:%s:%s:%s:%s:%s:%d:%d:%d",
		actor.UserID,
		actor.Role,
		sc.Department,
		sc.OwnerID,
		strings.Join(statuses, ","),
		unixOrZero(sc.From),
		unixOrZero(sc.To),
		windowDays,
	)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// ProductivityPoint is the number of activities completed on one calendar date.
type ProductivityPoint struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

// DepartmentStat summarizes activity completion for one department.
type DepartmentStat struct {
	Department     string  `json:"department"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// WorkloadEntry is the count of in-progress activities owned by one user.
type WorkloadEntry struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	InProgress int    `json:"in_progress"`
}

// TimelineEntry places one activity on a timeline with its effective status.
type TimelineEntry struct {
	ActivityID string        `json:"activity_id"`
	Title      string        `json:"title"`
	OwnerID    string        `json:"owner_id"`
	Start      time.Time     `json:"start"`
	End        *time.Time    `json:"end,omitempty"`
	DueAt      time.Time     `json:"due_at"`
	Status     domain.Status `json:"status"`
}

// Dashboard bundles the summary metrics for one scope.
type Dashboard struct {
	TotalActivities    int                   `json:"total_activities"`
	ActivitiesToday    int                   `json:"activities_today"`
	CompletionRate     float64               `json:"completion_rate"`
	StatusDistribution map[domain.Status]int `json:"status_distribution"`
	Productivity       []ProductivityPoint   `json:"productivity"`
	Departments        []DepartmentStat      `json:"departments"`
	Workload           []WorkloadEntry       `json:"workload"`
	ActiveUsersToday   int                   `json:"active_users_today"`
	GeneratedAt        time.Time             `json:"generated_at"`
}

// EffectiveStatus reports the status callers should display, deriving late.
func (s *Service) EffectiveStatus(a domain.Activity) domain.Status {
	return a.EffectiveStatus(s.clock(), s.lateGrace)
}

// scopedActivities loads activities in scope, narrowed by role. Common users only see their
// own activities and supervisors with a department only see that department.
func (s *Service) scopedActivities(ctx context.Context, repo Repository, actor Actor, scope Scope) ([]domain.Activity, error) {
	scope.Department = strings.TrimSpace(scope.Department)
	scope.OwnerID = strings.TrimSpace(scope.OwnerID)
	switch actor.Role {
	case domain.RoleCommon:
		if scope.OwnerID != "" && scope.OwnerID != actor.UserID {
			return nil, ErrForbidden
		}
		scope.OwnerID = actor.UserID
	case domain.RoleSupervisor:
		if actor.Department != "" {
			if scope.Department != "" && scope.Department != actor.Department {
				return nil, ErrForbidden
			}
			scope.Department = actor.Department
		}
	}
	wanted := make([]domain.Status, 0, len(scope.Statuses))
	for _, raw := range scope.Statuses {
		st := domain.NormalizeStatus(string(raw))
		if !domain.IsValidStatus(st) {
			return nil, domain.ErrInvalidStatus
		}
		wanted = append(wanted, st)
	}

	filter := ActivityFilter{
		OwnerID:    scope.OwnerID,
		Department: scope.Department,
		Statuses:   storedStatuses(wanted),
		StartFrom:  scope.From,
		StartTo:    scope.To,
	}
	if !scope.completedSince.IsZero() {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, domain.StatusCompleted) {
			return nil, nil
		}
		filter.Statuses = []domain.Status{domain.StatusCompleted}
		filter.EndFrom = scope.completedSince
	}
	activities, err := repo.ListActivities(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(wanted) == 0 {
		return activities, nil
	}
	now := s.clock()
	out := activities[:0]
	for _, a := range activities {
		if slices.Contains(wanted, a.EffectiveStatus(now, s.lateGrace)) {
			out = append(out, a)
		}
	}
	return out, nil
}

// storedStatuses maps effective statuses onto the persisted ones that can produce them.
// Late is derived from pending and in_progress.
func storedStatuses(wanted []domain.Status) []domain.Status {
	var out []domain.Status
	add := func(st domain.Status) {
		if !slices.Contains(out, st) {
			out = append(out, st)
		}
	}
	for _, st := range wanted {
		if st == domain.StatusLate {
			add(domain.StatusPending)
			add(domain.StatusInProgress)
			continue
		}
		add(st)
	}
	return out
}

// scopedRead loads the scoped activities for the context actor and passes them to fn.
func (s *Service) scopedRead(ctx context.Context, scope Scope, fn func(context.Context, []domain.Activity) error) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	return s.read(ctx, func(ctx context.Context) error {
		activities, err := s.scopedActivities(ctx, s.repo, actor, scope)
		if err != nil {
			return err
		}
		return fn(ctx, activities)
	})
}

// TotalActivities counts activities in scope.
func (s *Service) TotalActivities(ctx context.Context, scope Scope) (int, error) {
	var n int
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		n = len(activities)
		return nil
	})
	return n, err
}

// ActivitiesToday counts activities in scope that start on the current local date.
func (s *Service) ActivitiesToday(ctx context.Context, scope Scope) (int, error) {
	var n int
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		n = countStartedOn(activities, s.today())
		return nil
	})
	return n, err
}

// CompletionRate returns the completed percentage in scope rounded to 2 decimals, 0 when empty.
func (s *Service) CompletionRate(ctx context.Context, scope Scope) (float64, error) {
	var rate float64
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		rate = completionRate(activities)
		return nil
	})
	return rate, err
}

// ProductivitySeries counts completions per local calendar date over the trailing window,
// oldest first. windowDays <= 0 uses the configured window.
func (s *Service) ProductivitySeries(ctx context.Context, scope Scope, windowDays int) ([]ProductivityPoint, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	scope.completedSince = s.windowStart(windowDays)
	var out []ProductivityPoint
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		out = s.productivity(activities, windowDays)
		return nil
	})
	return out, err
}

// StatusDistribution counts activities in scope by effective status. Every status is present.
func (s *Service) StatusDistribution(ctx context.Context, scope Scope) (map[domain.Status]int, error) {
	var out map[domain.Status]int
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		out = s.statusDistribution(activities)
		return nil
	})
	return out, err
}

// DepartmentPerformance reports completion per owner department, sorted by name. Activities
// whose owner has no department are left out.
func (s *Service) DepartmentPerformance(ctx context.Context) ([]DepartmentStat, error) {
	var out []DepartmentStat
	err := s.scopedRead(ctx, Scope{}, func(ctx context.Context, activities []domain.Activity) error {
		users, err := s.repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		out = departmentPerformance(activities, users)
		return nil
	})
	return out, err
}

// TeamWorkload counts in_progress activities per owner, busiest first.
func (s *Service) TeamWorkload(ctx context.Context, scope Scope) ([]WorkloadEntry, error) {
	var out []WorkloadEntry
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		users, err := s.repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		out = teamWorkload(activities, users)
		return nil
	})
	return out, err
}

// ActiveUsersToday counts users whose last login falls on the current local date.
// Supervisors and admins only.
func (s *Service) ActiveUsersToday(ctx context.Context) (int, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	if !actor.Role.CanManageAll() {
		return 0, ErrForbidden
	}
	var n int
	err = s.read(ctx, func(ctx context.Context) error {
		users, err := s.repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		n = countLoggedInOn(users, s.today())
		return nil
	})
	return n, err
}

// Timeline lists activities in scope ordered by start time.
func (s *Service) Timeline(ctx context.Context, scope Scope) ([]TimelineEntry, error) {
	var out []TimelineEntry
	err := s.scopedRead(ctx, scope, func(ctx context.Context, activities []domain.Activity) error {
		out = s.timeline(activities)
		return nil
	})
	return out, err
}

// Dashboard computes the summary bundle for scope, served from the cache when present.
func (s *Service) Dashboard(ctx context.Context, scope Scope) (Dashboard, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	key := scope.cacheKey(actor, s.windowDays)
	if s.cache != nil {
		cached, ok, err := s.cache.GetDashboard(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("dashboard cache read failed", "key", key, "err", err)
		case ok:
			return cached, nil
		}
	}

	var out Dashboard
	err = s.read(ctx, func(ctx context.Context) error {
		activities, err := s.scopedActivities(ctx, s.repo, actor, scope)
		if err != nil {
			return err
		}
		users, err := s.repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		today := s.today()
		out = Dashboard{
			TotalActivities:    len(activities),
			ActivitiesToday:    countStartedOn(activities, today),
			CompletionRate:     completionRate(activities),
			StatusDistribution: s.statusDistribution(activities),
			Productivity:       s.productivity(activities, s.windowDays),
			Departments:        departmentPerformance(activities, users),
			Workload:           teamWorkload(activities, users),
			GeneratedAt:        s.clock().UTC(),
		}
		if actor.Role.CanManageAll() {
			out.ActiveUsersToday = countLoggedInOn(users, today)
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetDashboard(ctx, key, out); err != nil {
			s.logger.Warn("dashboard cache write failed", "key", key, "err", err)
		}
	}
	return out, nil
}

// today returns local midnight of the current date.
func (s *Service) today() time.Time {
	return startOfDay(s.clock(), s.loc)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func countStartedOn(activities []domain.Activity, day time.Time) int {
	next := day.AddDate(0, 0, 1)
	n := 0
	for _, a := range activities {
		if !a.StartTime.Before(day) && a.StartTime.Before(next) {
			n++
		}
	}
	return n
}

func countLoggedInOn(users []domain.User, day time.Time) int {
	next := day.AddDate(0, 0, 1)
	n := 0
	for _, u := range users {
		if u.LastLogin != nil && !u.LastLogin.Before(day) && u.LastLogin.Before(next) {
			n++
		}
	}
	return n
}

func completionRate(activities []domain.Activity) float64 {
	if len(activities) == 0 {
		return 0
	}
	completed := 0
	for _, a := range activities {
		if a.IsCompleted() {
			completed++
		}
	}
	return percent(completed, len(activities))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}

// windowStart is local midnight of the first day in a trailing window of windowDays.
func (s *Service) windowStart(windowDays int) time.Time {
	return s.today().AddDate(0, 0, -(windowDays - 1))
}

func (s *Service) productivity(activities []domain.Activity, windowDays int) []ProductivityPoint {
	from := s.windowStart(windowDays)
	counts := map[string]int{}
	for _, a := range activities {
		if !a.IsCompleted() || a.EndTime == nil || a.EndTime.Before(from) {
			continue
		}
		counts[a.EndTime.In(s.loc).Format(time.DateOnly)]++
	}
	out := make([]ProductivityPoint, 0, len(counts))
	for date, n := range counts {
		out = append(out, ProductivityPoint{Date: date, Completed: n})
	}
	slices.SortFunc(out, func(a, b ProductivityPoint) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

func (s *Service) statusDistribution(activities []domain.Activity) map[domain.Status]int {
	out := make(map[domain.Status]int, len(domain.AllStatuses()))
	for _, st := range domain.AllStatuses() {
		out[st] = 0
	}
	now := s.clock()
	for _, a := range activities {
		out[a.EffectiveStatus(now, s.lateGrace)]++
	}
	return out
}

func departmentPerformance(activities []domain.Activity, users []domain.User) []DepartmentStat {
	deptOf := make(map[string]string, len(users))
	for _, u := range users {
		deptOf[u.ID] = u.Department
	}
	byDept := map[string]*DepartmentStat{}
	for _, a := range activities {
		dept := deptOf[a.OwnerID]
		if dept == "" {
			continue
		}
		stat, ok := byDept[dept]
		if !ok {
			stat = &DepartmentStat{Department: dept}
			byDept[dept] = stat
		}
		stat.Total++
		if a.IsCompleted() {
			stat.Completed++
		}
	}
	out := make([]DepartmentStat, 0, len(byDept))
	for _, stat := range byDept {
		stat.CompletionRate = percent(stat.Completed, stat.Total)
		out = append(out, *stat)
	}
	slices.SortFunc(out, func(a, b DepartmentStat) int { return cmp.Compare(a.Department, b.Department) })
	return out
}

func teamWorkload(activities []domain.Activity, users []domain.User) []WorkloadEntry {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	counts := map[string]int{}
	for _, a := range activities {
		if a.Status == domain.StatusInProgress {
			counts[a.OwnerID]++
		}
	}
	out := make([]WorkloadEntry, 0, len(counts))
	for id, n := range counts {
		out = append(out, WorkloadEntry{UserID: id, Username: names[id], InProgress: n})
	}
	slices.SortFunc(out, func(a, b WorkloadEntry) int {
		if c := cmp.Compare(b.InProgress, a.InProgress); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return out
}

func (s *Service) timeline(activities []domain.Activity) []TimelineEntry {
	now := s.clock()
	out := make([]TimelineEntry, 0, len(activities))
	for _, a := range activities {
		out = append(out, TimelineEntry{
			ActivityID: a.ID,
			Title:      a.Title,
			OwnerID:    a.OwnerID,
			Start:      a.StartTime,
			End:        a.EndTime,
			DueAt:      a.DueAt(s.lateGrace),
			Status:     a.EffectiveStatus(now, s.lateGrace),
		})
	}
	slices.SortStableFunc(out, func(a, b TimelineEntry) int { return a.Start.Compare(b.Start) })
	return out
}
