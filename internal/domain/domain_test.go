package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewActivityDefaults(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	a, err := NewActivity(ActivityInput{
		ID:             "a1",
		OwnerID:        "u1",
		Title:          "  Write report ",
		Description:    " quarterly ",
		EstimatedHours: 2,
	}, now)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	if a.Status != StatusInProgress {
		t.Fatalf("status = %q, want %q", a.Status, StatusInProgress)
	}
	if a.Priority != PriorityMedium {
		t.Fatalf("priority = %q, want %q", a.Priority, PriorityMedium)
	}
	if !a.StartTime.Equal(now) {
		t.Fatalf("start_time = %v, want %v", a.StartTime, now)
	}
	if a.Title != "Write report" || a.Description != "quarterly" {
		t.Fatalf("unexpected trimmed fields %q %q", a.Title, a.Description)
	}
	if a.EndTime != nil || a.ActualHours != nil {
		t.Fatalf("expected open activity without end/actual, got %#v", a)
	}
}

func TestNewActivityValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	base := ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", EstimatedHours: 1}

	cases := []struct {
		name   string
		mutate func(*ActivityInput)
		want   error
	}{
		{"empty title", func(in *ActivityInput) { in.Title = "  " }, ErrInvalidTitle},
		{"empty description", func(in *ActivityInput) { in.Description = "" }, ErrInvalidDescription},
		{"zero estimate", func(in *ActivityInput) { in.EstimatedHours = 0 }, ErrInvalidHours},
		{"negative estimate", func(in *ActivityInput) { in.EstimatedHours = -1 }, ErrInvalidHours},
		{"late status", func(in *ActivityInput) { in.Status = StatusLate }, ErrInvalidStatus},
		{"bad priority", func(in *ActivityInput) { in.Priority = "critical" }, ErrInvalidPriority},
		{"missing owner", func(in *ActivityInput) { in.OwnerID = "" }, ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := NewActivity(in, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("NewActivity() error = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewActivityCompletedInitialStatus(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	a, err := NewActivity(ActivityInput{
		ID:             "a1",
		OwnerID:        "u1",
		Title:          "t",
		Description:    "d",
		Status:         StatusCompleted,
		StartTime:      now.Add(-90 * time.Minute),
		EstimatedHours: 1,
	}, now)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	if a.Status != StatusCompleted || a.EndTime == nil || !a.EndTime.Equal(now) {
		t.Fatalf("expected completed activity ending now, got %#v", a)
	}
	if a.ActualHours == nil || *a.ActualHours != 1.5 {
		t.Fatalf("actual_hours = %v, want 1.5", a.ActualHours)
	}
}

func TestActivityCompleteIsIdempotent(t *testing.T) {
	start := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	a, err := NewActivity(ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", StartTime: start, EstimatedHours: 4}, start)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	first := start.Add(2*time.Hour + 20*time.Minute)
	if !a.Complete(first, nil) {
		t.Fatal("Complete() = false, want true on first call")
	}
	if got := *a.ActualHours; got != 2.33 {
		t.Fatalf("actual_hours = %v, want 2.33", got)
	}
	if a.Complete(first.Add(time.Hour), nil) {
		t.Fatal("Complete() = true, want false when already completed")
	}
	if !a.EndTime.Equal(first) {
		t.Fatalf("end_time changed to %v", a.EndTime)
	}
}

func TestActivityCompleteLedgerPrecedence(t *testing.T) {
	start := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	a, err := NewActivity(ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", StartTime: start, EstimatedHours: 2}, start)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	tracked := 2.5
	a.Complete(start.Add(10*time.Hour), &tracked)
	if *a.ActualHours != 2.5 {
		t.Fatalf("actual_hours = %v, want 2.5", *a.ActualHours)
	}
}

func TestActivityReopenKeepsActualHours(t *testing.T) {
	start := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	a, _ := NewActivity(ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", StartTime: start, EstimatedHours: 2}, start)
	a.Complete(start.Add(time.Hour), nil)
	if err := a.Reopen(StatusPending, start.Add(2*time.Hour)); err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if a.EndTime != nil {
		t.Fatalf("end_time = %v, want nil", a.EndTime)
	}
	if a.ActualHours == nil || *a.ActualHours != 1 {
		t.Fatalf("actual_hours = %v, want 1", a.ActualHours)
	}
	if err := a.Reopen(StatusCompleted, start); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("Reopen(completed) error = %v, want ErrInvalidStatus", err)
	}
}

func TestActivityApplyDetailsIsAtomic(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	a, _ := NewActivity(ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", EstimatedHours: 2}, now)
	title := "new"
	zero := 0.0
	err := a.ApplyDetails(ActivityPatch{Title: &title, EstimatedHours: &zero}, now.Add(time.Minute))
	if !errors.Is(err, ErrInvalidHours) {
		t.Fatalf("ApplyDetails() error = %v, want ErrInvalidHours", err)
	}
	if a.Title != "t" {
		t.Fatalf("title changed to %q on failed patch", a.Title)
	}
	if err := a.ApplyDetails(ActivityPatch{Title: &title}, now.Add(time.Minute)); err != nil {
		t.Fatalf("ApplyDetails() error = %v", err)
	}
	if a.Title != "new" || !a.LastUpdated.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected activity after patch %#v", a)
	}
}

func TestActivityEffectiveStatus(t *testing.T) {
	start := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	a, _ := NewActivity(ActivityInput{ID: "a1", OwnerID: "u1", Title: "t", Description: "d", StartTime: start, EstimatedHours: 2}, start)

	if got := a.EffectiveStatus(start.Add(time.Hour), 0); got != StatusInProgress {
		t.Fatalf("EffectiveStatus() = %q, want in_progress", got)
	}
	if got := a.EffectiveStatus(start.Add(3*time.Hour), 0); got != StatusLate {
		t.Fatalf("EffectiveStatus() = %q, want late", got)
	}
	if got := a.EffectiveStatus(start.Add(3*time.Hour), 2*time.Hour); got != StatusInProgress {
		t.Fatalf("EffectiveStatus() with grace = %q, want in_progress", got)
	}
	a.Complete(start.Add(5*time.Hour), nil)
	if got := a.EffectiveStatus(start.Add(6*time.Hour), 0); got != StatusCompleted {
		t.Fatalf("EffectiveStatus() = %q, want completed", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus(" In-Progress "); got != StatusInProgress {
		t.Fatalf("NormalizeStatus() = %q, want in_progress", got)
	}
}

func TestNewTimeEntryValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := NewTimeEntry(TimeEntryInput{ID: "t1", ActivityID: "a1", AuthorID: "u1", HoursSpent: -0.5}, now); !errors.Is(err, ErrInvalidHours) {
		t.Fatalf("NewTimeEntry() error = %v, want ErrInvalidHours", err)
	}
	entry, err := NewTimeEntry(TimeEntryInput{ID: "t1", ActivityID: "a1", AuthorID: "u1", HoursSpent: 0}, now)
	if err != nil {
		t.Fatalf("NewTimeEntry() error = %v", err)
	}
	if entry.HoursSpent != 0 {
		t.Fatalf("hours = %v, want 0", entry.HoursSpent)
	}
}

func TestSumHours(t *testing.T) {
	got := SumHours([]TimeEntry{{HoursSpent: 1.25}, {HoursSpent: 1.0}, {HoursSpent: 0.256}})
	if got != 2.51 {
		t.Fatalf("SumHours() = %v, want 2.51", got)
	}
	if got := SumHours(nil); got != 0 {
		t.Fatalf("SumHours(nil) = %v, want 0", got)
	}
}

func TestNewReminderDefaults(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	r, err := NewReminder(ReminderInput{ID: "r1", ActivityID: "a1", RecipientID: "u1", ReminderAt: now.Add(time.Hour)}, now)
	if err != nil {
		t.Fatalf("NewReminder() error = %v", err)
	}
	if r.Channel != ReminderChannelInApp || r.Sent {
		t.Fatalf("unexpected reminder %#v", r)
	}
	if _, err := NewReminder(ReminderInput{ID: "r1", ActivityID: "a1", RecipientID: "u1", ReminderAt: now, Channel: "pager"}, now); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("NewReminder() error = %v, want ErrInvalidChannel", err)
	}
}

func TestNewUserValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	u, err := NewUser(UserInput{ID: "u1", Username: " Alice ", PasswordHash: "hash"}, now)
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	if u.Username != "alice" || u.Role != RoleCommon || u.Status != UserStatusActive {
		t.Fatalf("unexpected user defaults %#v", u)
	}
	if _, err := NewUser(UserInput{ID: "u1", Username: "bob", PasswordHash: "hash", Role: "owner"}, now); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("NewUser() error = %v, want ErrInvalidRole", err)
	}
	if _, err := NewUser(UserInput{ID: "u1", Username: "bob smith", PasswordHash: "hash"}, now); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("NewUser() error = %v, want ErrInvalidUsername", err)
	}
	if _, err := NewUser(UserInput{ID: "u1", Username: "bob", PasswordHash: "hash", Email: "nope"}, now); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("NewUser() error = %v, want ErrInvalidEmail", err)
	}
}

func TestRoleCanManageAll(t *testing.T) {
	if RoleCommon.CanManageAll() {
		t.Fatal("common role should not manage all activities")
	}
	if !RoleSupervisor.CanManageAll() || !RoleAdmin.CanManageAll() {
		t.Fatal("supervisor and admin should manage all activities")
	}
}

func TestNewAuditEntryValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := NewAuditEntry("", AuditLogin, "", now); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("NewAuditEntry() error = %v, want ErrInvalidID", err)
	}
	if _, err := NewAuditEntry("u1", "", "", now); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("NewAuditEntry() error = %v, want ErrInvalidAction", err)
	}
}
