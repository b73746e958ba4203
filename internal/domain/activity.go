package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of an activity.
type Status string

// Status values. StatusLate is derived at read time and never stored.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusLate       Status = "late"
)

var storedStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// AllStatuses lists every observable status in display order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusLate, StatusCompleted}
}

// NormalizeStatus canonicalizes raw status input, accepting "in-progress" spellings.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return Status(s)
}

// IsStoredStatus reports whether s may be persisted.
func IsStoredStatus(s Status) bool {
	return slices.Contains(storedStatuses, s)
}

// IsValidStatus reports whether s is any observable status, including late.
func IsValidStatus(s Status) bool {
	return IsStoredStatus(s) || s == StatusLate
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func NormalizePriority(raw string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(raw)))
}

func IsValidPriority(p Priority) bool {
	return slices.Contains(validPriorities, p)
}

// Activity is one trackable unit of work owned by a user.
type Activity struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	Status         Status
	Priority       Priority
	Category       string
	StartTime      time.Time
	EndTime        *time.Time
	EstimatedHours float64
	ActualHours    *float64
	Comments       string
	LastUpdated    time.Time
}

// ActivityInput holds input values for activity creation.
type ActivityInput struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	Status         Status
	Priority       Priority
	Category       string
	StartTime      time.Time
	EstimatedHours float64
	Comments       string
}

// NewActivity validates input and builds an activity. An empty status means in_progress
// and a zero start time means now. A completed initial status applies completion at now.
func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Comments = strings.TrimSpace(in.Comments)
	in.Status = NormalizeStatus(string(in.Status))
	in.Priority = NormalizePriority(string(in.Priority))

	if in.ID == "" || in.OwnerID == "" {
		return Activity{}, ErrInvalidID
	}
	if in.Title == "" {
		return Activity{}, ErrInvalidTitle
	}
	if in.Description == "" {
		return Activity{}, ErrInvalidDescription
	}
	if !validEstimate(in.EstimatedHours) {
		return Activity{}, ErrInvalidHours
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !IsValidPriority(in.Priority) {
		return Activity{}, ErrInvalidPriority
	}
	if in.Status == "" {
		in.Status = StatusInProgress
	}
	if !IsStoredStatus(in.Status) {
		return Activity{}, ErrInvalidStatus
	}
	start := in.StartTime
	if start.IsZero() {
		start = now
	}

	a := Activity{
		ID:             in.ID,
		OwnerID:        in.OwnerID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		Category:       in.Category,
		StartTime:      start.UTC(),
		EstimatedHours: in.EstimatedHours,
		Comments:       in.Comments,
		LastUpdated:    now.UTC(),
	}
	if a.Status == StatusCompleted {
		a.Status = StatusInProgress
		a.Complete(now, nil)
	}
	return a, nil
}

func validEstimate(hours float64) bool {
	return hours > 0 && !math.IsInf(hours, 0) && !math.IsNaN(hours)
}

// ActivityPatch carries the mutable fields of an update. Nil fields are left untouched.
// Status is not applied here; lifecycle changes go through Complete and Reopen.
type ActivityPatch struct {
	Title          *string
	Description    *string
	Priority       *Priority
	Category       *string
	Status         *Status
	EstimatedHours *float64
	Comments       *string
}

// ApplyDetails validates and applies the non-status fields of p.
func (a *Activity) ApplyDetails(p ActivityPatch, now time.Time) error {
	next := *a
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
		if next.Title == "" {
			return ErrInvalidTitle
		}
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
		if next.Description == "" {
			return ErrInvalidDescription
		}
	}
	if p.Priority != nil {
		next.Priority = NormalizePriority(string(*p.Priority))
		if !IsValidPriority(next.Priority) {
			return ErrInvalidPriority
		}
	}
	if p.Category != nil {
		next.Category = strings.TrimSpace(*p.Category)
	}
	if p.EstimatedHours != nil {
		if !validEstimate(*p.EstimatedHours) {
			return ErrInvalidHours
		}
		next.EstimatedHours = *p.EstimatedHours
	}
	if p.Comments != nil {
		next.Comments = strings.TrimSpace(*p.Comments)
	}
	next.LastUpdated = now.UTC()
	*a = next
	return nil
}

// Complete marks the activity completed at now. trackedHours, when non-nil, is the ledger
// total and takes precedence over elapsed wall-clock hours. It reports false and changes
// nothing when the activity is already completed.
func (a *Activity) Complete(now time.Time, trackedHours *float64) bool {
	if a.Status == StatusCompleted {
		return false
	}
	end := now.UTC()
	hours := ElapsedHours(a.StartTime, end)
	if trackedHours != nil {
		hours = RoundHours(*trackedHours)
	}
	a.Status = StatusCompleted
	a.EndTime = &end
	a.ActualHours = &hours
	a.LastUpdated = end
	return true
}

// Reopen moves the activity to an open status, clearing end_time. Actual hours are kept.
func (a *Activity) Reopen(status Status, now time.Time) error {
	status = NormalizeStatus(string(status))
	if status != StatusPending && status != StatusInProgress {
		return ErrInvalidStatus
	}
	a.Status = status
	a.EndTime = nil
	a.LastUpdated = now.UTC()
	return nil
}

// SetActualHours records a ledger-derived total.
func (a *Activity) SetActualHours(hours float64, now time.Time) {
	hours = RoundHours(hours)
	a.ActualHours = &hours
	a.LastUpdated = now.UTC()
}

// DueAt is the time the activity is expected to finish.
func (a Activity) DueAt(grace time.Duration) time.Time {
	return a.StartTime.Add(time.Duration(a.EstimatedHours*float64(time.Hour)) + grace)
}

// EffectiveStatus reports late for open activities past their due time.
func (a Activity) EffectiveStatus(now time.Time, grace time.Duration) Status {
	if a.Status == StatusCompleted {
		return StatusCompleted
	}
	if now.After(a.DueAt(grace)) {
		return StatusLate
	}
	return a.Status
}

// IsCompleted reports whether the stored status is completed.
func (a Activity) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// ElapsedHours returns the wall-clock hours between start and end rounded to 2 decimals.
func ElapsedHours(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return RoundHours(d.Hours())
}

// RoundHours rounds to 2 decimal places.
func RoundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}
