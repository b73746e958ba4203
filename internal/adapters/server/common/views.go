package common

import (
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// ActivityView is the wire shape of one activity. Status is the effective status.
type ActivityView struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	StoredStatus   string     `json:"stored_status"`
	Priority       string     `json:"priority"`
	Category       string     `json:"category,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Comments       string     `json:"comments,omitempty"`
	LastUpdated    time.Time  `json:"last_updated"`
}

// NewActivityView renders a with the supplied effective status.
func NewActivityView(a domain.Activity, effective domain.Status) ActivityView {
	return ActivityView{
		ID:             a.ID,
		OwnerID:        a.OwnerID,
		Title:          a.Title,
		Description:    a.Description,
		Status:         string(effective),
		StoredStatus:   string(a.Status),
		Priority:       string(a.Priority),
		Category:       a.Category,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		EstimatedHours: a.EstimatedHours,
		ActualHours:    a.ActualHours,
		Comments:       a.Comments,
		LastUpdated:    a.LastUpdated,
	}
}

// ActivityViews renders activities through svc's effective status.
func ActivityViews(svc interface {
	EffectiveStatus(domain.Activity) domain.Status
}, activities []domain.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		out = append(out, NewActivityView(a, svc.EffectiveStatus(a)))
	}
	return out
}

// UserView is the wire shape of one user. The password hash never leaves the service.
type UserView struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Role       string     `json:"role"`
	FullName   string     `json:"full_name,omitempty"`
	Email      string     `json:"email,omitempty"`
	Department string     `json:"department,omitempty"`
	Status     string     `json:"status"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewUserView renders u.
func NewUserView(u domain.User) UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		Role:       string(u.Role),
		FullName:   u.FullName,
		Email:      u.Email,
		Department: u.Department,
		Status:     string(u.Status),
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
}

// UserViews renders users.
func UserViews(users []domain.User) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserView(u))
	}
	return out
}

// DepartmentView is the wire shape of one department.
type DepartmentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DepartmentViews renders departments.
func DepartmentViews(departments []domain.Department) []DepartmentView {
	out := make([]DepartmentView, 0, len(departments))
	for _, d := range departments {
		out = append(out, DepartmentView{ID: d.ID, Name: d.Name, Description: d.Description})
	}
	return out
}

// TimeEntryView is the wire shape of one ledger entry.
type TimeEntryView struct {
	ID          string    `json:"id"`
	ActivityID  string    `json:"activity_id"`
	AuthorID    string    `json:"author_id"`
	HoursSpent  float64   `json:"hours_spent"`
	Description string    `json:"description,omitempty"`
	TrackedAt   time.Time `json:"tracked_at"`
}

// TimeEntryViews renders entries.
func TimeEntryViews(entries []domain.TimeEntry) []TimeEntryView {
	out := make([]TimeEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewTimeEntryView(e))
	}
	return out
}

// NewTimeEntryView renders e.
func NewTimeEntryView(e domain.TimeEntry) TimeEntryView {
	return TimeEntryView{
		ID:          e.ID,
		ActivityID:  e.ActivityID,
		AuthorID:    e.AuthorID,
		HoursSpent:  e.HoursSpent,
		Description: e.Description,
		TrackedAt:   e.TrackedAt,
	}
}

// CommentView is the wire shape of one comment.
type CommentView struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommentViews renders comments.
func CommentViews(comments []domain.Comment) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewCommentView(c))
	}
	return out
}

// NewCommentView renders c.
func NewCommentView(c domain.Comment) CommentView {
	return CommentView{ID: c.ID, ActivityID: c.ActivityID, AuthorID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt}
}

// TagView is the wire shape of one tag.
type TagView struct {
	ID         string `json:"id"`
	ActivityID string `json:"activity_id"`
	Text       string `json:"text"`
}

// TagViews renders tags.
func TagViews(tags []domain.Tag) []TagView {
	out := make([]TagView, 0, len(tags))
	for _, t := range tags {
		out = append(out, NewTagView(t))
	}
	return out
}

// NewTagView renders t.
func NewTagView(t domain.Tag) TagView {
	return TagView{ID: t.ID, ActivityID: t.ActivityID, Text: t.Text}
}

// DependencyView is the wire shape of one depends-on edge.
type DependencyView struct {
	ActivityID  string    `json:"activity_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDependencyView renders d.
func NewDependencyView(d domain.Dependency) DependencyView {
	return DependencyView{ActivityID: d.ActivityID, DependsOnID: d.DependsOnID, CreatedAt: d.CreatedAt}
}

// ReminderView is the wire shape of one reminder.
type ReminderView struct {
	ID          string    `json:"id"`
	ActivityID  string    `json:"activity_id"`
	RecipientID string    `json:"recipient_id"`
	ReminderAt  time.Time `json:"reminder_at"`
	Channel     string    `json:"channel"`
	Sent        bool      `json:"sent"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewReminderView renders r.
func NewReminderView(r domain.Reminder) ReminderView {
	return ReminderView{
		ID:          r.ID,
		ActivityID:  r.ActivityID,
		RecipientID: r.RecipientID,
		ReminderAt:  r.ReminderAt,
		Channel:     string(r.Channel),
		Sent:        r.Sent,
		CreatedAt:   r.CreatedAt,
	}
}

// ReminderViews renders reminders.
func ReminderViews(reminders []domain.Reminder) []ReminderView {
	out := make([]ReminderView, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, NewReminderView(r))
	}
	return out
}

// AuditView is the wire shape of one audit entry.
type AuditView struct {
	ID        int64     `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditViews renders entries.
func AuditViews(entries []domain.AuditEntry) []AuditView {
	out := make([]AuditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditView{ID: e.ID, ActorID: e.ActorID, Action: string(e.Action), Details: e.Details, CreatedAt: e.CreatedAt})
	}
	return out
}
