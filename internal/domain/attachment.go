package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Tag labels an activity. Duplicate texts are allowed.
type Tag struct {
	ID         string
	ActivityID string
	Text       string
}

// NewTag validates and builds a tag.
func NewTag(id, activityID, text string) (Tag, error) {
	id = strings.TrimSpace(id)
	activityID = strings.TrimSpace(activityID)
	text = strings.TrimSpace(text)
	if id == "" || activityID == "" {
		return Tag{}, ErrInvalidID
	}
	if text == "" {
		return Tag{}, ErrInvalidText
	}
	return Tag{ID: id, ActivityID: activityID, Text: text}, nil
}

// Comment is one append-only note on an activity.
type Comment struct {
	ID         string
	ActivityID string
	AuthorID   string
	Text       string
	CreatedAt  time.Time
}

// NewComment validates and builds a comment.
func NewComment(id, activityID, authorID, text string, now time.Time) (Comment, error) {
	id = strings.TrimSpace(id)
	activityID = strings.TrimSpace(activityID)
	authorID = strings.TrimSpace(authorID)
	text = strings.TrimSpace(text)
	if id == "" || activityID == "" || authorID == "" {
		return Comment{}, ErrInvalidID
	}
	if text == "" {
		return Comment{}, ErrInvalidText
	}
	return Comment{
		ID:         id,
		ActivityID: activityID,
		AuthorID:   authorID,
		Text:       text,
		CreatedAt:  now.UTC(),
	}, nil
}

// TimeEntry records hours spent on an activity.
type TimeEntry struct {
	ID          string
	ActivityID  string
	AuthorID    string
	HoursSpent  float64
	Description string
	TrackedAt   time.Time
}

// TimeEntryInput holds input values for time entry creation.
type TimeEntryInput struct {
	ID          string
	ActivityID  string
	AuthorID    string
	HoursSpent  float64
	Description string
}

// NewTimeEntry validates and builds a time entry. Zero hours are accepted.
func NewTimeEntry(in TimeEntryInput, now time.Time) (TimeEntry, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ActivityID = strings.TrimSpace(in.ActivityID)
	in.AuthorID = strings.TrimSpace(in.AuthorID)
	if in.ID == "" || in.ActivityID == "" || in.AuthorID == "" {
		return TimeEntry{}, ErrInvalidID
	}
	if in.HoursSpent < 0 || math.IsNaN(in.HoursSpent) || math.IsInf(in.HoursSpent, 0) {
		return TimeEntry{}, ErrInvalidHours
	}
	return TimeEntry{
		ID:          in.ID,
		ActivityID:  in.ActivityID,
		AuthorID:    in.AuthorID,
		HoursSpent:  in.HoursSpent,
		Description: strings.TrimSpace(in.Description),
		TrackedAt:   now.UTC(),
	}, nil
}

// SumHours totals the hours of entries.
func SumHours(entries []TimeEntry) float64 {
	var total float64
	for _, entry := range entries {
		total += entry.HoursSpent
	}
	return RoundHours(total)
}

// ReminderChannel names how a reminder is delivered by the external scheduler.
type ReminderChannel string

const (
	ReminderChannelEmail ReminderChannel = "email"
	ReminderChannelInApp ReminderChannel = "in_app"
)

var validReminderChannels = []ReminderChannel{ReminderChannelEmail, ReminderChannelInApp}

// Reminder schedules a notification about an activity.
type Reminder struct {
	ID          string
	ActivityID  string
	RecipientID string
	ReminderAt  time.Time
	Channel     ReminderChannel
	Sent        bool
	CreatedAt   time.Time
}

// ReminderInput holds input values for reminder creation.
type ReminderInput struct {
	ID          string
	ActivityID  string
	RecipientID string
	ReminderAt  time.Time
	Channel     ReminderChannel
}

// NewReminder validates and builds an unsent reminder. Channel defaults to in_app.
func NewReminder(in ReminderInput, now time.Time) (Reminder, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ActivityID = strings.TrimSpace(in.ActivityID)
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	in.Channel = ReminderChannel(strings.ToLower(strings.TrimSpace(string(in.Channel))))
	if in.ID == "" || in.ActivityID == "" || in.RecipientID == "" {
		return Reminder{}, ErrInvalidID
	}
	if in.ReminderAt.IsZero() {
		return Reminder{}, ErrInvalidReminderTime
	}
	if in.Channel == "" {
		in.Channel = ReminderChannelInApp
	}
	if !slices.Contains(validReminderChannels, in.Channel) {
		return Reminder{}, ErrInvalidChannel
	}
	return Reminder{
		ID:          in.ID,
		ActivityID:  in.ActivityID,
		RecipientID: in.RecipientID,
		ReminderAt:  in.ReminderAt.UTC(),
		Channel:     in.Channel,
		CreatedAt:   now.UTC(),
	}, nil
}
