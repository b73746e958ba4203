package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// AddComment appends a comment authored by the actor.
func (s *Service) AddComment(ctx context.Context, activityID, text string) (domain.Comment, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := domain.NewComment(s.idGen(), activityID, actor.UserID, text, s.clock())
	if err != nil {
		return domain.Comment{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, comment.ActivityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditAddComment, detailPairs("activity", comment.ActivityID, "comment", comment.ID))
	})
	if err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

// ListComments returns comments oldest first.
func (s *Service) ListComments(ctx context.Context, activityID string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.readAttached(ctx, activityID, func(ctx context.Context, id string) error {
		comments, err := s.repo.ListComments(ctx, id)
		out = comments
		return err
	})
	return out, err
}

// AddTag attaches a tag to an activity.
func (s *Service) AddTag(ctx context.Context, activityID, text string) (domain.Tag, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	tag, err := domain.NewTag(s.idGen(), activityID, text)
	if err != nil {
		return domain.Tag{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, tag.ActivityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if err := tx.CreateTag(ctx, tag); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditAddTag, detailPairs("activity", tag.ActivityID, "tag", strconv.Quote(tag.Text)))
	})
	if err != nil {
		return domain.Tag{}, err
	}
	return tag, nil
}

// ListTags returns the tags of an activity.
func (s *Service) ListTags(ctx context.Context, activityID string) ([]domain.Tag, error) {
	var out []domain.Tag
	err := s.readAttached(ctx, activityID, func(ctx context.Context, id string) error {
		tags, err := s.repo.ListTags(ctx, id)
		out = tags
		return err
	})
	return out, err
}

// AddReminderInput holds input values for reminder creation.
type AddReminderInput struct {
	ActivityID string
	// RecipientID defaults to the actor.
	RecipientID string
	ReminderAt  time.Time
	Channel     domain.ReminderChannel
}

// AddReminder schedules a reminder for an activity.
func (s *Service) AddReminder(ctx context.Context, in AddReminderInput) (domain.Reminder, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Reminder{}, err
	}
	recipientID := strings.TrimSpace(in.RecipientID)
	if recipientID == "" {
		recipientID = actor.UserID
	}
	reminder, err := domain.NewReminder(domain.ReminderInput{
		ID:          s.idGen(),
		ActivityID:  in.ActivityID,
		RecipientID: recipientID,
		ReminderAt:  in.ReminderAt,
		Channel:     in.Channel,
	}, s.clock())
	if err != nil {
		return domain.Reminder{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, reminder.ActivityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, reminder.RecipientID); err != nil {
			return err
		}
		if err := tx.CreateReminder(ctx, reminder); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditAddReminder, detailPairs(
			"activity", reminder.ActivityID,
			"reminder", reminder.ID,
			"recipient", reminder.RecipientID,
		))
	})
	if err != nil {
		return domain.Reminder{}, err
	}
	return reminder, nil
}

// ListReminders returns the reminders of an activity.
func (s *Service) ListReminders(ctx context.Context, activityID string) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := s.readAttached(ctx, activityID, func(ctx context.Context, id string) error {
		reminders, err := s.repo.ListReminders(ctx, id)
		out = reminders
		return err
	})
	return out, err
}

// DueReminders lists unsent reminders due at or before the given time for an
// external scheduler. Supervisors and admins only.
func (s *Service) DueReminders(ctx context.Context, before time.Time) ([]domain.Reminder, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManageAll() {
		return nil, ErrForbidden
	}
	if before.IsZero() {
		before = s.clock()
	}
	var out []domain.Reminder
	err = s.read(ctx, func(ctx context.Context) error {
		reminders, err := s.repo.ListDueReminders(ctx, before.UTC())
		out = reminders
		return err
	})
	return out, err
}

// MarkReminderSent flags a reminder as delivered. Allowed for its recipient, supervisors and admins.
func (s *Service) MarkReminderSent(ctx context.Context, id string) (domain.Reminder, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Reminder{}, err
	}
	id = strings.TrimSpace(id)
	var out domain.Reminder
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		reminder, err := tx.GetReminder(ctx, id)
		if err != nil {
			return err
		}
		if reminder.RecipientID != actor.UserID && !actor.Role.CanManageAll() {
			return ErrForbidden
		}
		if reminder.Sent {
			out = reminder
			return nil
		}
		if err := tx.MarkReminderSent(ctx, id); err != nil {
			return err
		}
		reminder.Sent = true
		out = reminder
		return s.audit(ctx, tx, actor.UserID, domain.AuditReminderSent, detailPairs("reminder", id))
	})
	if err != nil {
		return domain.Reminder{}, err
	}
	return out, nil
}

// readAttached checks visibility of the parent activity before running fn.
func (s *Service) readAttached(ctx context.Context, activityID string, fn func(context.Context, string) error) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	activityID = strings.TrimSpace(activityID)
	return s.read(ctx, func(ctx context.Context) error {
		activity, err := s.repo.GetActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, s.repo, actor, activity.OwnerID); err != nil {
			return err
		}
		return fn(ctx, activityID)
	})
}
