package sqlite

import (
	"context"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// CreateTag creates tag.
func (r *Repository) CreateTag(ctx context.Context, t domain.Tag) error {
	return r.execWrite(ctx, `INSERT INTO activity_tags(id, activity_id, tag) VALUES (?, ?, ?)`, t.ID, t.ActivityID, t.Text)
}

// ListTags lists tags.
func (r *Repository) ListTags(ctx context.Context, activityID string) ([]domain.Tag, error) {
	return queryAll(ctx, r.q, func(s scanner) (domain.Tag, error) {
		var t domain.Tag
		err := s.Scan(&t.ID, &t.ActivityID, &t.Text)
		return t, err
	}, `SELECT id, activity_id, tag FROM activity_tags WHERE activity_id = ? ORDER BY rowid ASC`, activityID)
}

// CreateDependency creates dependency.
func (r *Repository) CreateDependency(ctx context.Context, d domain.Dependency) error {
	return r.execWrite(ctx, `
		INSERT INTO activity_dependencies(activity_id, depends_on_id, created_at)
		VALUES (?, ?, ?)
	`, d.ActivityID, d.DependsOnID, ts(d.CreatedAt))
}

// DeleteDependency deletes dependency.
func (r *Repository) DeleteDependency(ctx context.Context, activityID, dependsOnID string) error {
	return r.execUpdate(ctx, `
		DELETE FROM activity_dependencies
		WHERE activity_id = ? AND depends_on_id = ?
	`, activityID, dependsOnID)
}

// ListPrerequisites lists the edges leaving activityID.
func (r *Repository) ListPrerequisites(ctx context.Context, activityID string) ([]domain.Dependency, error) {
	return queryAll(ctx, r.q, scanDependency, `
		SELECT activity_id, depends_on_id, created_at
		FROM activity_dependencies
		WHERE activity_id = ?
		ORDER BY created_at ASC, depends_on_id ASC
	`, activityID)
}

// ListDependents lists the edges entering activityID.
func (r *Repository) ListDependents(ctx context.Context, activityID string) ([]domain.Dependency, error) {
	return queryAll(ctx, r.q, scanDependency, `
		SELECT activity_id, depends_on_id, created_at
		FROM activity_dependencies
		WHERE depends_on_id = ?
		ORDER BY created_at ASC, activity_id ASC
	`, activityID)
}

// ListAllDependencies lists every edge.
func (r *Repository) ListAllDependencies(ctx context.Context) ([]domain.Dependency, error) {
	return queryAll(ctx, r.q, scanDependency, `
		SELECT activity_id, depends_on_id, created_at
		FROM activity_dependencies
		ORDER BY activity_id ASC, depends_on_id ASC
	`)
}

func scanDependency(s scanner) (domain.Dependency, error) {
	var (
		d          domain.Dependency
		createdRaw string
	)
	if err := s.Scan(&d.ActivityID, &d.DependsOnID, &createdRaw); err != nil {
		return domain.Dependency{}, err
	}
	d.CreatedAt = parseTS(createdRaw)
	return d, nil
}

// CreateComment creates comment.
func (r *Repository) CreateComment(ctx context.Context, c domain.Comment) error {
	return r.execWrite(ctx, `
		INSERT INTO activity_comments(id, activity_id, author_id, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.ActivityID, c.AuthorID, c.Text, ts(c.CreatedAt))
}

// ListComments lists comments oldest first.
func (r *Repository) ListComments(ctx context.Context, activityID string) ([]domain.Comment, error) {
	return queryAll(ctx, r.q, func(s scanner) (domain.Comment, error) {
		var (
			c          domain.Comment
			createdRaw string
		)
		if err := s.Scan(&c.ID, &c.ActivityID, &c.AuthorID, &c.Text, &createdRaw); err != nil {
			return domain.Comment{}, err
		}
		c.CreatedAt = parseTS(createdRaw)
		return c, nil
	}, `
		SELECT id, activity_id, author_id, comment, created_at
		FROM activity_comments
		WHERE activity_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, activityID)
}

// CreateTimeEntry creates time entry.
func (r *Repository) CreateTimeEntry(ctx context.Context, e domain.TimeEntry) error {
	return r.execWrite(ctx, `
		INSERT INTO time_tracking(id, activity_id, author_id, hours_spent, description, tracked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.ActivityID, e.AuthorID, e.HoursSpent, e.Description, ts(e.TrackedAt))
}

// ListTimeEntries lists the ledger ordered by tracked time.
func (r *Repository) ListTimeEntries(ctx context.Context, activityID string) ([]domain.TimeEntry, error) {
	return queryAll(ctx, r.q, func(s scanner) (domain.TimeEntry, error) {
		var (
			e          domain.TimeEntry
			trackedRaw string
		)
		if err := s.Scan(&e.ID, &e.ActivityID, &e.AuthorID, &e.HoursSpent, &e.Description, &trackedRaw); err != nil {
			return domain.TimeEntry{}, err
		}
		e.TrackedAt = parseTS(trackedRaw)
		return e, nil
	}, `
		SELECT id, activity_id, author_id, hours_spent, description, tracked_at
		FROM time_tracking
		WHERE activity_id = ?
		ORDER BY tracked_at ASC, rowid ASC
	`, activityID)
}

const reminderColumns = `id, activity_id, recipient_id, reminder_at, channel, sent, created_at`

// CreateReminder creates reminder.
func (r *Repository) CreateReminder(ctx context.Context, rem domain.Reminder) error {
	return r.execWrite(ctx, `
		INSERT INTO activity_reminders(`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rem.ID, rem.ActivityID, rem.RecipientID, ts(rem.ReminderAt), string(rem.Channel), boolInt(rem.Sent), ts(rem.CreatedAt))
}

// GetReminder returns reminder.
func (r *Repository) GetReminder(ctx context.Context, id string) (domain.Reminder, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM activity_reminders WHERE id = ?`, id)
	rem, err := scanReminder(row)
	if err != nil {
		return domain.Reminder{}, translateScanErr(err)
	}
	return rem, nil
}

// MarkReminderSent flags a reminder as delivered.
func (r *Repository) MarkReminderSent(ctx context.Context, id string) error {
	return r.execUpdate(ctx, `UPDATE activity_reminders SET sent = 1 WHERE id = ?`, id)
}

// ListReminders lists reminders of one activity by due time.
func (r *Repository) ListReminders(ctx context.Context, activityID string) ([]domain.Reminder, error) {
	return queryAll(ctx, r.q, scanReminder, `
		SELECT `+reminderColumns+`
		FROM activity_reminders
		WHERE activity_id = ?
		ORDER BY reminder_at ASC, id ASC
	`, activityID)
}

// ListDueReminders lists unsent reminders due at or before before.
func (r *Repository) ListDueReminders(ctx context.Context, before time.Time) ([]domain.Reminder, error) {
	return queryAll(ctx, r.q, scanReminder, `
		SELECT `+reminderColumns+`
		FROM activity_reminders
		WHERE sent = 0 AND reminder_at <= ?
		ORDER BY reminder_at ASC, id ASC
	`, ts(before))
}

func scanReminder(s scanner) (domain.Reminder, error) {
	var (
		rem        domain.Reminder
		atRaw      string
		channel    string
		createdRaw string
	)
	if err := s.Scan(&rem.ID, &rem.ActivityID, &rem.RecipientID, &atRaw, &channel, &rem.Sent, &createdRaw); err != nil {
		return domain.Reminder{}, err
	}
	rem.ReminderAt = parseTS(atRaw)
	rem.Channel = domain.ReminderChannel(channel)
	rem.CreatedAt = parseTS(createdRaw)
	return rem, nil
}

// AppendAudit appends one system log entry.
func (r *Repository) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO system_logs(actor_id, action, details, created_at)
		VALUES (?, ?, ?, ?)
	`, e.ActorID, string(e.Action), e.Details, ts(e.CreatedAt))
	return err
}

// ListAudit lists the newest system log entries.
func (r *Repository) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return queryAll(ctx, r.q, func(s scanner) (domain.AuditEntry, error) {
		var (
			e          domain.AuditEntry
			action     string
			createdRaw string
		)
		if err := s.Scan(&e.ID, &e.ActorID, &action, &e.Details, &createdRaw); err != nil {
			return domain.AuditEntry{}, err
		}
		e.Action = domain.AuditAction(action)
		e.CreatedAt = parseTS(createdRaw)
		return e, nil
	}, `
		SELECT id, actor_id, action, details, created_at
		FROM system_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}
