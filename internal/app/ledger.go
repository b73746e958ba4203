package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/hylla/taskmon/internal/domain"
)

// RecordTimeInput holds input values for time tracking.
type RecordTimeInput struct {
	ActivityID  string
	HoursSpent  float64
	Description string
}

// RecordTime appends a time entry authored by the actor and recomputes actual hours
// as the sum of all entries for the activity.
func (s *Service) RecordTime(ctx context.Context, in RecordTimeInput) (domain.TimeEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	now := s.clock()
	entry, err := domain.NewTimeEntry(domain.TimeEntryInput{
		ID:          s.idGen(),
		ActivityID:  in.ActivityID,
		AuthorID:    actor.UserID,
		HoursSpent:  in.HoursSpent,
		Description: in.Description,
	}, now)
	if err != nil {
		return domain.TimeEntry{}, err
	}

	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, entry.ActivityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if err := tx.CreateTimeEntry(ctx, entry); err != nil {
			return err
		}
		entries, err := tx.ListTimeEntries(ctx, entry.ActivityID)
		if err != nil {
			return err
		}
		activity.SetActualHours(domain.SumHours(entries), now)
		if err := tx.UpdateActivity(ctx, activity); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditRecordTime, detailPairs(
			"activity", entry.ActivityID,
			"hours", strconv.FormatFloat(entry.HoursSpent, 'f', -1, 64),
			"total", strconv.FormatFloat(*activity.ActualHours, 'f', 2, 64),
		))
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

// TotalHours returns the tracked hours for an activity, 0 when none exist.
func (s *Service) TotalHours(ctx context.Context, activityID string) (float64, error) {
	entries, err := s.ListTimeEntries(ctx, activityID)
	if err != nil {
		return 0, err
	}
	return domain.SumHours(entries), nil
}

// ListTimeEntries returns the ledger for an activity ordered by tracked time.
func (s *Service) ListTimeEntries(ctx context.Context, activityID string) ([]domain.TimeEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	activityID = strings.TrimSpace(activityID)
	var out []domain.TimeEntry
	err = s.read(ctx, func(ctx context.Context) error {
		activity, err := s.repo.GetActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, s.repo, actor, activity.OwnerID); err != nil {
			return err
		}
		entries, err := s.repo.ListTimeEntries(ctx, activityID)
		out = entries
		return err
	})
	return out, err
}
