package app

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/taskmon/internal/domain"
)

// CreateActivityInput holds input values for create activity operations.
type CreateActivityInput struct {
	// OwnerID defaults to the acting user. Only supervisors and admins may assign other owners.
	OwnerID        string
	Title          string
	Description    string
	Priority       domain.Priority
	Category       string
	EstimatedHours float64
	Comments       string
	StartTime      time.Time
	// Status defaults to in_progress. Only admins may pick another initial status.
	Status domain.Status
	Tags   []string
}

// CreateActivity creates an activity owned by the actor or an assigned owner.
func (s *Service) CreateActivity(ctx context.Context, in CreateActivityInput) (domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		ownerID = actor.UserID
	}
	if ownerID != actor.UserID && !actor.Role.CanManageAll() {
		return domain.Activity{}, ErrForbidden
	}
	status := domain.NormalizeStatus(string(in.Status))
	if status != "" && status != domain.StatusInProgress && actor.Role != domain.RoleAdmin {
		return domain.Activity{}, fmt.Errorf("%w: only administrators may set an initial status", ErrForbidden)
	}

	now := s.clock()
	activity, err := domain.NewActivity(domain.ActivityInput{
		ID:             s.idGen(),
		OwnerID:        ownerID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         status,
		Priority:       in.Priority,
		Category:       in.Category,
		StartTime:      in.StartTime,
		EstimatedHours: in.EstimatedHours,
		Comments:       in.Comments,
	}, now)
	if err != nil {
		return domain.Activity{}, err
	}
	tags := make([]domain.Tag, 0, len(in.Tags))
	for _, text := range in.Tags {
		if strings.TrimSpace(text) == "" {
			continue
		}
		tag, err := domain.NewTag(s.idGen(), activity.ID, text)
		if err != nil {
			return domain.Activity{}, err
		}
		tags = append(tags, tag)
	}

	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetUser(ctx, ownerID); err != nil {
			return fmt.Errorf("owner %q: %w", ownerID, err)
		}
		if err := authorizeActivity(ctx, tx, actor, ownerID); err != nil {
			return err
		}
		if err := tx.CreateActivity(ctx, activity); err != nil {
			return err
		}
		for _, tag := range tags {
			if err := tx.CreateTag(ctx, tag); err != nil {
				return err
			}
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditCreateActivity, detailPairs(
			"activity", activity.ID,
			"owner", activity.OwnerID,
			"status", string(activity.Status),
			"title", strconv.Quote(activity.Title),
		))
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// GetActivity returns one activity visible to the actor.
func (s *Service) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	var out domain.Activity
	err = s.read(ctx, func(ctx context.Context) error {
		activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, s.repo, actor, activity.OwnerID); err != nil {
			return err
		}
		out = activity
		return nil
	})
	return out, err
}

// ListActivities returns activities in scope, narrowed to what the actor may see.
func (s *Service) ListActivities(ctx context.Context, scope Scope) ([]domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Activity
	err = s.read(ctx, func(ctx context.Context) error {
		activities, err := s.scopedActivities(ctx, s.repo, actor, scope)
		out = activities
		return err
	})
	return out, err
}

// UpdateActivity applies patch to one activity. Moving into completed runs the completion
// path; moving out of completed clears end_time and keeps actual_hours.
func (s *Service) UpdateActivity(ctx context.Context, id string, patch domain.ActivityPatch) (domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	id = strings.TrimSpace(id)
	var out domain.Activity
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		prev, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, prev.OwnerID); err != nil {
			return err
		}
		now := s.clock()
		next := prev
		if err := next.ApplyDetails(patch, now); err != nil {
			return err
		}
		if patch.Status != nil {
			if err := s.transition(ctx, tx, &next, domain.NormalizeStatus(string(*patch.Status)), now); err != nil {
				return err
			}
		}
		if err := tx.UpdateActivity(ctx, next); err != nil {
			return err
		}
		out = next
		return s.audit(ctx, tx, actor.UserID, domain.AuditUpdateActivity, detailPairs(
			"activity", next.ID,
			"fields", strings.Join(changedActivityFields(prev, next), ","),
			"status", string(next.Status),
		))
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return out, nil
}

// transition moves a to status, enforcing dependency rules.
func (s *Service) transition(ctx context.Context, tx Repository, a *domain.Activity, status domain.Status, now time.Time) error {
	if !domain.IsStoredStatus(status) {
		return domain.ErrInvalidStatus
	}
	if status == a.Status {
		return nil
	}
	if status == domain.StatusCompleted {
		return s.applyCompletion(ctx, tx, a, now)
	}
	if s.enforceStartDeps && a.Status == domain.StatusPending && status == domain.StatusInProgress {
		if err := s.ensureUnblocked(ctx, tx, a.ID); err != nil {
			return err
		}
	}
	return a.Reopen(status, now)
}

// CompleteActivity completes one activity. Completing an already completed activity
// returns it unchanged without writing.
func (s *Service) CompleteActivity(ctx context.Context, id string) (domain.Activity, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Activity{}, err
	}
	id = strings.TrimSpace(id)
	var out domain.Activity
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if activity.IsCompleted() {
			out = activity
			return nil
		}
		if err := s.applyCompletion(ctx, tx, &activity, s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateActivity(ctx, activity); err != nil {
			return err
		}
		out = activity
		return s.audit(ctx, tx, actor.UserID, domain.AuditCompleteActivity, detailPairs(
			"activity", activity.ID,
			"actual_hours", strconv.FormatFloat(*activity.ActualHours, 'f', 2, 64),
		))
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return out, nil
}

// applyCompletion checks prerequisites and completes a using ledger hours when any exist.
func (s *Service) applyCompletion(ctx context.Context, tx Repository, a *domain.Activity, now time.Time) error {
	if err := s.ensureUnblocked(ctx, tx, a.ID); err != nil {
		return err
	}
	entries, err := tx.ListTimeEntries(ctx, a.ID)
	if err != nil {
		return err
	}
	var tracked *float64
	if len(entries) > 0 {
		total := domain.SumHours(entries)
		tracked = &total
	}
	a.Complete(now, tracked)
	return nil
}

// DeleteActivity deletes one activity and everything attached to it.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	return s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if err := tx.DeleteActivity(ctx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditDeleteActivity, detailPairs(
			"activity", activity.ID,
			"title", strconv.Quote(activity.Title),
		))
	})
}

// changedActivityFields lists mutable fields that differ between prev and next.
func changedActivityFields(prev, next domain.Activity) []string {
	var out []string
	if prev.Title != next.Title {
		out = append(out, "title")
	}
	if prev.Description != next.Description {
		out = append(out, "description")
	}
	if prev.Priority != next.Priority {
		out = append(out, "priority")
	}
	if prev.Category != next.Category {
		out = append(out, "category")
	}
	if prev.Status != next.Status {
		out = append(out, "status")
	}
	if prev.EstimatedHours != next.EstimatedHours {
		out = append(out, "estimated_hours")
	}
	if prev.Comments != next.Comments {
		out = append(out, "comments")
	}
	slices.Sort(out)
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}
