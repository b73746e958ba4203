package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/taskmon/internal/domain"
)

// AddDependency records that activityID depends on dependsOnID. Existing edges are
// returned unchanged; edges that would close a cycle fail with domain.ErrCycle.
func (s *Service) AddDependency(ctx context.Context, activityID, dependsOnID string) (domain.Dependency, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Dependency{}, err
	}
	edge, err := domain.NewDependency(activityID, dependsOnID, s.clock())
	if err != nil {
		return domain.Dependency{}, err
	}
	err = s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, edge.ActivityID)
		if err != nil {
			return err
		}
		if _, err := tx.GetActivity(ctx, edge.DependsOnID); err != nil {
			return fmt.Errorf("prerequisite %q: %w", edge.DependsOnID, err)
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		edges, err := tx.ListAllDependencies(ctx)
		if err != nil {
			return err
		}
		graph := domain.NewDependencyGraph(edges)
		if graph.HasEdge(edge.ActivityID, edge.DependsOnID) {
			return nil
		}
		if graph.WouldCycle(edge.ActivityID, edge.DependsOnID) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrCycle, edge.ActivityID, edge.DependsOnID)
		}
		if err := tx.CreateDependency(ctx, edge); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditAddDependency, detailPairs(
			"activity", edge.ActivityID,
			"depends_on", edge.DependsOnID,
		))
	})
	if err != nil {
		return domain.Dependency{}, err
	}
	return edge, nil
}

// RemoveDependency deletes one dependency edge.
func (s *Service) RemoveDependency(ctx context.Context, activityID, dependsOnID string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	activityID = strings.TrimSpace(activityID)
	dependsOnID = strings.TrimSpace(dependsOnID)
	return s.mutate(ctx, func(ctx context.Context, tx Repository) error {
		activity, err := tx.GetActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if err := authorizeActivity(ctx, tx, actor, activity.OwnerID); err != nil {
			return err
		}
		if err := tx.DeleteDependency(ctx, activityID, dependsOnID); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor.UserID, domain.AuditRemoveDependency, detailPairs(
			"activity", activityID,
			"depends_on", dependsOnID,
		))
	})
}

// IsUnblocked reports whether every prerequisite of activityID is completed.
func (s *Service) IsUnblocked(ctx context.Context, activityID string) (bool, error) {
	if _, err := requireActor(ctx); err != nil {
		return false, err
	}
	var unblocked bool
	err := s.read(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetActivity(ctx, strings.TrimSpace(activityID)); err != nil {
			return err
		}
		open, err := openPrerequisites(ctx, s.repo, strings.TrimSpace(activityID))
		if err != nil {
			return err
		}
		unblocked = len(open) == 0
		return nil
	})
	return unblocked, err
}

// PrerequisitesOf returns the activities activityID depends on.
func (s *Service) PrerequisitesOf(ctx context.Context, activityID string) ([]domain.Activity, error) {
	return s.neighbours(ctx, activityID, func(ctx context.Context, id string) ([]domain.Dependency, error) {
		return s.repo.ListPrerequisites(ctx, id)
	}, func(edge domain.Dependency) string { return edge.DependsOnID })
}

// DependentsOf returns the activities that depend on activityID.
func (s *Service) DependentsOf(ctx context.Context, activityID string) ([]domain.Activity, error) {
	return s.neighbours(ctx, activityID, func(ctx context.Context, id string) ([]domain.Dependency, error) {
		return s.repo.ListDependents(ctx, id)
	}, func(edge domain.Dependency) string { return edge.ActivityID })
}

// DependencyGraph returns the full graph for callers that walk it repeatedly.
func (s *Service) DependencyGraph(ctx context.Context) (*domain.DependencyGraph, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	var graph *domain.DependencyGraph
	err := s.read(ctx, func(ctx context.Context) error {
		edges, err := s.repo.ListAllDependencies(ctx)
		if err != nil {
			return err
		}
		graph = domain.NewDependencyGraph(edges)
		return nil
	})
	return graph, err
}

func (s *Service) neighbours(
	ctx context.Context,
	activityID string,
	list func(context.Context, string) ([]domain.Dependency, error),
	pick func(domain.Dependency) string,
) ([]domain.Activity, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	activityID = strings.TrimSpace(activityID)
	var out []domain.Activity
	err := s.read(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetActivity(ctx, activityID); err != nil {
			return err
		}
		edges, err := list(ctx, activityID)
		if err != nil {
			return err
		}
		out = make([]domain.Activity, 0, len(edges))
		for _, edge := range edges {
			activity, err := s.repo.GetActivity(ctx, pick(edge))
			if err != nil {
				return err
			}
			out = append(out, activity)
		}
		return nil
	})
	return out, err
}

// ensureUnblocked fails with domain.ErrDependencyUnmet while any prerequisite is open.
func (s *Service) ensureUnblocked(ctx context.Context, tx Repository, activityID string) error {
	open, err := openPrerequisites(ctx, tx, activityID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: %s waits on %s", domain.ErrDependencyUnmet, activityID, strings.Join(open, ", "))
	}
	return nil
}

// openPrerequisites returns the ids of prerequisites that are not completed.
func openPrerequisites(ctx context.Context, repo Repository, activityID string) ([]string, error) {
	edges, err := repo.ListPrerequisites(ctx, activityID)
	if err != nil {
		return nil, err
	}
	var open []string
	for _, edge := range edges {
		prerequisite, err := repo.GetActivity(ctx, edge.DependsOnID)
		if err != nil {
			return nil, err
		}
		if !prerequisite.IsCompleted() {
			open = append(open, prerequisite.ID)
		}
	}
	return open, nil
}
