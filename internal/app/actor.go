package app

import (
	"context"
	"strings"

	"github.com/hylla/taskmon/internal/domain"
)

// Actor carries the authenticated caller identity for one operation.
type Actor struct {
	UserID     string
	Username   string
	Role       domain.Role
	Department string
}

// ActorFromUser builds an actor from a stored user.
func ActorFromUser(u domain.User) Actor {
	return Actor{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Department: u.Department,
	}
}

// WithActor attaches a normalized actor to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, normalizeActor(actor))
}

// ActorFromContext returns the actor attached to ctx when present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok {
		return Actor{}, false
	}
	actor = normalizeActor(actor)
	if actor.UserID == "" || !domain.IsValidRole(actor.Role) {
		return Actor{}, false
	}
	return actor, true
}

// actorContextKey stores context keys for actor values.
type actorContextKey struct{}

func normalizeActor(actor Actor) Actor {
	actor.UserID = strings.TrimSpace(actor.UserID)
	actor.Username = domain.NormalizeUsername(actor.Username)
	actor.Role = domain.NormalizeRole(string(actor.Role))
	actor.Department = strings.TrimSpace(actor.Department)
	return actor
}

// requireActor returns the context actor or ErrActorRequired.
func requireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrActorRequired
	}
	return actor, nil
}

// authorizeActivity allows owners, admins, and supervisors within the owner's department.
// The same rule covers reads and mutations.
func authorizeActivity(ctx context.Context, repo Repository, actor Actor, ownerID string) error {
	switch {
	case actor.UserID == ownerID, actor.Role == domain.RoleAdmin:
		return nil
	case actor.Role == domain.RoleSupervisor:
		if actor.Department == "" {
			return nil
		}
		owner, err := repo.GetUser(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.Department == actor.Department {
			return nil
		}
	}
	return ErrForbidden
}
