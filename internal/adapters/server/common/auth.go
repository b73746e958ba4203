package common

import (
	"errors"
	"net/http"

	"github.com/hylla/taskmon/internal/adapters/auth"
	"github.com/hylla/taskmon/internal/app"
)

// Authenticate verifies the bearer token on each request, reloads its subject through
// resolver and attaches the resulting actor to the request context. Claims inside the
// token only name the subject; role, department and status come from the store.
// Rejected requests are passed to deny.
func Authenticate(verifier TokenVerifier, resolver ActorResolver, deny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.BearerToken(r.Header.Get("Authorization"))
			if raw == "" || verifier == nil || resolver == nil {
				deny(w, r, ErrUnauthenticated)
				return
			}
			claimed, err := verifier.Parse(raw)
			if err != nil {
				deny(w, r, ErrUnauthenticated)
				return
			}
			actor, err := resolver.ResolveActor(r.Context(), claimed.UserID)
			switch {
			case errors.Is(err, app.ErrStorage):
				deny(w, r, err)
				return
			case err != nil:
				deny(w, r, ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(app.WithActor(r.Context(), actor)))
		})
	}
}
