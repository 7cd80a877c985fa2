package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chorale-hq/chorale/internal/platform/httpx"
	"github.com/chorale-hq/chorale/internal/shared"
)

// PrincipalResolver turns a session's member email into a Principal with its
// roles and current-semester section.
type PrincipalResolver interface {
	PrincipalFor(ctx context.Context, email string) (Principal, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Engine   *Engine
	Resolver PrincipalResolver
	Logger   *slog.Logger
}

// RequireMember ensures a logged-in member and stores the resolved principal
// in the request context.
func (m Middleware) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.Member() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
			return
		}
		principal, err := m.Resolver.PrincipalFor(r.Context(), sess.Member())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve principal", slog.String("member", sess.Member()), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequirePermission guards a route group behind a general (unscoped)
// permission check. Routes whose scope depends on the targeted event run the
// check inside the handler instead.
func (m Middleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if err := m.Engine.Require(r.Context(), principal, perm, GeneralScope()); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
