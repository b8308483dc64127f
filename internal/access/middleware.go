package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// UserHeader carries the user id established by the upstream authentication gateway.
const UserHeader = "X-User-ID"

// ActorFinder loads actors by id.
type ActorFinder interface {
	FindActor(ctx context.Context, id uuid.UUID) (Actor, error)
}

// Middleware resolves the calling actor for HTTP handlers.
type Middleware struct {
	Finder ActorFinder
	Logger *slog.Logger
}

// Authenticate loads the actor named by UserHeader into the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			httpx.RespondError(w, shared.ErrAuthorization)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("access parse user id", slog.String("value", raw))
			}
			httpx.RespondError(w, shared.ErrAuthorization)
			return
		}
		actor, err := m.Finder.FindActor(r.Context(), id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, shared.ErrAuthorization)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("access load actor", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireRole rejects requests whose actor lacks every one of roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := Policy{}.RequireUser(r.Context())
			if err == nil {
				err = RequireRole(actor, roles...)
			}
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
