package authz

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/openshelf/openshelf/internal/shared"
)

// Middleware enforces the authorization gate for HTTP handlers. The action
// name is the final path segment of the request URL, matched exactly against
// the registry.
type Middleware struct {
	Gate        *Gate
	TokenSecret string
	Logger      *slog.Logger

	// Observe, when set, is called with every decision outcome.
	Observe func(action string, allowed bool)
}

// Authorize resolves the caller identity from the bearer token, asks the
// gate for a decision and either forwards the request with the identity in
// context or denies it. Clients always receive the same generic denial; the
// specific reason is only logged.
func (m Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := ActionFromPath(r.URL.Path)

		userID := ""
		if raw := bearerToken(r); raw != "" {
			claims, err := ParseToken(m.TokenSecret, raw)
			if err != nil {
				// Invalid token is a hard failure, not an anonymous fallthrough.
				if m.Logger != nil {
					m.Logger.Warn("bearer token rejected", slog.String("action", string(action)), slog.Any("error", err))
				}
				m.deny(w)
				return
			}
			userID = claims.UserID
		}

		decision, err := m.Gate.Decide(r.Context(), userID, action)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("authorization check failed", slog.String("action", string(action)), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if m.Observe != nil {
			m.Observe(string(action), decision.Allowed)
		}
		if !decision.Allowed {
			if m.Logger != nil {
				m.Logger.Info("request denied",
					slog.String("action", string(action)),
					slog.String("reason", decision.Reason),
				)
			}
			m.deny(w)
			return
		}

		ctx := r.Context()
		if decision.UserID != "" {
			ctx = shared.ContextWithIdentity(ctx, &shared.Identity{UserID: decision.UserID})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) deny(w http.ResponseWriter) {
	http.Error(w, "you do not have permission to execute this action", http.StatusForbidden)
}

// ActionFromPath extracts the action name from an inbound path: the last
// segment, taken verbatim.
func ActionFromPath(path string) Action {
	path = strings.TrimSuffix(path, "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	return Action(path)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
