package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// SessionResolver resolves and destroys login sessions.
type SessionResolver interface {
	CurrentUserID(ctx context.Context, sessionID string) (string, error)
	Destroy(ctx context.Context, sessionID string) error
}

// Session loads the user referenced by the session cookie. A cookie that no
// longer matches a live session is logged out: the row is deleted, the
// cookie cleared and the visitor sent home.
func Session(sessions SessionResolver, jar *cookies.Jar) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := jar.SessionID(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.CurrentUserID(r.Context(), sessionID)
			if err != nil {
				if errors.Is(err, service.ErrSessionInvalid) {
					if err := sessions.Destroy(r.Context(), sessionID); err != nil {
						slog.Error("failed to delete stale session", "error", err)
					}
					jar.ClearSession(w)
					http.Redirect(w, r, "/", http.StatusSeeOther)
					return
				}
				slog.Error("failed to resolve session", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, sessionID)))
		})
	}
}

// RequireUser sends anonymous visitors to the login page, remembering where
// they were headed.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			unauth := &service.UnauthenticatedError{RedirectTo: r.URL.RequestURI()}
			http.Redirect(w, r, unauth.LoginURL(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnonymous sends logged in users home.
func RequireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
