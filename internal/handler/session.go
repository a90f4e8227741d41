package handler

import (
	"net/http"
	"net/url"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// sessionStarter logs a user in, detouring through the 2FA prompt when the
// account has it enabled. No session row exists until the detour completes.
type sessionStarter struct {
	jar       *cookies.Jar
	sessions  *service.SessionService
	twoFactor *service.TwoFactorService
}

func (s sessionStarter) login(w http.ResponseWriter, r *http.Request, userID string, remember bool, redirectTo string) {
	enabled, err := s.twoFactor.IsEnabled(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if enabled {
		s.requireTwoFactor(w, r, userID, remember, redirectTo)
		return
	}

	sess, err := s.sessions.Create(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	s.finish(w, r, sess, remember, redirectTo)
}

// requireTwoFactor parks the login in the unverified-session cookie and sends
// the visitor to the code prompt.
func (s sessionStarter) requireTwoFactor(w http.ResponseWriter, r *http.Request, userID string, remember bool, redirectTo string) {
	redirectTo = service.SafeRedirect(redirectTo, "")

	pending := model.UnverifiedSession{
		UserID:     userID,
		Remember:   remember,
		RedirectTo: redirectTo,
	}
	if err := cookies.Set(s.jar, w, cookies.UnverifiedName, pending, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}

	q := url.Values{"type": {string(model.VerificationTwoFA)}, "target": {userID}}
	if redirectTo != "" {
		q.Set("redirectTo", redirectTo)
	}
	redirect(w, r, "/verify?"+q.Encode())
}

// finish hands a created session to the browser.
func (s sessionStarter) finish(w http.ResponseWriter, r *http.Request, sess *model.Session, remember bool, redirectTo string) {
	if err := s.jar.SetSession(w, sess, remember); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, service.SafeRedirect(redirectTo, "/"))
}
