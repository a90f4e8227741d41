// Package cookies reads and writes the signed cookies the app relies on.
package cookies

import (
	"net/http"
	"time"

	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
)

const (
	SessionName     = "en_session"
	RedirectToName  = "en_redirect_to"
	OAuthStateName  = "en_oauth_state"
	ToastName       = "en_toast"
	CSRFName        = "en_csrf"
	OnboardingName  = "en_onboarding"
	ProviderName    = "en_onboarding_provider"
	ResetName       = "en_reset_password"
	ChangeEmailName = "en_change_email"
	UnverifiedName  = "en_unverified_session"
)

// FlowTTL bounds every short-lived flow cookie.
const FlowTTL = 10 * time.Minute

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

// Jar encodes cookie values as signed tokens.
type Jar struct {
	signer *crypto.CookieSigner
	secure bool
}

// NewJar creates a Jar. secure marks every cookie Secure.
func NewJar(signer *crypto.CookieSigner, secure bool) *Jar {
	return &Jar{signer: signer, secure: secure}
}

// SetSession writes the session cookie. Without remember it lasts until the
// browser closes; with it the cookie expires with the session.
func (j *Jar) SetSession(w http.ResponseWriter, sess *model.Session, remember bool) error {
	token, err := crypto.Seal(j.signer, SessionName, sessionPayload{SessionID: sess.ID}, 0)
	if err != nil {
		return err
	}

	c := j.base(SessionName, token)
	if remember {
		c.Expires = sess.ExpirationDate
	}
	http.SetCookie(w, c)
	return nil
}

// SessionID returns the session id in the request, or "" when the cookie is
// missing or its signature does not verify.
func (j *Jar) SessionID(r *http.Request) string {
	p, ok := Get[sessionPayload](j, r, SessionName)
	if !ok {
		return ""
	}
	return p.SessionID
}

// ClearSession removes the session cookie.
func (j *Jar) ClearSession(w http.ResponseWriter) {
	j.Clear(w, SessionName)
}

// Set writes v as a signed cookie valid for ttl.
func Set[T any](j *Jar, w http.ResponseWriter, name string, v T, ttl time.Duration) error {
	token, err := crypto.Seal(j.signer, name, v, ttl)
	if err != nil {
		return err
	}

	c := j.base(name, token)
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, c)
	return nil
}

// Get decodes the signed cookie name. A missing, tampered or expired cookie
// reports false.
func Get[T any](j *Jar, r *http.Request, name string) (T, bool) {
	var zero T

	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return zero, false
	}
	v, err := crypto.Open[T](j.signer, name, c.Value)
	if err != nil {
		return zero, false
	}
	return v, true
}

// Clear expires the cookie name.
func (j *Jar) Clear(w http.ResponseWriter, name string) {
	c := j.base(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

// SetPlain writes an unsigned cookie readable by page scripts.
func (j *Jar) SetPlain(w http.ResponseWriter, name, value string) {
	c := j.base(name, value)
	c.HttpOnly = false
	http.SetCookie(w, c)
}

func (j *Jar) base(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
