package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

type fakeSessions struct {
	users     map[string]string
	err       error
	destroyed []string
}

func (f *fakeSessions) CurrentUserID(_ context.Context, sessionID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	userID, ok := f.users[sessionID]
	if !ok {
		return "", service.ErrSessionInvalid
	}
	return userID, nil
}

func (f *fakeSessions) Destroy(_ context.Context, sessionID string) error {
	f.destroyed = append(f.destroyed, sessionID)
	return nil
}

func newTestJar(t *testing.T) *cookies.Jar {
	t.Helper()
	signer, err := crypto.NewCookieSigner("test-secret")
	require.NoError(t, err)
	return cookies.NewJar(signer, false)
}

func requestWithSession(t *testing.T, jar *cookies.Jar, sessionID, target string) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, jar.SetSession(rec, &model.Session{ID: sessionID, ExpirationDate: time.Now().Add(time.Hour)}, false))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	sessionID, _ := SessionIDFromContext(r.Context())
	w.Write([]byte(userID + "|" + sessionID))
}

func TestSession_Anonymous(t *testing.T) {
	jar := newTestJar(t)
	h := Session(&fakeSessions{}, jar)(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "|", rec.Body.String())
}

func TestSession_Valid(t *testing.T) {
	jar := newTestJar(t)
	h := Session(&fakeSessions{users: map[string]string{"s1": "u1"}}, jar)(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithSession(t, jar, "s1", "/settings/profile"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|s1", rec.Body.String())
}

func TestSession_StaleCookieLogsOut(t *testing.T) {
	jar := newTestJar(t)
	sessions := &fakeSessions{users: map[string]string{}}
	h := Session(sessions, jar)(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithSession(t, jar, "gone", "/settings/profile"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"gone"}, sessions.destroyed)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookies.SessionName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie cleared")
}

func TestSession_TamperedCookieIsAnonymous(t *testing.T) {
	jar := newTestJar(t)
	h := Session(&fakeSessions{users: map[string]string{"s1": "u1"}}, jar)(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookies.SessionName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "|", rec.Body.String())
}

func TestSession_StorageError(t *testing.T) {
	jar := newTestJar(t)
	h := Session(&fakeSessions{err: errors.New("db down")}, jar)(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithSession(t, jar, "s1", "/"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/profile?tab=2fa", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/settings/profile?tab=2fa", loc.Query().Get("redirectTo"))

	req := httptest.NewRequest(http.MethodGet, "/settings/profile", nil)
	req = req.WithContext(WithUser(req.Context(), "u1", "s1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1|s1", rec.Body.String())
}

func TestRequireAnonymous(t *testing.T) {
	h := RequireAnonymous(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = req.WithContext(WithUser(req.Context(), "u1", "s1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestCSRF(t *testing.T) {
	jar := newTestJar(t)
	h := CSRF(jar)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(CSRFTokenFromContext(r.Context())))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	token := rec.Body.String()
	require.Len(t, token, crypto.CSRFTokenLength)
	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, cookies.CSRFName, cookie.Name)
	assert.Equal(t, token, cookie.Value)

	post := func(field string, withCookie bool) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{CSRFField: {field}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if withCookie {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post(token, true))
	assert.Equal(t, http.StatusForbidden, post("wrong", true))
	assert.Equal(t, http.StatusForbidden, post(token, false))
}

func TestCSRF_OversizedFormRejected(t *testing.T) {
	jar := newTestJar(t)
	h := CSRF(jar)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	token, err := crypto.CSRFToken()
	require.NoError(t, err)

	body := url.Values{"padding": {strings.Repeat("a", maxFormBytes)}, CSRFField: {token}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: cookies.CSRFName, Value: token})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per IP")
}

func TestLogger(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
