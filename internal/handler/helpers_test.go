package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/mail"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/oauth"
	"github.com/roblesdotdev/epic-notes/internal/repository/memory"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

var githubProfile = model.ProviderProfile{ID: "42", Email: "a@x.com", Username: "octocat", Name: "Octo Cat"}

type testApp struct {
	srv       *httptest.Server
	store     *memory.Store
	mailer    *recordingMailer
	twoFactor *service.TwoFactorService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	var router http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store := memory.New()
	mailer := &recordingMailer{}
	signer, err := crypto.NewCookieSigner("handler-test-secret")
	require.NoError(t, err)

	sessions := service.NewSessionService(store.Sessions(), 0)
	verifications := service.NewVerificationService(store.Verifications(), srv.URL, "Epic Notes")
	twoFactor := service.NewTwoFactorService(store.Verifications(), store.Users(), "Epic Notes")

	router = NewRouter(Deps{
		Auth:          service.NewAuthService(store.Users(), sessions, verifications, twoFactor, mailer),
		Sessions:      sessions,
		Verifications: verifications,
		TwoFactor:     twoFactor,
		Connections:   service.NewConnectionService(store.Connections(), store.Users(), sessions),
		Providers:     oauth.NewRegistry(oauth.NewMock(srv.URL+"/auth/github/callback", githubProfile)),
		Jar:           cookies.NewJar(signer, false),
	})

	return &testApp{srv: srv, store: store, mailer: mailer, twoFactor: twoFactor}
}

func (a *testApp) createUser(t *testing.T, username, email, password string) *model.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	user := &model.User{Username: username, Email: email}
	require.NoError(t, a.store.Users().CreateWithPassword(context.Background(), user, hash))
	return user
}

// enableTwoFactor turns on 2FA for userID and returns the authenticator.
func (a *testApp) enableTwoFactor(t *testing.T, userID string) crypto.TOTP {
	t.Helper()

	enr, err := a.twoFactor.BeginEnrollment(context.Background(), userID)
	require.NoError(t, err)
	totp := crypto.TOTP{Secret: enr.Secret, Algorithm: crypto.TOTPAlgorithm, Digits: crypto.TOTPDigits, Period: crypto.TOTPPeriod, CharSet: crypto.TOTPCharSet}
	code, err := totp.Code(time.Now())
	require.NoError(t, err)
	require.NoError(t, a.twoFactor.ConfirmEnrollment(context.Background(), userID, code))
	return totp
}

// browser follows no redirects so tests can assert on each hop.
type browser struct {
	t    *testing.T
	app  *testApp
	http *http.Client
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	b := &browser{
		t:   t,
		app: a,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	b.get("/").Body.Close()
	return b
}

func (b *browser) url(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return b.app.srv.URL + path
}

func (b *browser) cookie(name string) *http.Cookie {
	u, err := url.Parse(b.app.srv.URL)
	require.NoError(b.t, err)
	for _, c := range b.http.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	resp, err := b.http.Get(b.url(path))
	require.NoError(b.t, err)
	return resp
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if c := b.cookie(cookies.CSRFName); c != nil && !form.Has("csrf") {
		form.Set("csrf", c.Value)
	}
	resp, err := b.http.PostForm(b.url(path), form)
	require.NoError(b.t, err)
	return resp
}

func (b *browser) login(username, password string) {
	b.t.Helper()
	resp := b.post("/login", url.Values{"username": {username}, "password": {password}})
	resp.Body.Close()
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
}

// whoami returns the username of the logged in user, or "".
func (b *browser) whoami() string {
	b.t.Helper()
	resp := b.get("/")
	body := decodeJSON(b.t, resp)
	user, _ := body["user"].(map[string]any)
	if user == nil {
		return ""
	}
	return user["username"].(string)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func location(t *testing.T, resp *http.Response) string {
	t.Helper()
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return resp.Header.Get("Location")
}

func clearedCookie(resp *http.Response, name string) bool {
	for _, c := range resp.Cookies() {
		if c.Name == name && c.MaxAge < 0 {
			return true
		}
	}
	return false
}
