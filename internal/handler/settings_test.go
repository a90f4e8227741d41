package handler

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/model"
)

func TestSettings_RequiresUser(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)

	loc, err := url.Parse(location(t, b.get("/settings/profile/connections")))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/settings/profile/connections", loc.Query().Get("redirectTo"))
}

func TestSignOutOtherSessions(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "kody", "kody@example.com", "kodylovesyou")

	laptop := app.newBrowser(t)
	laptop.login("kody", "kodylovesyou")
	phone := app.newBrowser(t)
	phone.login("kody", "kodylovesyou")
	require.Equal(t, 2, app.store.Sessions().Len())

	resp := laptop.post("/settings/profile/sign-out-sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeJSON(t, resp)["signedOut"])

	profile := decodeJSON(t, laptop.get("/settings/profile"))
	assert.EqualValues(t, 1, profile["sessionCount"])
	assert.Equal(t, "kody", laptop.whoami())

	resp = phone.get("/settings/profile")
	assert.Equal(t, "/", location(t, resp))
	assert.True(t, clearedCookie(resp, cookies.SessionName))
	assert.Empty(t, phone.whoami())
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "kody", "kody@example.com", "kodylovesyou")
	b := app.newBrowser(t)
	b.login("kody", "kodylovesyou")

	resp := b.post("/settings/profile/password", url.Values{
		"currentPassword":    {"nope-nope"},
		"newPassword":        {"anotherpass"},
		"confirmNewPassword": {"anotherpass"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeJSON(t, resp)["errors"], "currentPassword")

	resp = b.post("/settings/profile/password", url.Values{
		"currentPassword":    {"kodylovesyou"},
		"newPassword":        {"anotherpass"},
		"confirmNewPassword": {"anotherpass"},
	})
	assert.Equal(t, "/settings/profile", location(t, resp))
}

func TestChangeEmail(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "kody", "kody@example.com", "kodylovesyou")
	b := app.newBrowser(t)
	b.login("kody", "kodylovesyou")

	resp := b.post("/settings/profile/change-email", url.Values{"email": {"kody2@example.com"}})
	verify, err := url.Parse(location(t, resp))
	require.NoError(t, err)
	assert.Equal(t, "change-email", verify.Query().Get("type"))
	assert.Equal(t, user.ID, verify.Query().Get("target"))

	code := regexp.MustCompile(`code: (\d{6})`).FindStringSubmatch(app.mailer.last(t).Text)
	require.Len(t, code, 2)

	resp = b.post("/verify", url.Values{"type": {"change-email"}, "target": {user.ID}, "code": {code[1]}})
	assert.Equal(t, "/settings/profile", location(t, resp))

	updated, err := app.store.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "kody2@example.com", updated.Email)
	assert.Equal(t, "kody@example.com", app.mailer.last(t).To)
}

func TestChangeEmail_StaleCookieRejected(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "kody", "kody@example.com", "kodylovesyou")
	b := app.newBrowser(t)
	b.login("kody", "kodylovesyou")

	location(t, b.post("/settings/profile/change-email", url.Values{"email": {"someone@example.com"}}))
	stale := b.cookie(cookies.ChangeEmailName)
	require.NotNil(t, stale)

	location(t, b.post("/settings/profile/change-email", url.Values{"email": {"kody2@example.com"}}))
	code := regexp.MustCompile(`code: (\d{6})`).FindStringSubmatch(app.mailer.last(t).Text)
	require.Len(t, code, 2)

	u, err := url.Parse(app.srv.URL)
	require.NoError(t, err)
	b.http.Jar.SetCookies(u, []*http.Cookie{{Name: stale.Name, Value: stale.Value, Path: "/"}})

	resp := b.post("/verify", url.Values{"type": {"change-email"}, "target": {user.ID}, "code": {code[1]}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeJSON(t, resp)["errors"], "code")

	current, err := app.store.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "kody@example.com", current.Email)
}

func TestTwoFactorEnrollment(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "kody", "kody@example.com", "kodylovesyou")
	b := app.newBrowser(t)
	b.login("kody", "kodylovesyou")

	resp := b.post("/settings/profile/two-factor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	enr := decodeJSON(t, resp)
	secret := enr["secret"].(string)
	assert.Contains(t, enr["otpUri"], "otpauth://totp/")

	code, err := crypto.TOTP{
		Secret: secret, Algorithm: crypto.TOTPAlgorithm, Digits: crypto.TOTPDigits,
		Period: crypto.TOTPPeriod, CharSet: crypto.TOTPCharSet,
	}.Code(time.Now())
	require.NoError(t, err)

	resp = b.post("/settings/profile/two-factor/verify", url.Values{"code": {code}})
	assert.Equal(t, "/settings/profile/two-factor", location(t, resp))
	assert.Equal(t, true, decodeJSON(t, b.get("/settings/profile/two-factor"))["enabled"])

	resp = b.post("/settings/profile/two-factor/disable", nil)
	assert.Equal(t, "/settings/profile/two-factor", location(t, resp))
	assert.Equal(t, false, decodeJSON(t, b.get("/settings/profile/two-factor"))["enabled"])
}

func TestDeleteConnection_LastLoginMethodForbidden(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)

	// Sign up through the provider so the account has no password.
	location(t, b.get(startOAuth(t, b, "")))
	location(t, b.post("/onboarding/github", url.Values{
		"username":                              {"octocat"},
		"name":                                  {"Octo Cat"},
		"agreeToTermsOfServiceAndPrivacyPolicy": {"on"},
	}))

	list := decodeJSON(t, b.get("/settings/profile/connections"))
	assert.Equal(t, false, list["canDelete"])
	conns := list["connections"].([]any)
	require.Len(t, conns, 1)
	id := conns[0].(map[string]any)["id"].(string)

	resp := b.post("/settings/profile/connections/"+id+"/delete", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeleteAccount(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "kody", "kody@example.com", "kodylovesyou")
	require.NoError(t, app.store.Connections().Create(context.Background(),
		&model.Connection{ProviderName: "github", ProviderID: "42", UserID: user.ID}))
	b := app.newBrowser(t)
	b.login("kody", "kodylovesyou")

	resp := b.post("/settings/profile/delete", nil)
	assert.Equal(t, "/", location(t, resp))
	assert.Zero(t, app.store.Sessions().Len())
	assert.Empty(t, b.whoami())

	n, err := app.store.Connections().CountByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
