package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/oauth"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth          *service.AuthService
	Sessions      *service.SessionService
	Verifications *service.VerificationService
	TwoFactor     *service.TwoFactorService
	Connections   *service.ConnectionService
	Providers     *oauth.Registry
	Jar           *cookies.Jar
	// RateLimiter guards the credential and code endpoints. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.Sessions, d.TwoFactor, d.Jar)
	verifyHandler := NewVerifyHandler(d.Auth, d.Sessions, d.Verifications, d.Jar)
	oauthHandler := NewOAuthHandler(d.Providers, d.Connections, d.Sessions, d.TwoFactor, d.Jar)
	settingsHandler := NewSettingsHandler(d.Auth, d.Sessions, d.TwoFactor, d.Connections, d.Providers, d.Jar)

	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimiter != nil {
		limit = d.RateLimiter.Handler
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CSRF(d.Jar))
	r.Use(middleware.Session(d.Sessions, d.Jar))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})
	r.Get("/", authHandler.HandleHome)
	r.Post("/logout", authHandler.HandleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAnonymous)

		r.With(limit).Post("/login", authHandler.HandleLogin)
		r.With(limit).Post("/signup", authHandler.HandleSignup)
		r.Get("/onboarding", authHandler.HandleOnboardingForm)
		r.Post("/onboarding", authHandler.HandleOnboarding)
		r.With(limit).Post("/forgot-password", authHandler.HandleForgotPassword)
		r.Get("/reset-password", authHandler.HandleResetPasswordForm)
		r.Post("/reset-password", authHandler.HandleResetPassword)
		r.Get("/onboarding/{provider}", oauthHandler.HandleOnboardingForm)
		r.Post("/onboarding/{provider}", oauthHandler.HandleOnboarding)
	})

	r.With(limit).Get("/verify", verifyHandler.HandleVerifyPage)
	r.With(limit).Post("/verify", verifyHandler.HandleVerify)

	r.Post("/auth/{provider}", oauthHandler.HandleBegin)
	r.Get("/auth/{provider}/callback", oauthHandler.HandleCallback)

	r.Route("/settings/profile", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Get("/", settingsHandler.HandleProfile)
		r.Post("/sign-out-sessions", settingsHandler.HandleSignOutOtherSessions)
		r.Post("/password", settingsHandler.HandleChangePassword)
		r.Post("/change-email", settingsHandler.HandleChangeEmail)
		r.Get("/two-factor", settingsHandler.HandleTwoFactorStatus)
		r.Post("/two-factor", settingsHandler.HandleEnableTwoFactor)
		r.Post("/two-factor/verify", settingsHandler.HandleVerifyTwoFactor)
		r.Post("/two-factor/disable", settingsHandler.HandleDisableTwoFactor)
		r.Get("/connections", settingsHandler.HandleListConnections)
		r.Post("/connections/{id}/delete", settingsHandler.HandleDeleteConnection)
		r.Post("/delete", settingsHandler.HandleDeleteAccount)
	})

	return r
}
