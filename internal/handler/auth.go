package handler

import (
	"errors"
	"net/http"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// AuthHandler handles login, logout, signup and password reset.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *service.SessionService
	jar      *cookies.Jar
	starter  sessionStarter
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, twoFactor *service.TwoFactorService, jar *cookies.Jar) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		jar:      jar,
		starter:  sessionStarter{jar: jar, sessions: sessions, twoFactor: twoFactor},
	}
}

// HandleHome handles GET / requests.
func (h *AuthHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"user":  nil,
		"toast": takeToast(w, r, h.jar),
		"csrf":  middleware.CSRFTokenFromContext(r.Context()),
	}

	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		user, err := h.auth.GetUser(r.Context(), userID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		resp["user"] = model.NewUserResponse(user)
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req := model.LoginRequest{
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		Remember:   formBool(r, "remember"),
		RedirectTo: r.PostFormValue("redirectTo"),
	}

	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if res.TwoFactorRequired {
		h.starter.requireTwoFactor(w, r, res.UserID, req.Remember, req.RedirectTo)
		return
	}
	h.starter.finish(w, r, res.Session, req.Remember, req.RedirectTo)
}

// HandleLogout handles POST /logout requests. The cookie is cleared even
// when the session is already gone.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID := h.jar.SessionID(r); sessionID != "" {
		if err := h.sessions.Destroy(r.Context(), sessionID); err != nil {
			handleError(w, r, err)
			return
		}
	}
	h.jar.ClearSession(w)
	redirect(w, r, "/")
}

// HandleSignup handles POST /signup requests.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	prepared, err := h.auth.RequestSignup(r.Context(), r.PostFormValue("email"), service.SafeRedirect(r.PostFormValue("redirectTo"), ""))
	if err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, prepared.RedirectTo)
}

// HandleOnboardingForm handles GET /onboarding requests.
func (h *AuthHandler) HandleOnboardingForm(w http.ResponseWriter, r *http.Request) {
	state, ok := cookies.Get[model.OnboardingEmail](h.jar, r, cookies.OnboardingName)
	if !ok {
		redirect(w, r, "/signup")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email": state.Email,
		"csrf":  middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleOnboarding handles POST /onboarding requests.
func (h *AuthHandler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	state, ok := cookies.Get[model.OnboardingEmail](h.jar, r, cookies.OnboardingName)
	if !ok {
		redirect(w, r, "/signup")
		return
	}

	req := model.SignupRequest{
		Email:           state.Email,
		Username:        r.PostFormValue("username"),
		Name:            r.PostFormValue("name"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		AgreeToTerms:    formBool(r, "agreeToTermsOfServiceAndPrivacyPolicy"),
		Remember:        formBool(r, "remember"),
		RedirectTo:      r.PostFormValue("redirectTo"),
	}

	sess, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.jar.Clear(w, cookies.OnboardingName)
	if err := h.jar.SetSession(w, sess, req.Remember); err != nil {
		handleError(w, r, err)
		return
	}
	redirectWithToast(w, r, h.jar, service.SafeRedirect(req.RedirectTo, "/"), model.Toast{
		Type:        "success",
		Title:       "Welcome",
		Description: "Thanks for signing up!",
	})
}

// HandleForgotPassword handles POST /forgot-password requests.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	prepared, err := h.auth.RequestPasswordReset(r.Context(), r.PostFormValue("usernameOrEmail"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, prepared.RedirectTo)
}

// HandleResetPasswordForm handles GET /reset-password requests.
func (h *AuthHandler) HandleResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	state, ok := cookies.Get[model.ResetPassword](h.jar, r, cookies.ResetName)
	if !ok {
		redirect(w, r, "/login")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": state.Username,
		"csrf":     middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleResetPassword handles POST /reset-password requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	state, ok := cookies.Get[model.ResetPassword](h.jar, r, cookies.ResetName)
	if !ok {
		redirect(w, r, "/login")
		return
	}

	err := h.auth.ResetPassword(r.Context(), state.Username, r.PostFormValue("password"), r.PostFormValue("confirmPassword"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.jar.Clear(w, cookies.ResetName)
			redirect(w, r, "/login")
			return
		}
		handleError(w, r, err)
		return
	}

	h.jar.Clear(w, cookies.ResetName)
	redirectWithToast(w, r, h.jar, "/login", model.Toast{
		Type:        "success",
		Title:       "Password reset",
		Description: "Your password has been reset. You can log in with it now.",
	})
}
