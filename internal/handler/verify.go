package handler

import (
	"net/http"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// VerifyHandler checks one-time codes typed into /verify or clicked from email.
type VerifyHandler struct {
	auth          *service.AuthService
	sessions      *service.SessionService
	verifications *service.VerificationService
	jar           *cookies.Jar
	starter       sessionStarter
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(auth *service.AuthService, sessions *service.SessionService, verifications *service.VerificationService, jar *cookies.Jar) *VerifyHandler {
	return &VerifyHandler{
		auth:          auth,
		sessions:      sessions,
		verifications: verifications,
		jar:           jar,
		starter:       sessionStarter{jar: jar, sessions: sessions},
	}
}

type verifySubmission struct {
	Type       model.VerificationType
	Target     string
	Code       string
	RedirectTo string
}

// HandleVerifyPage handles GET /verify requests. A link carrying the code is
// verified right away.
func (h *VerifyHandler) HandleVerifyPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub := verifySubmission{
		Type:       model.VerificationType(q.Get("type")),
		Target:     q.Get("target"),
		Code:       q.Get("code"),
		RedirectTo: q.Get("redirectTo"),
	}

	if sub.Code != "" {
		h.verify(w, r, sub)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":       sub.Type,
		"target":     sub.Target,
		"redirectTo": sub.RedirectTo,
		"csrf":       middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleVerify handles POST /verify requests.
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, verifySubmission{
		Type:       model.VerificationType(r.PostFormValue("type")),
		Target:     r.PostFormValue("target"),
		Code:       r.PostFormValue("code"),
		RedirectTo: r.PostFormValue("redirectTo"),
	})
}

func (h *VerifyHandler) verify(w http.ResponseWriter, r *http.Request, sub verifySubmission) {
	if sub.Target == "" || sub.Code == "" {
		writeJSON(w, http.StatusBadRequest, formErrors(map[string]string{"code": "Invalid code"}))
		return
	}

	switch sub.Type {
	case model.VerificationOnboarding:
		h.verifyOnboarding(w, r, sub)
	case model.VerificationResetPassword:
		h.verifyResetPassword(w, r, sub)
	case model.VerificationChangeEmail:
		h.verifyChangeEmail(w, r, sub)
	case model.VerificationTwoFA:
		h.verifyTwoFactorLogin(w, r, sub)
	default:
		writeJSON(w, http.StatusBadRequest, formErrors(map[string]string{"type": "Invalid verification type"}))
	}
}

func (h *VerifyHandler) verifyOnboarding(w http.ResponseWriter, r *http.Request, sub verifySubmission) {
	if err := h.verifications.Verify(r.Context(), sub.Type, sub.Target, sub.Code); err != nil {
		handleError(w, r, err)
		return
	}

	if err := cookies.Set(h.jar, w, cookies.OnboardingName, model.OnboardingEmail{Email: sub.Target}, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, withRedirectTo("/onboarding", service.SafeRedirect(sub.RedirectTo, "")))
}

func (h *VerifyHandler) verifyResetPassword(w http.ResponseWriter, r *http.Request, sub verifySubmission) {
	if err := h.verifications.Verify(r.Context(), sub.Type, sub.Target, sub.Code); err != nil {
		handleError(w, r, err)
		return
	}

	if err := cookies.Set(h.jar, w, cookies.ResetName, model.ResetPassword{Username: sub.Target}, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, "/reset-password")
}

// verifyChangeEmail requires the code's target to be the logged in user.
func (h *VerifyHandler) verifyChangeEmail(w http.ResponseWriter, r *http.Request, sub verifySubmission) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		handleError(w, r, &service.UnauthenticatedError{RedirectTo: r.URL.RequestURI()})
		return
	}
	if userID != sub.Target {
		handleError(w, r, service.ErrForbidden)
		return
	}

	pending, ok := cookies.Get[model.ChangeEmail](h.jar, r, cookies.ChangeEmailName)
	if !ok {
		redirectWithToast(w, r, h.jar, "/settings/profile", model.Toast{
			Type:        "error",
			Title:       "Email change expired",
			Description: "Please request the email change again.",
		})
		return
	}

	if err := h.verifications.VerifyIssued(r.Context(), sub.Type, sub.Target, pending.VerificationID, sub.Code); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.auth.ConfirmEmailChange(r.Context(), userID, pending.NewEmail)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.jar.Clear(w, cookies.ChangeEmailName)
	redirectWithToast(w, r, h.jar, "/settings/profile", model.Toast{
		Type:        "success",
		Title:       "Email changed",
		Description: "Your email has been changed to " + user.Email,
	})
}

// verifyTwoFactorLogin creates the session for a login that was waiting for
// its second factor.
func (h *VerifyHandler) verifyTwoFactorLogin(w http.ResponseWriter, r *http.Request, sub verifySubmission) {
	pending, ok := cookies.Get[model.UnverifiedSession](h.jar, r, cookies.UnverifiedName)
	if !ok || pending.UserID != sub.Target {
		redirect(w, r, service.LoginRedirect(service.SafeRedirect(sub.RedirectTo, "")))
		return
	}

	if err := h.verifications.Verify(r.Context(), sub.Type, sub.Target, sub.Code); err != nil {
		handleError(w, r, err)
		return
	}

	sess, err := h.sessions.Create(r.Context(), pending.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.jar.Clear(w, cookies.UnverifiedName)
	h.starter.finish(w, r, sess, pending.Remember, pending.RedirectTo)
}
