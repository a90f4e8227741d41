package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/oauth"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

const (
	profilePage   = "/settings/profile"
	twoFactorPage = "/settings/profile/two-factor"
)

// SettingsHandler serves the logged in user's profile settings. Every route
// runs behind middleware.RequireUser.
type SettingsHandler struct {
	auth        *service.AuthService
	sessions    *service.SessionService
	twoFactor   *service.TwoFactorService
	connections *service.ConnectionService
	providers   *oauth.Registry
	jar         *cookies.Jar
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(
	auth *service.AuthService,
	sessions *service.SessionService,
	twoFactor *service.TwoFactorService,
	connections *service.ConnectionService,
	providers *oauth.Registry,
	jar *cookies.Jar,
) *SettingsHandler {
	return &SettingsHandler{
		auth:        auth,
		sessions:    sessions,
		twoFactor:   twoFactor,
		connections: connections,
		providers:   providers,
		jar:         jar,
	}
}

func currentUser(r *http.Request) (userID, sessionID string) {
	userID, _ = middleware.UserIDFromContext(r.Context())
	sessionID, _ = middleware.SessionIDFromContext(r.Context())
	return userID, sessionID
}

// HandleProfile handles GET /settings/profile requests.
func (h *SettingsHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)
	ctx := r.Context()

	user, err := h.auth.GetUser(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	sessionCount, err := h.sessions.CountActive(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	twoFactor, err := h.twoFactor.IsEnabled(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	hasPassword, err := h.auth.HasPassword(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":             model.NewUserResponse(user),
		"sessionCount":     sessionCount,
		"twoFactorEnabled": twoFactor,
		"hasPassword":      hasPassword,
		"toast":            takeToast(w, r, h.jar),
		"csrf":             middleware.CSRFTokenFromContext(ctx),
	})
}

// HandleSignOutOtherSessions handles POST /settings/profile/sign-out-sessions requests.
func (h *SettingsHandler) HandleSignOutOtherSessions(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := currentUser(r)

	n, err := h.sessions.SignOutOthers(r.Context(), userID, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "signedOut": n})
}

// HandleChangePassword handles POST /settings/profile/password requests.
func (h *SettingsHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	err := h.auth.ChangePassword(r.Context(), userID,
		r.PostFormValue("currentPassword"),
		r.PostFormValue("newPassword"),
		r.PostFormValue("confirmNewPassword"),
	)
	if err != nil {
		handleError(w, r, err)
		return
	}
	redirectWithToast(w, r, h.jar, profilePage, model.Toast{
		Type:        "success",
		Title:       "Password Changed",
		Description: "Your password has been changed.",
	})
}

// HandleChangeEmail handles POST /settings/profile/change-email requests.
func (h *SettingsHandler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	prepared, err := h.auth.RequestEmailChange(r.Context(), userID, r.PostFormValue("email"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	pending := model.ChangeEmail{
		NewEmail:       normalizeFormEmail(r.PostFormValue("email")),
		VerificationID: prepared.VerificationID,
	}
	if err := cookies.Set(h.jar, w, cookies.ChangeEmailName, pending, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, prepared.RedirectTo)
}

// HandleTwoFactorStatus handles GET /settings/profile/two-factor requests.
func (h *SettingsHandler) HandleTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	enabled, err := h.twoFactor.IsEnabled(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": enabled,
		"toast":   takeToast(w, r, h.jar),
		"csrf":    middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleEnableTwoFactor handles POST /settings/profile/two-factor requests.
// The response carries the key the user scans into an authenticator app.
func (h *SettingsHandler) HandleEnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	enr, err := h.twoFactor.BeginEnrollment(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"otpUri": enr.KeyURI,
		"secret": enr.Secret,
	})
}

// HandleVerifyTwoFactor handles POST /settings/profile/two-factor/verify requests.
func (h *SettingsHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	if err := h.twoFactor.ConfirmEnrollment(r.Context(), userID, r.PostFormValue("code")); err != nil {
		handleError(w, r, err)
		return
	}
	redirectWithToast(w, r, h.jar, twoFactorPage, model.Toast{
		Type:        "success",
		Title:       "Enabled",
		Description: "Two-factor authentication has been enabled.",
	})
}

// HandleDisableTwoFactor handles POST /settings/profile/two-factor/disable requests.
func (h *SettingsHandler) HandleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	if err := h.twoFactor.Disable(r.Context(), userID); err != nil {
		handleError(w, r, err)
		return
	}
	redirectWithToast(w, r, h.jar, twoFactorPage, model.Toast{
		Type:        "success",
		Title:       "2FA Disabled",
		Description: "Two-factor authentication has been disabled.",
	})
}

// HandleListConnections handles GET /settings/profile/connections requests.
func (h *SettingsHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	conns, err := h.connections.List(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	canDelete, err := h.connections.CanDelete(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := make([]model.ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		resp = append(resp, model.ConnectionResponse{
			ID:           c.ID,
			ProviderName: c.ProviderName,
			ProviderID:   c.ProviderID,
			CreatedAt:    c.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connections": resp,
		"canDelete":   canDelete,
		"providers":   h.providers.Names(),
		"toast":       takeToast(w, r, h.jar),
		"csrf":        middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleDeleteConnection handles POST /settings/profile/connections/{id}/delete requests.
func (h *SettingsHandler) HandleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	if err := h.connections.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	redirectWithToast(w, r, h.jar, connectionsPage, model.Toast{
		Type:        "success",
		Title:       "Deleted",
		Description: "Your connection has been deleted.",
	})
}

// HandleDeleteAccount handles POST /settings/profile/delete requests.
func (h *SettingsHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := currentUser(r)

	if err := h.auth.DeleteAccount(r.Context(), userID); err != nil {
		handleError(w, r, err)
		return
	}
	h.jar.ClearSession(w)
	redirectWithToast(w, r, h.jar, "/", model.Toast{
		Type:        "success",
		Title:       "Account Deleted",
		Description: "Your account and all associated data have been deleted.",
	})
}
