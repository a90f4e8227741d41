package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/oauth"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

const connectionsPage = "/settings/profile/connections"

// OAuthHandler runs the provider redirect, the callback and provider onboarding.
type OAuthHandler struct {
	providers   *oauth.Registry
	connections *service.ConnectionService
	jar         *cookies.Jar
	starter     sessionStarter
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(providers *oauth.Registry, connections *service.ConnectionService, sessions *service.SessionService, twoFactor *service.TwoFactorService, jar *cookies.Jar) *OAuthHandler {
	return &OAuthHandler{
		providers:   providers,
		connections: connections,
		jar:         jar,
		starter:     sessionStarter{jar: jar, sessions: sessions, twoFactor: twoFactor},
	}
}

func (h *OAuthHandler) provider(w http.ResponseWriter, r *http.Request) (oauth.Provider, bool) {
	p, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		return nil, false
	}
	return p, true
}

// HandleBegin handles POST /auth/{provider} requests.
func (h *OAuthHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state, err := crypto.OAuthState()
	if err != nil {
		handleError(w, r, err)
		return
	}
	verifier := oauth.NewVerifier()

	if err := cookies.Set(h.jar, w, cookies.OAuthStateName, model.OAuthState{State: state, Verifier: verifier}, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}
	if to := service.SafeRedirect(r.PostFormValue("redirectTo"), ""); to != "" {
		if err := cookies.Set(h.jar, w, cookies.RedirectToName, to, cookies.FlowTTL); err != nil {
			handleError(w, r, err)
			return
		}
	} else {
		h.jar.Clear(w, cookies.RedirectToName)
	}

	redirect(w, r, p.AuthCodeURL(state, verifier))
}

// callback is everything a responder needs to finish an OAuth callback.
type callback struct {
	provider   oauth.Provider
	decision   *service.Decision
	redirectTo string
}

type outcomeResponder func(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback)

// outcomeResponders maps every callback outcome to the single response it gets.
var outcomeResponders = map[service.Outcome]outcomeResponder{
	service.LinkedLogin:           respondLinkedLogin,
	service.AlreadyLinked:         respondAlreadyLinked,
	service.AlreadyLinkedConflict: respondAlreadyLinkedConflict,
	service.LinkToCurrentUser:     respondLinkToCurrentUser,
	service.LinkToEmailMatch:      respondLinkToEmailMatch,
	service.NeedsOnboarding:       respondNeedsOnboarding,
	service.ProviderAuthFailed:    respondProviderAuthFailed,
}

// HandleCallback handles GET /auth/{provider}/callback requests.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	redirectTo, _ := cookies.Get[string](h.jar, r, cookies.RedirectToName)
	h.jar.Clear(w, cookies.RedirectToName)
	pending, hasState := cookies.Get[model.OAuthState](h.jar, r, cookies.OAuthStateName)
	h.jar.Clear(w, cookies.OAuthStateName)

	cb := callback{provider: p, redirectTo: service.SafeRedirect(redirectTo, "")}

	q := r.URL.Query()
	if !hasState || q.Get("state") == "" || q.Get("state") != pending.State || q.Get("error") != "" {
		slog.Warn("oauth callback rejected", "provider", p.Name(), "state_present", hasState, "provider_error", q.Get("error"))
		h.respond(w, r, cb, &service.Decision{Outcome: service.ProviderAuthFailed})
		return
	}

	profile, err := p.Profile(r.Context(), q.Get("code"), pending.Verifier)
	if err != nil {
		slog.Warn("oauth profile fetch failed", "provider", p.Name(), "error", err)
		h.respond(w, r, cb, &service.Decision{Outcome: service.ProviderAuthFailed})
		return
	}

	currentUserID, _ := middleware.UserIDFromContext(r.Context())
	decision, err := h.connections.Resolve(r.Context(), p.Name(), profile, currentUserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.respond(w, r, cb, decision)
}

func (h *OAuthHandler) respond(w http.ResponseWriter, r *http.Request, cb callback, d *service.Decision) {
	responder, ok := outcomeResponders[d.Outcome]
	if !ok {
		handleError(w, r, errors.New("unhandled oauth outcome "+string(d.Outcome)))
		return
	}
	cb.decision = d
	responder(h, w, r, cb)
}

func respondLinkedLogin(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	h.starter.login(w, r, cb.decision.UserID, true, cb.redirectTo)
}

func respondAlreadyLinked(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	redirectWithToast(w, r, h.jar, service.SafeRedirect(cb.redirectTo, connectionsPage), model.Toast{
		Type:        "message",
		Title:       "Already Connected",
		Description: "Your " + cb.provider.Label() + " account is already connected.",
	})
}

func respondAlreadyLinkedConflict(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	redirectWithToast(w, r, h.jar, service.SafeRedirect(cb.redirectTo, connectionsPage), model.Toast{
		Type:        "error",
		Title:       "Already Connected",
		Description: "This " + cb.provider.Label() + " account is already connected to another account.",
	})
}

func respondLinkToCurrentUser(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	redirectWithToast(w, r, h.jar, service.SafeRedirect(cb.redirectTo, connectionsPage), model.Toast{
		Type:        "success",
		Title:       "Connected",
		Description: "Your " + cb.provider.Label() + " account has been connected.",
	})
}

func respondLinkToEmailMatch(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	toast := model.Toast{
		Type:        "success",
		Title:       "Connected",
		Description: "Your " + cb.provider.Label() + " account has been connected to your existing account.",
	}
	if err := cookies.Set(h.jar, w, cookies.ToastName, toast, cookies.FlowTTL); err != nil {
		slog.Error("failed to set toast", "error", err)
	}
	h.starter.login(w, r, cb.decision.UserID, true, service.SafeRedirect(cb.redirectTo, connectionsPage))
}

func respondNeedsOnboarding(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	if err := cookies.Set(h.jar, w, cookies.ProviderName, *cb.decision.Onboarding, cookies.FlowTTL); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, withRedirectTo("/onboarding/"+cb.provider.Name(), cb.redirectTo))
}

func respondProviderAuthFailed(h *OAuthHandler, w http.ResponseWriter, r *http.Request, cb callback) {
	redirectWithToast(w, r, h.jar, "/login", model.Toast{
		Type:        "error",
		Title:       "Auth Failed",
		Description: "There was an error authenticating with " + cb.provider.Label() + ".",
	})
}

// HandleOnboardingForm handles GET /onboarding/{provider} requests.
func (h *OAuthHandler) HandleOnboardingForm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	state, ok := cookies.Get[model.OnboardingState](h.jar, r, cookies.ProviderName)
	if !ok || state.ProviderName != p.Name() {
		redirect(w, r, "/login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider": p.Label(),
		"email":    state.Email,
		"username": state.Username,
		"name":     state.Name,
		"imageUrl": state.ImageURL,
		"csrf":     middleware.CSRFTokenFromContext(r.Context()),
	})
}

// HandleOnboarding handles POST /onboarding/{provider} requests.
func (h *OAuthHandler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	state, ok := cookies.Get[model.OnboardingState](h.jar, r, cookies.ProviderName)
	if !ok || state.ProviderName != p.Name() {
		redirect(w, r, "/login")
		return
	}

	req := model.SignupRequest{
		Username:     r.PostFormValue("username"),
		Name:         r.PostFormValue("name"),
		AgreeToTerms: formBool(r, "agreeToTermsOfServiceAndPrivacyPolicy"),
		Remember:     formBool(r, "remember"),
		RedirectTo:   r.PostFormValue("redirectTo"),
	}
	sess, err := h.connections.SignupWithConnection(r.Context(), state, req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.jar.Clear(w, cookies.ProviderName)
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
