package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func formErrors(fields map[string]string) map[string]any {
	return map[string]any{"errors": fields}
}

// handleError maps service errors onto responses. Anything unrecognised is
// logged and reported as a 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	var unauth *service.UnauthenticatedError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, formErrors(verr.Fields))
	case errors.As(err, &unauth):
		http.Redirect(w, r, unauth.LoginURL(), http.StatusSeeOther)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusBadRequest, formErrors(map[string]string{"": "Invalid username or password"}))
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		writeJSON(w, http.StatusBadRequest, formErrors(map[string]string{"code": "Invalid code"}))
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("not found"))
	case errors.Is(err, service.ErrConnectionConflict):
		writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// redirectWithToast stores a flash message and redirects.
func redirectWithToast(w http.ResponseWriter, r *http.Request, jar *cookies.Jar, to string, toast model.Toast) {
	if err := cookies.Set(jar, w, cookies.ToastName, toast, cookies.FlowTTL); err != nil {
		slog.Error("failed to set toast", "error", err)
	}
	redirect(w, r, to)
}

// takeToast returns and clears the pending flash message.
func takeToast(w http.ResponseWriter, r *http.Request, jar *cookies.Jar) *model.Toast {
	toast, ok := cookies.Get[model.Toast](jar, r, cookies.ToastName)
	if !ok {
		return nil
	}
	jar.Clear(w, cookies.ToastName)
	return &toast
}

func formBool(r *http.Request, key string) bool {
	switch r.PostFormValue(key) {
	case "on", "true", "1":
		return true
	}
	return false
}

// withRedirectTo appends a redirectTo query parameter when one is set.
func withRedirectTo(path, redirectTo string) string {
	if redirectTo == "" {
		return path
	}
	return path + "?" + url.Values{"redirectTo": {redirectTo}}.Encode()
}

func normalizeFormEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
