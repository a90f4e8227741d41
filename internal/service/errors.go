package service

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidOrExpiredCode = errors.New("invalid code")
	ErrSessionInvalid       = errors.New("session is missing or expired")
	ErrConnectionConflict   = errors.New("account is already connected to another user")
	ErrForbidden            = errors.New("you do not have permission to do that")
	ErrNotFound             = errors.New("not found")
)

// UnauthenticatedError means the request has no valid session. RedirectTo is
// where the user returns after logging in; empty means the home page.
type UnauthenticatedError struct {
	RedirectTo string
}

func (e *UnauthenticatedError) Error() string {
	return "unauthenticated"
}

// LoginURL is the login page carrying the return path.
func (e *UnauthenticatedError) LoginURL() string {
	return LoginRedirect(e.RedirectTo)
}

// LoginRedirect builds /login with an optional redirectTo parameter.
func LoginRedirect(redirectTo string) string {
	if redirectTo == "" {
		return "/login"
	}
	return "/login?" + url.Values{"redirectTo": {redirectTo}}.Encode()
}

// ValidationError carries per-field form errors. The empty key is a form-level error.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			parts = append(parts, e.Fields[k])
			continue
		}
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// SafeRedirect returns to when it is a local path, otherwise fallback.
func SafeRedirect(to, fallback string) string {
	to = strings.TrimSpace(to)
	if to == "" || !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") || strings.HasPrefix(to, "/\\") {
		return fallback
	}
	return to
}
