package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
)

const (
	CSRFField  = "csrf"
	CSRFHeader = "X-CSRF-Token"

	maxFormBytes = 1 << 20
)

// CSRF issues a token cookie and rejects unsafe requests that do not echo it
// in the csrf form field or the X-CSRF-Token header.
func CSRF(jar *cookies.Jar) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if c, err := r.Cookie(cookies.CSRFName); err == nil && len(c.Value) == crypto.CSRFTokenLength {
				token = c.Value
			}

			if !safeMethod(r.Method) {
				sent := r.Header.Get(CSRFHeader)
				if sent == "" {
					r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
					sent = r.PostFormValue(CSRFField)
				}
				if token == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
					writeJSONError(w, http.StatusForbidden, "invalid csrf token")
					return
				}
			}

			if token == "" {
				var err error
				token, err = crypto.CSRFToken()
				if err != nil {
					slog.Error("failed to generate csrf token", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				jar.SetPlain(w, cookies.CSRFName, token)
			}

			next.ServeHTTP(w, r.WithContext(withCSRF(r.Context(), token)))
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
