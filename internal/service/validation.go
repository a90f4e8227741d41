package service

import (
	"net/mail"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// validator accumulates the first error per field.
type validator struct {
	fields map[string]string
}

func (v *validator) add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, ok := v.fields[field]; !ok {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func (v *validator) username(field, username string) {
	switch {
	case len(username) < 3:
		v.add(field, "Username is too short")
	case len(username) > 20:
		v.add(field, "Username is too long")
	case !usernamePattern.MatchString(username):
		v.add(field, "Username can only include letters, numbers, and underscores")
	}
}

func (v *validator) password(field, password string) {
	switch {
	case len(password) < 6:
		v.add(field, "Password is too short")
	case len(password) > 72:
		v.add(field, "Password is too long")
	}
}

func (v *validator) name(field, name string) {
	switch {
	case len(name) < 3:
		v.add(field, "Name is too short")
	case len(name) > 40:
		v.add(field, "Name is too long")
	}
}

func (v *validator) email(field, email string) {
	if len(email) < 3 || len(email) > 100 {
		v.add(field, "Email is invalid")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.add(field, "Email is invalid")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
