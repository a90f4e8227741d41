// Package oauth talks to external identity providers.
package oauth

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

var (
	ErrUnknownProvider   = errors.New("unknown oauth provider")
	ErrNoVerifiedEmail   = errors.New("provider account has no verified email")
	ErrMissingCode       = errors.New("missing authorization code")
	ErrInvalidCode       = errors.New("invalid authorization code")
	ErrProfileIncomplete = errors.New("provider profile has no id")
)

// Provider is an OAuth2 identity provider using the authorization code flow
// with PKCE.
type Provider interface {
	// Name is the path segment in /auth/{provider}.
	Name() string
	// Label is the human readable provider name.
	Label() string
	// AuthCodeURL is where the visitor is sent to authenticate.
	AuthCodeURL(state, verifier string) string
	// Profile exchanges the callback code and fetches the identity.
	Profile(ctx context.Context, code, verifier string) (model.ProviderProfile, error)
}

// NewVerifier returns a fresh PKCE code verifier for one authorization request.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// Registry looks providers up by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a Registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
