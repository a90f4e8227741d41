package oauth

import (
	"context"
	"net/url"
	"strings"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

// MockPrefix marks client ids that select the offline mock provider.
const MockPrefix = "MOCK_"

// MockCode is the authorization code the mock provider hands out.
const MockCode = "MOCK_CODE_GITHUB"

// IsMockClientID reports whether id selects the mock provider.
func IsMockClientID(id string) bool {
	return strings.HasPrefix(id, MockPrefix)
}

// Mock stands in for GitHub during local development. It skips the provider
// entirely and redirects straight back to the callback.
type Mock struct {
	redirectURL string
	profile     model.ProviderProfile
}

// NewMock creates a mock GitHub provider returning profile.
func NewMock(redirectURL string, profile model.ProviderProfile) *Mock {
	return &Mock{redirectURL: redirectURL, profile: profile}
}

func (m *Mock) Name() string  { return "github" }
func (m *Mock) Label() string { return "GitHub (mock)" }

func (m *Mock) AuthCodeURL(state, _ string) string {
	q := url.Values{"code": {MockCode}, "state": {state}}
	sep := "?"
	if strings.Contains(m.redirectURL, "?") {
		sep = "&"
	}
	return m.redirectURL + sep + q.Encode()
}

func (m *Mock) Profile(_ context.Context, code, _ string) (model.ProviderProfile, error) {
	if code == "" {
		return model.ProviderProfile{}, ErrMissingCode
	}
	if code != MockCode {
		return model.ProviderProfile{}, ErrInvalidCode
	}
	return m.profile, nil
}
