package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/roblesdotdev/epic-notes/internal/model"
)

const (
	githubAPIURL = "https://api.github.com"

	// exchangeTimeout bounds the token exchange and profile requests.
	exchangeTimeout = 10 * time.Second
)

// GitHub authenticates with GitHub OAuth apps.
type GitHub struct {
	config oauth2.Config
	apiURL string
}

// GitHubOption configures a GitHub provider.
type GitHubOption func(*GitHub)

// WithEndpoint overrides the authorize and token URLs.
func WithEndpoint(e oauth2.Endpoint) GitHubOption {
	return func(g *GitHub) { g.config.Endpoint = e }
}

// WithAPIURL overrides the REST API base URL.
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHub) { g.apiURL = strings.TrimRight(u, "/") }
}

// NewGitHub creates a GitHub provider.
func NewGitHub(clientID, clientSecret, redirectURL string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: githubAPIURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHub) Name() string  { return "github" }
func (g *GitHub) Label() string { return "GitHub" }

func (g *GitHub) AuthCodeURL(state, verifier string) string {
	return g.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Profile(ctx context.Context, code, verifier string) (model.ProviderProfile, error) {
	if code == "" {
		return model.ProviderProfile{}, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.ProviderProfile{}, fmt.Errorf("exchanging code: %w", err)
	}
	client := g.config.Client(ctx, token)

	var user githubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return model.ProviderProfile{}, err
	}
	if user.ID == 0 {
		return model.ProviderProfile{}, ErrProfileIncomplete
	}

	var emails []githubEmail
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return model.ProviderProfile{}, err
	}
	email := primaryVerifiedEmail(emails)
	if email == "" {
		return model.ProviderProfile{}, ErrNoVerifiedEmail
	}

	return model.ProviderProfile{
		ID:       strconv.FormatInt(user.ID, 10),
		Email:    email,
		Username: user.Login,
		Name:     user.Name,
		ImageURL: user.AvatarURL,
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func primaryVerifiedEmail(emails []githubEmail) string {
	var fallback string
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback
}
