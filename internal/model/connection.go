package model

import "time"

// Connection links an external OAuth identity to a user.
// (ProviderName, ProviderID) maps to at most one user.
type Connection struct {
	ID           string
	ProviderName string
	ProviderID   string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConnectionResponse is the client view of a connection.
type ConnectionResponse struct {
	ID           string    `json:"id"`
	ProviderName string    `json:"providerName"`
	ProviderID   string    `json:"providerId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProviderProfile is the identity an OAuth provider vouched for.
type ProviderProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// OnboardingState carries a provider identity with no local account from the
// OAuth callback to the provider onboarding form.
type OnboardingState struct {
	Email        string `json:"email"`
	ProviderName string `json:"providerName"`
	ProviderID   string `json:"providerId"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	ImageURL     string `json:"imageUrl,omitempty"`
}
