package model

import "time"

// User represents a user in the database.
type User struct {
	ID        string
	Username  string
	Email     string
	Name      *string
	ImageID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the user's name, falling back to the username.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Username
}

// LoginRequest represents a submitted login form.
type LoginRequest struct {
	Username   string
	Password   string
	Remember   bool
	RedirectTo string
}

// SignupRequest represents the onboarding form submitted after the email
// address was verified.
type SignupRequest struct {
	Email           string
	Username        string
	Name            string
	Password        string
	ConfirmPassword string
	AgreeToTerms    bool
	Remember        bool
	RedirectTo      string
}

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	ImageID   *string   `json:"imageId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserResponse strips a user down to the fields clients may see.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		ImageID:   u.ImageID,
		CreatedAt: u.CreatedAt,
	}
}
