package model

// Each multi-step flow keeps its state in its own signed cookie holding one of
// these structs.

// OnboardingEmail is a verified email waiting for the signup form.
type OnboardingEmail struct {
	Email string `json:"email"`
}

// ResetPassword is a username whose reset code was verified.
type ResetPassword struct {
	Username string `json:"username"`
}

// ChangeEmail is the address a logged in user asked to switch to, bound to
// the verification row whose code was sent to that address.
type ChangeEmail struct {
	NewEmail       string `json:"newEmail"`
	VerificationID string `json:"verificationId"`
}

// UnverifiedSession is a login waiting for its 2FA code. The session is
// created only after the code verifies.
type UnverifiedSession struct {
	UserID     string `json:"userId"`
	Remember   bool   `json:"remember"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// OAuthState pairs the state parameter with the PKCE verifier of one
// authorization request.
type OAuthState struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// Toast is a one-shot message shown after a redirect.
type Toast struct {
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}
