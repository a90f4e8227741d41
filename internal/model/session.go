package model

import "time"

// Session is a persistent login tied to a user. The cookie only carries ID.
type Session struct {
	ID             string
	UserID         string
	ExpirationDate time.Time
	CreatedAt      time.Time
}

// Expired reports whether the session can no longer authenticate at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpirationDate)
}
