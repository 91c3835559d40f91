package session

import "time"

// Session is a server-side browser session keyed by an opaque cookie token.
// The TTL is fixed at creation; lookups past ExpiresAt behave as not found.
type Session struct {
	Token     string    `json:"-" db:"token"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"` // UTC
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
