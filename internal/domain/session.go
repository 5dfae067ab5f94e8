package domain

import "time"

// Session binds an opaque token to exactly one customer.
type Session struct {
	Token      string
	CustomerID string
	Valid      bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
// A zero ExpiresAt never expires.
func (s Session) Active(now time.Time) bool {
	if !s.Valid {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}
