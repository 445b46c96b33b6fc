package models

import "time"

// RefreshToken is a stored, single-use refresh token. Rotation deletes it.
type RefreshToken struct {
	ID        int64
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
