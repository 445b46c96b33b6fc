package models

import "time"

// User owns cards. PasswordHash is argon2id(password, Salt).
type User struct {
	ID           string
	UserName     string
	Salt         []byte
	PasswordHash []byte
	CreatedAt    time.Time
}
