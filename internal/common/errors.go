// Package common defines shared constants and sentinel errors used across
// client and server layers of cardkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound  = errors.New("not found")
	ErrNumberTaken = errors.New("card number taken")
	ErrUserExists  = errors.New("user already exists")

	// Optimistic concurrency outcomes of a card update.
	//
	// ErrVersionTooNew: the client claims a version the server never produced.
	// ErrVersionStale: another writer advanced the card past the client's version.
	ErrVersionTooNew = errors.New("version too new")
	ErrVersionStale  = errors.New("version stale")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Token lifecycle errors.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
