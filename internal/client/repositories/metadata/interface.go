// Package metadata stores small key/value settings of the client cache:
// the sync cursor, the signed-in user and their tokens.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyCursor       = "clid"
	KeyUsername     = "username"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Repository is a string key/value store. Get returns "" for absent keys.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error

	Cursor(ctx context.Context) (int64, error)
	SetCursor(ctx context.Context, clid int64) error
}
