// Package refreshtokens declares storage for the opaque refresh tokens that
// let a client renew its access token.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, valid until expiresAt.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Find returns common.ErrorNotFound for unknown tokens.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete returns common.ErrorNotFound for unknown or already consumed tokens.
	Delete(ctx context.Context, token string) error
}
