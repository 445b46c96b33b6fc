// Package users stores account records backing the identity resolver.
package users

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID; a taken username yields
	// common.ErrUserExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
