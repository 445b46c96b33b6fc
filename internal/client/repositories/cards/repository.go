// Package cards caches server cards in the local SQLite database.
package cards

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
)

type Repository interface {
	// Upsert stores c, replacing any cached copy of the same card.
	Upsert(ctx context.Context, c *models.Card) error
	// Get returns common.ErrorNotFound when the card is not cached.
	Get(ctx context.Context, id int64) (*models.Card, error)
	// Delete is a no-op for cards that are not cached.
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Card, error)
}
