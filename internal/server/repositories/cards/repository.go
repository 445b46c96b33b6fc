// Package cards declares the owner-scoped card store with its optimistic
// concurrency gate, and a PostgreSQL implementation.
package cards

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

// Repository stores card rows. It never touches the change ledger; pairing
// each mutation with a ledger entry is the caller's job.
//
// Every lookup is scoped by owner: a card of another owner is reported as
// common.ErrorNotFound, exactly like a missing one.
type Repository interface {
	// Create inserts card at version 1 and fills in its ID.
	// A display number collision yields common.ErrNumberTaken.
	Create(ctx context.Context, card *models.Card) (*models.Card, error)

	Get(ctx context.Context, ownerID string, id int64) (*models.Card, error)

	// Update is the OCC gate. With expected greater than the stored version
	// it returns the current card and common.ErrVersionTooNew; with a smaller
	// one the current card and common.ErrVersionStale. Identical content at the
	// expected version is a no-op and returns the card unchanged. Otherwise the
	// content is replaced and the version becomes expected+1.
	Update(ctx context.Context, ownerID string, id int64, content string, expected int64, at time.Time) (*models.Card, error)

	// Delete removes the row and returns it as it was just before deletion.
	Delete(ctx context.Context, ownerID string, id int64) (*models.Card, error)

	// List returns the owner's cards with firstID <= id <= lastID, by id.
	List(ctx context.Context, ownerID string, firstID, lastID int64) ([]*models.Card, error)
	ListAll(ctx context.Context, ownerID string) ([]*models.Card, error)

	// NextDaySeq returns the next free display sequence for day.
	NextDaySeq(ctx context.Context, ownerID string, day time.Time) (int, error)
}
