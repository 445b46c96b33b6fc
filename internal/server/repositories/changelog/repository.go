// Package changelog stores the append-only change ledger: one entry per
// accepted card mutation, ordered by a global position.
package changelog

import (
	"context"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

// Repository appends to and reads from the ledger.
type Repository interface {
	// Append stores e and returns its position. It must run in the same
	// transaction as the card mutation it records. A second entry for the
	// same live version, or a second tombstone, yields common.ErrVersionStale.
	Append(ctx context.Context, e *models.ChangeLogEntry) (int64, error)

	// ChangesSince returns the owner's changes with cursor < position <= head,
	// coalesced to the last state per card, in order of first appearance.
	ChangesSince(ctx context.Context, ownerID string, cursor, head int64) ([]models.Change, error)

	// MaxPosition returns the highest position across all owners, 0 when the
	// ledger is empty.
	MaxPosition(ctx context.Context) (int64, error)

	// History returns every entry the owner has for a card, by position.
	History(ctx context.Context, ownerID string, cardID int64) ([]models.ChangeLogEntry, error)
}
