package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
)

// maxNumberAttempts bounds the retries of Create when two cards race for the
// same display number.
const maxNumberAttempts = 5

// ConflictError is returned by Update when the optimistic concurrency gate
// rejects a write. Err is common.ErrVersionTooNew or common.ErrVersionStale;
// Current is the authoritative card.
type ConflictError struct {
	Err     error
	Current *models.Card
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: card %d is at version %d", e.Err, e.Current.ID, e.Current.Version)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// SyncResult is what a client needs to catch up: the coalesced changes after
// its cursor and the cursor to remember next.
type SyncResult struct {
	Changes  []models.Change
	Position int64
}

// MutationResult is returned by Create and Update.
type MutationResult struct {
	Card *models.Card
	Sync *SyncResult
}

// CardService coordinates card mutations with the change ledger and answers
// catch-up queries. Each mutation runs in one transaction: the card row and
// its ledger entry are committed together or not at all.
type CardService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewCardService(db *sql.DB, m repomanager.RepositoryManager) *CardService {
	return &CardService{db: db, repomanager: m, now: time.Now}
}

// timestamp is the current UTC time at the microsecond precision TIMESTAMPTZ
// stores, so a returned card matches the same card read back later.
func (s *CardService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create stores a new card at version 1, records it in the ledger and
// returns it with the changes after cursor.
func (s *CardService) Create(ctx context.Context, ownerID, content string, cursor int64) (*MutationResult, error) {
	var (
		res *MutationResult
		err error
	)
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		res, err = s.create(ctx, ownerID, content, cursor)
		if !errors.Is(err, common.ErrNumberTaken) {
			break
		}
	}
	return res, err
}

func (s *CardService) create(ctx context.Context, ownerID, content string, cursor int64) (*MutationResult, error) {
	res := &MutationResult{}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cards := s.repomanager.Cards(tx)
		now := s.timestamp()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

		seq, err := cards.NextDaySeq(ctx, ownerID, day)
		if err != nil {
			return err
		}

		card, err := cards.Create(ctx, &models.Card{
			OwnerID:    ownerID,
			CreateDay:  day,
			DaySeq:     seq,
			Content:    content,
			CreateTime: now,
			UpdateTime: now,
		})
		if err != nil {
			return err
		}
		res.Card = card

		if err := s.record(ctx, tx, card, models.Live(card.ID, card.Version, now)); err != nil {
			return err
		}

		res.Sync, err = s.sync(ctx, tx, ownerID, cursor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Update replaces the content of a card the caller last saw at expected.
// Conflicts come back as *ConflictError. Identical content at the current
// version changes nothing and still succeeds.
func (s *CardService) Update(ctx context.Context, ownerID string, cardID int64, content string, expected, cursor int64) (*MutationResult, error) {
	res := &MutationResult{}
	var current *models.Card

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.timestamp()

		card, err := s.repomanager.Cards(tx).Update(ctx, ownerID, cardID, content, expected, now)
		if err != nil {
			current = card
			return err
		}
		res.Card = card

		if card.Version != expected {
			if err := s.record(ctx, tx, card, models.Live(card.ID, card.Version, now)); err != nil {
				return err
			}
		}

		res.Sync, err = s.sync(ctx, tx, ownerID, cursor)
		return err
	})
	if err == nil {
		return res, nil
	}

	if !errors.Is(err, common.ErrVersionTooNew) && !errors.Is(err, common.ErrVersionStale) {
		return nil, err
	}

	// The ledger refused the version after the row was written; the
	// transaction is gone, so read what the winner committed.
	if current == nil {
		var getErr error
		current, getErr = s.repomanager.Cards(s.db).Get(ctx, ownerID, cardID)
		if getErr != nil {
			return nil, getErr
		}
	}
	return nil, &ConflictError{Err: err, Current: current}
}

// Delete removes a card and records its tombstone.
func (s *CardService) Delete(ctx context.Context, ownerID string, cardID, cursor int64) (*SyncResult, error) {
	var res *SyncResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.timestamp()

		card, err := s.repomanager.Cards(tx).Delete(ctx, ownerID, cardID)
		if err != nil {
			return err
		}

		if err := s.record(ctx, tx, card, models.Tombstone(card.ID, card.Version, now)); err != nil {
			return err
		}

		res, err = s.sync(ctx, tx, ownerID, cursor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *CardService) Get(ctx context.Context, ownerID string, cardID int64) (*models.Card, error) {
	return s.repomanager.Cards(s.db).Get(ctx, ownerID, cardID)
}

// List returns the owner's cards with ids in [firstID, lastID].
func (s *CardService) List(ctx context.Context, ownerID string, firstID, lastID int64) ([]*models.Card, error) {
	if firstID > lastID {
		return nil, common.ErrorValidation
	}
	return s.repomanager.Cards(s.db).List(ctx, ownerID, firstID, lastID)
}

// Changes resolves a client cursor into the delta it must apply and its next
// cursor.
func (s *CardService) Changes(ctx context.Context, ownerID string, cursor int64) (*SyncResult, error) {
	return s.sync(ctx, s.db, ownerID, cursor)
}

// History returns a card's ledger entries together with the state they
// replay to. A card the owner never had is common.ErrorNotFound.
func (s *CardService) History(ctx context.Context, ownerID string, cardID int64) ([]models.ChangeLogEntry, *models.CardState, error) {
	entries, err := s.repomanager.ChangeLog(s.db).History(ctx, ownerID, cardID)
	if err != nil {
		return nil, nil, err
	}
	state, ok := models.Replay(entries)
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	return entries, &state, nil
}

func (s *CardService) record(ctx context.Context, tx dbx.DBTX, card *models.Card, ch models.Change) error {
	_, err := s.repomanager.ChangeLog(tx).Append(ctx, &models.ChangeLogEntry{
		OwnerID:    card.OwnerID,
		CardID:     card.ID,
		Version:    ch.Encoded(),
		Content:    card.Content,
		UpdateTime: ch.UpdateTime,
	})
	return err
}

// sync reads the head first and bounds the change query by it, so the
// returned cursor never skips an entry committed in between.
func (s *CardService) sync(ctx context.Context, db dbx.DBTX, ownerID string, cursor int64) (*SyncResult, error) {
	ledger := s.repomanager.ChangeLog(db)

	head, err := ledger.MaxPosition(ctx)
	if err != nil {
		return nil, err
	}

	changes, err := ledger.ChangesSince(ctx, ownerID, cursor, head)
	if err != nil {
		return nil, err
	}
	return &SyncResult{Changes: changes, Position: head}, nil
}
