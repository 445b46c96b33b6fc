// Package syncer keeps the local card cache in step with the server: it
// applies catch-up responses and routes card mutations through the API.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/client/api"
	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
	"github.com/dmitrijs2005/cardkeeper/internal/client/repositories/cards"
	"github.com/dmitrijs2005/cardkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

// API is the part of api.Client the syncer needs.
type API interface {
	Changes(ctx context.Context, cursor int64) (*api.SyncResult, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	CreateCard(ctx context.Context, content string, cursor int64) (*api.MutationResult, error)
	UpdateCard(ctx context.Context, id int64, content string, lastVersion, cursor int64) (*api.MutationResult, error)
	DeleteCard(ctx context.Context, id, cursor int64) (*api.SyncResult, error)
}

// Report summarizes what one application of changes did to the cache.
type Report struct {
	Fetched int
	Removed int
	Clid    int64
}

type Syncer struct {
	api    API
	db     *sql.DB
	logger logging.Logger
}

func New(a API, db *sql.DB, l logging.Logger) *Syncer {
	return &Syncer{api: a, db: db, logger: l.With("module", "syncer")}
}

func (s *Syncer) cards(db dbx.DBTX) cards.Repository {
	return cards.NewSQLiteRepository(db)
}

func (s *Syncer) metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// Sync catches the cache up with the server in one round trip plus one
// fetch per card whose cached copy is behind.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	cursor, err := s.metadata(s.db).Cursor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.api.Changes(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("error fetching changes: %w", err)
	}
	return s.apply(ctx, res, nil)
}

// Create adds a card on the server and caches it.
func (s *Syncer) Create(ctx context.Context, content string) (*models.Card, error) {
	cursor, err := s.metadata(s.db).Cursor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.api.CreateCard(ctx, content, cursor)
	if err != nil {
		return nil, fmt.Errorf("error creating card: %w", err)
	}
	if _, err := s.apply(ctx, res.Sync, res.Card); err != nil {
		return nil, err
	}
	return res.Card, nil
}

// Edit replaces the content of a cached card, using the cached version as
// the expected one.
//
// On common.ErrVersionStale the server's card replaces the cached copy and is
// returned with the error so the caller can show it. On
// common.ErrVersionTooNew the cache is out of step with the server and is
// resynced.
func (s *Syncer) Edit(ctx context.Context, id int64, content string) (*models.Card, error) {
	local, err := s.cards(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cursor, err := s.metadata(s.db).Cursor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.api.UpdateCard(ctx, id, content, local.Version, cursor)
	switch {
	case err == nil:
		if _, err := s.apply(ctx, res.Sync, res.Card); err != nil {
			return nil, err
		}
		return res.Card, nil

	case errors.Is(err, common.ErrVersionStale) && res != nil && res.Card != nil:
		s.logger.Warn(ctx, "edit rejected, card changed on server", "cid", id, "local_version", local.Version, "server_version", res.Card.Version)
		if uerr := s.cards(s.db).Upsert(ctx, res.Card); uerr != nil {
			return nil, uerr
		}
		return res.Card, err

	case errors.Is(err, common.ErrVersionTooNew) && res != nil:
		s.logger.Warn(ctx, "cache ahead of server, resyncing", "cid", id, "local_version", local.Version)
		if _, serr := s.Sync(ctx); serr != nil {
			return nil, errors.Join(err, serr)
		}
		return res.Card, err

	case errors.Is(err, common.ErrorNotFound):
		if derr := s.cards(s.db).Delete(ctx, id); derr != nil {
			return nil, derr
		}
		return nil, err

	default:
		return nil, fmt.Errorf("error updating card: %w", err)
	}
}

// Remove deletes a card on the server. A card the server no longer has is
// dropped from the cache as well.
func (s *Syncer) Remove(ctx context.Context, id int64) error {
	cursor, err := s.metadata(s.db).Cursor(ctx)
	if err != nil {
		return err
	}

	res, err := s.api.DeleteCard(ctx, id, cursor)
	if errors.Is(err, common.ErrorNotFound) {
		if derr := s.cards(s.db).Delete(ctx, id); derr != nil {
			return derr
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("error deleting card: %w", err)
	}

	_, err = s.apply(ctx, res, nil)
	return err
}

// apply brings the cache to the state described by res and stores its
// cursor. known is a card the caller already holds (the result of a
// mutation); it is cached as is and never refetched.
//
// Network fetches happen before the local transaction, so the cache is
// either fully updated with the new cursor or left untouched.
func (s *Syncer) apply(ctx context.Context, res *api.SyncResult, known *models.Card) (*Report, error) {
	if res == nil {
		return nil, errors.New("response carries no changes")
	}

	repo := s.cards(s.db)
	var (
		upserts []*models.Card
		removes []int64
	)
	if known != nil {
		upserts = append(upserts, known)
	}

	for _, ch := range res.Changes {
		if ch.Deleted() {
			removes = append(removes, ch.CardID)
			continue
		}
		if known != nil && known.ID == ch.CardID && known.Version >= ch.Version {
			continue
		}

		local, err := repo.Get(ctx, ch.CardID)
		switch {
		case err == nil && local.Version >= ch.Version:
			continue
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}

		card, err := s.api.GetCard(ctx, ch.CardID)
		if errors.Is(err, common.ErrorNotFound) {
			// deleted after the catch-up was computed; its tombstone comes next time
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error fetching card %d: %w", ch.CardID, err)
		}
		upserts = append(upserts, card)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cr := s.cards(tx)
		for _, c := range upserts {
			if err := cr.Upsert(ctx, c); err != nil {
				return err
			}
		}
		for _, id := range removes {
			if err := cr.Delete(ctx, id); err != nil {
				return err
			}
		}
		return s.metadata(tx).SetCursor(ctx, res.Clid)
	})
	if err != nil {
		return nil, err
	}

	fetched := len(upserts)
	if known != nil {
		fetched--
	}
	s.logger.Debug(ctx, "changes applied", "clid", res.Clid, "fetched", fetched, "removed", len(removes))
	return &Report{Fetched: fetched, Removed: len(removes), Clid: res.Clid}, nil
}
