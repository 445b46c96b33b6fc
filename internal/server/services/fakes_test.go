package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	cardsrepo "github.com/dmitrijs2005/cardkeeper/internal/server/repositories/cards"
	changelogrepo "github.com/dmitrijs2005/cardkeeper/internal/server/repositories/changelog"
	refreshtokensrepo "github.com/dmitrijs2005/cardkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/cardkeeper/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeRepoManager hands out the same fakes regardless of the DBTX; the
// embedded interface panics on anything a test did not wire.
type fakeRepoManager struct {
	repomanager.RepositoryManager
	usersRepo  usersrepo.Repository
	tokensRepo refreshtokensrepo.Repository
	cardsRepo  cardsrepo.Repository
	ledgerRepo changelogrepo.Repository
}

func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.usersRepo }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.tokensRepo }
func (m *fakeRepoManager) Cards(dbx.DBTX) cardsrepo.Repository                 { return m.cardsRepo }
func (m *fakeRepoManager) ChangeLog(dbx.DBTX) changelogrepo.Repository         { return m.ledgerRepo }

// memStore is an in-memory card table plus ledger with the same contract as
// the PostgreSQL repositories. It does not model rollback.
type memStore struct {
	cards   map[int64]*models.Card
	ledger  []models.ChangeLogEntry
	nextID  int64
	nextPos int64

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{cards: map[int64]*models.Card{}}
}

func copyCard(c *models.Card) *models.Card {
	cp := *c
	return &cp
}

func (m *memStore) Create(_ context.Context, card *models.Card) (*models.Card, error) {
	for _, c := range m.cards {
		if c.OwnerID == card.OwnerID && c.CreateDay.Equal(card.CreateDay) && c.DaySeq == card.DaySeq {
			return nil, common.ErrNumberTaken
		}
	}
	m.nextID++
	card.ID = m.nextID
	card.Version = 1
	m.cards[card.ID] = copyCard(card)
	return copyCard(card), nil
}

func (m *memStore) Get(_ context.Context, ownerID string, id int64) (*models.Card, error) {
	c, ok := m.cards[id]
	if !ok || c.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return copyCard(c), nil
}

func (m *memStore) Update(ctx context.Context, ownerID string, id int64, content string, expected int64, at time.Time) (*models.Card, error) {
	c, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	switch {
	case expected > c.Version:
		return c, common.ErrVersionTooNew
	case expected < c.Version:
		return c, common.ErrVersionStale
	case content == c.Content:
		return c, nil
	}
	c.Content = content
	c.Version++
	c.UpdateTime = at
	m.cards[id] = copyCard(c)
	return c, nil
}

func (m *memStore) Delete(ctx context.Context, ownerID string, id int64) (*models.Card, error) {
	c, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	delete(m.cards, id)
	return c, nil
}

func (m *memStore) List(_ context.Context, ownerID string, firstID, lastID int64) ([]*models.Card, error) {
	out := []*models.Card{}
	for _, c := range m.cards {
		if c.OwnerID == ownerID && c.ID >= firstID && c.ID <= lastID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListAll(ctx context.Context, ownerID string) ([]*models.Card, error) {
	return m.List(ctx, ownerID, 0, m.nextID)
}

func (m *memStore) NextDaySeq(_ context.Context, ownerID string, day time.Time) (int, error) {
	seq := 0
	for _, c := range m.cards {
		if c.OwnerID == ownerID && c.CreateDay.Equal(day) && c.DaySeq > seq {
			seq = c.DaySeq
		}
	}
	return seq + 1, nil
}

func (m *memStore) Append(_ context.Context, e *models.ChangeLogEntry) (int64, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	for _, old := range m.ledger {
		if old.CardID != e.CardID {
			continue
		}
		if old.Version == e.Version || (old.Version < 0 && e.Version < 0) {
			return 0, common.ErrVersionStale
		}
	}
	m.nextPos++
	e.ID = m.nextPos
	m.ledger = append(m.ledger, *e)
	return e.ID, nil
}

func (m *memStore) ChangesSince(_ context.Context, ownerID string, cursor, head int64) ([]models.Change, error) {
	var entries []models.ChangeLogEntry
	for _, e := range m.ledger {
		if e.OwnerID == ownerID && e.ID > cursor && e.ID <= head {
			entries = append(entries, e)
		}
	}
	return models.Coalesce(entries), nil
}

func (m *memStore) MaxPosition(context.Context) (int64, error) {
	return m.nextPos, nil
}

func (m *memStore) History(_ context.Context, ownerID string, cardID int64) ([]models.ChangeLogEntry, error) {
	out := []models.ChangeLogEntry{}
	for _, e := range m.ledger {
		if e.OwnerID == ownerID && e.CardID == cardID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) entriesFor(cardID int64) []models.ChangeLogEntry {
	out, _ := m.History(context.Background(), "u1", cardID)
	return out
}
