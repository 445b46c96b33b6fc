package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/client/api"
	"github.com/dmitrijs2005/cardkeeper/internal/client/cache"
	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

type ledgerRow struct {
	cardID  int64
	version int64
}

// fakeServer models the server's versioning and ledger in memory.
type fakeServer struct {
	mu       sync.Mutex
	nextID   int64
	cards    map[int64]*models.Card
	ledger   []ledgerRow
	getCalls int
}

func newFakeServer() *fakeServer {
	return &fakeServer{cards: map[int64]*models.Card{}}
}

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func (f *fakeServer) changesLocked(cursor int64) *api.SyncResult {
	head := int64(len(f.ledger))
	last := map[int64]int64{}
	var order []int64
	for i := cursor; i < head; i++ {
		row := f.ledger[i]
		if _, seen := last[row.cardID]; !seen {
			order = append(order, row.cardID)
		}
		last[row.cardID] = row.version
	}
	res := &api.SyncResult{Clid: head, Changes: []models.Change{}}
	for _, id := range order {
		res.Changes = append(res.Changes, models.Change{CardID: id, Version: last[id]})
	}
	return res
}

func (f *fakeServer) Changes(_ context.Context, cursor int64) (*api.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changesLocked(cursor), nil
}

func (f *fakeServer) GetCard(_ context.Context, id int64) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	c, ok := f.cards[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeServer) CreateCard(_ context.Context, content string, cursor int64) (*api.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &models.Card{
		ID: f.nextID, Number: fmt.Sprintf("20240301-%d", f.nextID), Version: 1,
		Content: content, CreateTime: now, UpdateTime: now,
	}
	f.cards[c.ID] = c
	f.ledger = append(f.ledger, ledgerRow{c.ID, 1})
	cp := *c
	return &api.MutationResult{Card: &cp, Sync: f.changesLocked(cursor)}, nil
}

func (f *fakeServer) UpdateCard(_ context.Context, id int64, content string, lastVersion, cursor int64) (*api.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	switch {
	case lastVersion > c.Version:
		return &api.MutationResult{Card: &cp}, common.ErrVersionTooNew
	case lastVersion < c.Version:
		return &api.MutationResult{Card: &cp}, common.ErrVersionStale
	}
	if c.Content != content {
		c.Version++
		c.Content = content
		f.ledger = append(f.ledger, ledgerRow{id, c.Version})
	}
	cp = *c
	return &api.MutationResult{Card: &cp, Sync: f.changesLocked(cursor)}, nil
}

func (f *fakeServer) DeleteCard(_ context.Context, id, cursor int64) (*api.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.cards, id)
	f.ledger = append(f.ledger, ledgerRow{id, -(c.Version + 1)})
	return f.changesLocked(cursor), nil
}

// device is one client with its own cache.
type device struct {
	*Syncer
}

func newDevice(t *testing.T, a API) *device {
	t.Helper()
	db, err := cache.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &device{Syncer: New(a, db, l)}
}

func (d *device) cached(t *testing.T) map[int64]string {
	t.Helper()
	list, err := d.cards(d.db).List(context.Background())
	require.NoError(t, err)
	out := map[int64]string{}
	for _, c := range list {
		out[c.ID] = fmt.Sprintf("v%d:%s", c.Version, c.Content)
	}
	return out
}

func (d *device) cursor(t *testing.T) int64 {
	t.Helper()
	clid, err := d.metadata(d.db).Cursor(context.Background())
	require.NoError(t, err)
	return clid
}
