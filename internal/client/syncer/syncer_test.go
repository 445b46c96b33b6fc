package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/cardkeeper/internal/client/api"
	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_EmptyServer(t *testing.T) {
	d := newDevice(t, newFakeServer())

	rep, err := d.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{}, rep)
	assert.Empty(t, d.cached(t))
}

func TestCreate_CachesWithoutRefetch(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	ctx := context.Background()

	c, err := d.Create(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, map[int64]string{1: "v1:hello"}, d.cached(t))
	assert.Equal(t, int64(1), d.cursor(t))
	assert.Zero(t, srv.getCalls)
}

func TestTwoDevicesConverge(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "one")
	require.NoError(t, err)
	_, err = a.Create(ctx, "two")
	require.NoError(t, err)
	_, err = a.Edit(ctx, 1, "one!")
	require.NoError(t, err)

	rep, err := b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Fetched)
	assert.Equal(t, int64(3), rep.Clid)
	assert.Equal(t, a.cached(t), b.cached(t))

	require.NoError(t, b.Remove(ctx, 2))
	_, err = b.Edit(ctx, 1, "one!!")
	require.NoError(t, err)

	rep, err = a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, map[int64]string{1: "v3:one!!"}, a.cached(t))
	assert.Equal(t, a.cached(t), b.cached(t))
	assert.Equal(t, a.cursor(t), b.cursor(t))
}

func TestSync_Idempotent(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "x")
	require.NoError(t, err)

	_, err = b.Sync(ctx)
	require.NoError(t, err)
	calls := srv.getCalls

	rep, err := b.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Clid: 1}, rep)
	assert.Equal(t, calls, srv.getCalls)
}

func TestSync_SkipsCardsAlreadyCurrent(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, a.metadata(a.db).SetCursor(ctx, 0))

	rep, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Fetched)
	assert.Zero(t, srv.getCalls)
}

func TestEdit_StaleStoresServerCard(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "base")
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)

	_, err = a.Edit(ctx, 1, "from a")
	require.NoError(t, err)

	got, err := b.Edit(ctx, 1, "from b")
	require.ErrorIs(t, err, common.ErrVersionStale)
	require.NotNil(t, got)
	assert.Equal(t, "from a", got.Content)
	assert.Equal(t, map[int64]string{1: "v2:from a"}, b.cached(t))

	// retry against the fresh version succeeds
	_, err = b.Edit(ctx, 1, "from b")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "v3:from b"}, b.cached(t))
}

func TestEdit_TooNewResyncs(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "x")
	require.NoError(t, err)

	bogus := &models.Card{ID: 1, Number: "20240301-1", Version: 7, Content: "x", CreateTime: now, UpdateTime: now}
	require.NoError(t, a.cards(a.db).Upsert(ctx, bogus))
	require.NoError(t, a.metadata(a.db).SetCursor(ctx, 0))

	_, err = a.Edit(ctx, 1, "y")
	require.ErrorIs(t, err, common.ErrVersionTooNew)

	// resync rewrote the cursor; the bogus copy stays until the server moves past it
	assert.Equal(t, int64(1), a.cursor(t))
}

func TestEdit_NotCached(t *testing.T) {
	d := newDevice(t, newFakeServer())
	_, err := d.Edit(context.Background(), 9, "x")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEdit_DeletedOnServerDropsLocal(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	ctx := context.Background()

	_, err := a.Create(ctx, "x")
	require.NoError(t, err)
	_, err = b.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Remove(ctx, 1))

	_, err = b.Edit(ctx, 1, "y")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, b.cached(t))
}

func TestRemove_NotFoundDropsLocal(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	ctx := context.Background()

	card := &models.Card{ID: 5, Number: "n", Version: 1, Content: "ghost", CreateTime: now, UpdateTime: now}
	require.NoError(t, a.cards(a.db).Upsert(ctx, card))

	err := a.Remove(ctx, 5)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, a.cached(t))
}

// vanishing returns a catch-up naming a card that is gone by the time it is
// fetched.
type vanishing struct {
	*fakeServer
}

func (v vanishing) Changes(context.Context, int64) (*api.SyncResult, error) {
	return &api.SyncResult{Clid: 4, Changes: []models.Change{{CardID: 3, Version: 2}}}, nil
}

func TestSync_CardDeletedBetweenChangesAndFetch(t *testing.T) {
	d := newDevice(t, vanishing{newFakeServer()})

	rep, err := d.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Fetched)
	assert.Equal(t, int64(4), d.cursor(t))
}

type failingFetch struct {
	*fakeServer
}

func (f failingFetch) GetCard(context.Context, int64) (*models.Card, error) {
	return nil, api.ErrUnavailable
}

func TestSync_FetchFailureLeavesCacheUntouched(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	ctx := context.Background()
	_, err := a.Create(ctx, "x")
	require.NoError(t, err)

	b := newDevice(t, failingFetch{srv})
	_, err = b.Sync(ctx)
	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Empty(t, b.cached(t))
	assert.Zero(t, b.cursor(t))
}

type changesDown struct {
	*fakeServer
}

func (changesDown) Changes(context.Context, int64) (*api.SyncResult, error) {
	return nil, errors.New("boom")
}

func TestSync_ChangesError(t *testing.T) {
	d := newDevice(t, changesDown{newFakeServer()})
	_, err := d.Sync(context.Background())
	require.ErrorContains(t, err, "error fetching changes")
}
