package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

type cardWire struct {
	CID        int64     `json:"cid"`
	Number     string    `json:"number"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func (w *cardWire) model() *models.Card {
	if w == nil {
		return nil
	}
	return &models.Card{
		ID:         w.CID,
		Number:     w.Number,
		Version:    w.Version,
		Content:    w.Content,
		CreateTime: w.CreateTime,
		UpdateTime: w.UpdateTime,
	}
}

// syncWire carries the piggybacked catch-up. Changes are [cid, version]
// tuples.
type syncWire struct {
	Clid    *int64     `json:"clid"`
	Changes [][2]int64 `json:"changes"`
}

func (w syncWire) model() *SyncResult {
	if w.Clid == nil {
		return nil
	}
	res := &SyncResult{Clid: *w.Clid, Changes: make([]models.Change, 0, len(w.Changes))}
	for _, t := range w.Changes {
		res.Changes = append(res.Changes, models.Change{CardID: t[0], Version: t[1]})
	}
	return res
}

// SyncResult is the list of cards changed after the request's cursor and the
// cursor to remember next.
type SyncResult struct {
	Clid    int64
	Changes []models.Change
}

// MutationResult is the outcome of a create or update. On a version
// conflict Card holds the server's current card and Sync is nil.
type MutationResult struct {
	Card *models.Card
	Sync *SyncResult
}

type mutationWire struct {
	Code int       `json:"code"`
	Msg  string    `json:"msg"`
	Card *cardWire `json:"card"`
	syncWire
}

func (c *Client) Changes(ctx context.Context, cursor int64) (*SyncResult, error) {
	var w syncWire
	if err := c.do(ctx, http.MethodGet, "/changes", cursorQuery(cursor), nil, &w, true); err != nil {
		return nil, err
	}
	if w.Clid == nil {
		w.Clid = new(int64)
	}
	return w.model(), nil
}

func (c *Client) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	var w struct {
		Card *cardWire `json:"card"`
	}
	if err := c.do(ctx, http.MethodGet, cardPath(id), nil, nil, &w, true); err != nil {
		return nil, err
	}
	return w.Card.model(), nil
}

// ListCards returns the cards with ids in [first, last].
func (c *Client) ListCards(ctx context.Context, first, last int64) ([]*models.Card, error) {
	q := url.Values{
		"first_cid": []string{strconv.FormatInt(first, 10)},
		"last_cid":  []string{strconv.FormatInt(last, 10)},
	}
	var w struct {
		Cards []*cardWire `json:"cards"`
	}
	if err := c.do(ctx, http.MethodGet, "/cards", q, nil, &w, true); err != nil {
		return nil, err
	}
	out := make([]*models.Card, 0, len(w.Cards))
	for _, cw := range w.Cards {
		out = append(out, cw.model())
	}
	return out, nil
}

func (c *Client) CreateCard(ctx context.Context, content string, cursor int64) (*MutationResult, error) {
	in := map[string]any{"content": content, "last_clid": cursor}
	var w mutationWire
	if err := c.do(ctx, http.MethodPost, "/cards", nil, in, &w, true); err != nil {
		return nil, err
	}
	return &MutationResult{Card: w.Card.model(), Sync: w.syncWire.model()}, nil
}

// UpdateCard sends content for a card the caller last saw at lastVersion.
// A rejected write returns common.ErrVersionTooNew or common.ErrVersionStale
// together with the server's current card.
func (c *Client) UpdateCard(ctx context.Context, id int64, content string, lastVersion, cursor int64) (*MutationResult, error) {
	in := map[string]any{"content": content, "last_version": lastVersion, "last_clid": cursor}
	var w mutationWire
	if err := c.do(ctx, http.MethodPut, cardPath(id), nil, in, &w, true); err != nil {
		return nil, err
	}

	res := &MutationResult{Card: w.Card.model(), Sync: w.syncWire.model()}
	switch w.Code {
	case CodeOK:
		return res, nil
	case CodeTooNew:
		return res, common.ErrVersionTooNew
	case CodeStale:
		return res, common.ErrVersionStale
	default:
		return nil, &StatusError{Status: http.StatusOK, Msg: w.Msg}
	}
}

func (c *Client) DeleteCard(ctx context.Context, id, cursor int64) (*SyncResult, error) {
	var w syncWire
	if err := c.do(ctx, http.MethodDelete, cardPath(id), cursorQuery(cursor), nil, &w, true); err != nil {
		return nil, err
	}
	return w.model(), nil
}

// HistoryEntry is one ledger entry of a card. Version uses the wire
// encoding.
type HistoryEntry struct {
	Clid       int64     `json:"clid"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	UpdateTime time.Time `json:"update_time"`
}

type History struct {
	State struct {
		Version    int64     `json:"version"`
		Content    string    `json:"content"`
		UpdateTime time.Time `json:"update_time"`
		Deleted    bool      `json:"deleted"`
	} `json:"state"`
	Entries []HistoryEntry `json:"entries"`
}

func (c *Client) History(ctx context.Context, id int64) (*History, error) {
	var h History
	if err := c.do(ctx, http.MethodGet, cardPath(id)+"/history", nil, nil, &h, true); err != nil {
		return nil, err
	}
	return &h, nil
}

type Export struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Clid int64  `json:"clid"`
}

func (c *Client) Export(ctx context.Context) (*Export, error) {
	var e Export
	if err := c.do(ctx, http.MethodPost, "/export", nil, nil, &e, true); err != nil {
		return nil, err
	}
	return &e, nil
}
