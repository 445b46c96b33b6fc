package httpapi

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

// Response codes carried in the JSON body alongside HTTP 200.
const (
	codeOK     = 0
	codeTooNew = 1
	codeStale  = 2
)

type cardDTO struct {
	CID        int64     `json:"cid"`
	Number     string    `json:"number"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func toCardDTO(c *models.Card) *cardDTO {
	if c == nil {
		return nil
	}
	return &cardDTO{
		CID:        c.ID,
		Number:     c.Number(),
		Version:    c.Version,
		Content:    c.Content,
		CreateTime: c.CreateTime,
		UpdateTime: c.UpdateTime,
	}
}

// changeTuple is encoded as [cid, version] or [cid, update_time, version].
// The version uses the signed wire encoding: negative means deleted.
type changeTuple struct {
	models.Change
	withTime bool
}

func (t changeTuple) MarshalJSON() ([]byte, error) {
	if t.withTime {
		return json.Marshal([]any{t.CardID, t.UpdateTime, t.Encoded()})
	}
	return json.Marshal([]any{t.CardID, t.Encoded()})
}

func toChangeTuples(changes []models.Change, withTime bool) []changeTuple {
	out := make([]changeTuple, 0, len(changes))
	for _, ch := range changes {
		out = append(out, changeTuple{Change: ch, withTime: withTime})
	}
	return out
}

type syncDTO struct {
	Clid    int64         `json:"clid"`
	Changes []changeTuple `json:"changes"`
}

func toSyncDTO(r *services.SyncResult, withTime bool) syncDTO {
	return syncDTO{Clid: r.Position, Changes: toChangeTuples(r.Changes, withTime)}
}

type mutationResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg,omitempty"`
	Card *cardDTO `json:"card,omitempty"`
	*syncDTO
}

type cardResponse struct {
	Code int      `json:"code"`
	Card *cardDTO `json:"card"`
	*syncDTO
}

type cardsResponse struct {
	Code  int        `json:"code"`
	Cards []*cardDTO `json:"cards"`
	*syncDTO
}

type changesResponse struct {
	Code int `json:"code"`
	syncDTO
}

type historyEntryDTO struct {
	Clid       int64     `json:"clid"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	UpdateTime time.Time `json:"update_time"`
}

type historyStateDTO struct {
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	UpdateTime time.Time `json:"update_time"`
	Deleted    bool      `json:"deleted"`
}

type historyResponse struct {
	Code    int               `json:"code"`
	CID     int64             `json:"cid"`
	State   historyStateDTO   `json:"state"`
	Entries []historyEntryDTO `json:"entries"`
}

type createCardRequest struct {
	Content  *string `json:"content" binding:"required"`
	LastClid int64   `json:"last_clid"`
}

type updateCardRequest struct {
	Content     *string `json:"content" binding:"required"`
	LastVersion *int64  `json:"last_version" binding:"required"`
	LastClid    int64   `json:"last_clid"`
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokensResponse struct {
	Code         int    `json:"code"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registerResponse struct {
	Code   int    `json:"code"`
	UserID string `json:"user_id"`
}

type exportResponse struct {
	Code int    `json:"code"`
	Key  string `json:"key"`
	URL  string `json:"url"`
	Clid int64  `json:"clid"`
}
