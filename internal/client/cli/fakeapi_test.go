package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeCard struct {
	CID        int64     `json:"cid"`
	Number     string    `json:"number"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// fakeAPI serves the card routes from memory for a single user.
type fakeAPI struct {
	*httptest.Server

	mu     sync.Mutex
	cards  map[int64]*fakeCard
	ledger [][2]int64
	nextID int64
	logins int
}

var ts = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{cards: map[int64]*fakeCard{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"code": 0, "user_id": "u-1"})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret" {
			reply(w, http.StatusUnauthorized, map[string]any{"msg": "unauthorized"})
			return
		}
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"code": 0, "access_token": "acc", "refresh_token": "ref"})
	})
	mux.HandleFunc("GET /changes", f.authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, f.syncLocked(r, map[string]any{"code": 0}))
	}))
	mux.HandleFunc("GET /cards/{cid}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		c, ok := f.cards[cid(r)]
		if !ok {
			reply(w, http.StatusNotFound, map[string]any{"msg": "not found"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"code": 0, "card": c})
	}))
	mux.HandleFunc("POST /cards", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Content  string `json:"content"`
			LastClid int64  `json:"last_clid"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		c := &fakeCard{CID: f.nextID, Number: "20240301-" + strconv.FormatInt(f.nextID, 10), Version: 1,
			Content: in.Content, CreateTime: ts, UpdateTime: ts}
		f.cards[c.CID] = c
		f.ledger = append(f.ledger, [2]int64{c.CID, 1})
		reply(w, http.StatusOK, f.syncLocked(r, map[string]any{"code": 0, "card": c}, in.LastClid))
	}))
	mux.HandleFunc("PUT /cards/{cid}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Content     string `json:"content"`
			LastVersion int64  `json:"last_version"`
			LastClid    int64  `json:"last_clid"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		c, ok := f.cards[cid(r)]
		switch {
		case !ok:
			reply(w, http.StatusNotFound, map[string]any{"msg": "not found"})
		case in.LastVersion > c.Version:
			reply(w, http.StatusOK, map[string]any{"code": 1, "msg": "invalid version", "card": c})
		case in.LastVersion < c.Version:
			reply(w, http.StatusOK, map[string]any{"code": 2, "msg": "conflict version", "card": c})
		default:
			if in.Content != c.Content {
				c.Version++
				c.Content = in.Content
				f.ledger = append(f.ledger, [2]int64{c.CID, c.Version})
			}
			reply(w, http.StatusOK, f.syncLocked(r, map[string]any{"code": 0, "card": c}, in.LastClid))
		}
	}))
	mux.HandleFunc("DELETE /cards/{cid}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		c, ok := f.cards[cid(r)]
		if !ok {
			reply(w, http.StatusNotFound, map[string]any{"msg": "not found"})
			return
		}
		delete(f.cards, c.CID)
		f.ledger = append(f.ledger, [2]int64{c.CID, -(c.Version + 1)})
		reply(w, http.StatusOK, f.syncLocked(r, map[string]any{"code": 0}))
	}))
	mux.HandleFunc("GET /cards/{cid}/history", f.authed(func(w http.ResponseWriter, r *http.Request) {
		id := cid(r)
		var entries []map[string]any
		for i, row := range f.ledger {
			if row[0] == id {
				entries = append(entries, map[string]any{"clid": i + 1, "version": row[1], "content": "c", "update_time": ts})
			}
		}
		if len(entries) == 0 {
			reply(w, http.StatusNotFound, map[string]any{"msg": "not found"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"code": 0, "cid": id, "entries": entries})
	}))
	mux.HandleFunc("POST /export", f.authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"code": 0, "key": "users/u-1/exports/x.json", "url": f.URL + "/objects/x.json", "clid": len(f.ledger)})
	}))
	mux.HandleFunc("GET /objects/x.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exportBody))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

const exportBody = `{"clid":0,"cards":[]}`

// authed checks the bearer token and serializes handlers.
func (f *fakeAPI) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer acc" {
			reply(w, http.StatusUnauthorized, map[string]any{"msg": "invalid token"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		h(w, r)
	}
}

// syncLocked adds clid and coalesced changes after the cursor to body. The
// cursor is taken from cursor[0] when given, else from the last_clid query.
func (f *fakeAPI) syncLocked(r *http.Request, body map[string]any, cursor ...int64) map[string]any {
	var from int64
	if len(cursor) > 0 {
		from = cursor[0]
	} else {
		from, _ = strconv.ParseInt(r.URL.Query().Get("last_clid"), 10, 64)
	}

	last := map[int64]int64{}
	var order []int64
	for _, row := range f.ledger[from:] {
		if _, seen := last[row[0]]; !seen {
			order = append(order, row[0])
		}
		last[row[0]] = row[1]
	}
	changes := [][2]int64{}
	for _, id := range order {
		changes = append(changes, [2]int64{id, last[id]})
	}
	body["clid"] = len(f.ledger)
	body["changes"] = changes
	return body
}

func cid(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("cid"), 10, 64)
	return id
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
