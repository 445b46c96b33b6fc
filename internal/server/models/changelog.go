package models

import "time"

// ChangeLogEntry is one immutable ledger row: at position ID, owner's card
// CardID became Version with Content. Version uses the storage encoding where
// a deletion of a card at version v is stored as -(v+1).
type ChangeLogEntry struct {
	ID         int64
	OwnerID    string
	CardID     int64
	Version    int64
	Content    string
	UpdateTime time.Time
}

// ChangeKind distinguishes live versions from tombstones.
type ChangeKind int

const (
	ChangeLive ChangeKind = iota
	ChangeDeleted
)

func (k ChangeKind) String() string {
	if k == ChangeDeleted {
		return "deleted"
	}
	return "live"
}

// Change reports the latest state of a card as seen by the ledger. Version is
// always positive: the live version, or for a tombstone the version the
// deletion occupies (last live version + 1).
type Change struct {
	CardID     int64
	Kind       ChangeKind
	Version    int64
	UpdateTime time.Time
}

// Live builds a change for a card that now exists at version v.
func Live(cardID, v int64, at time.Time) Change {
	return Change{CardID: cardID, Kind: ChangeLive, Version: v, UpdateTime: at}
}

// Tombstone builds the deletion of a card whose last live version was v.
func Tombstone(cardID, v int64, at time.Time) Change {
	return Change{CardID: cardID, Kind: ChangeDeleted, Version: v + 1, UpdateTime: at}
}

// Encoded returns the signed version used by storage and the wire.
func (c Change) Encoded() int64 {
	if c.Kind == ChangeDeleted {
		return -c.Version
	}
	return c.Version
}

// Decode turns a signed ledger version into a Change.
func Decode(cardID, version int64, at time.Time) Change {
	if version < 0 {
		return Change{CardID: cardID, Kind: ChangeDeleted, Version: -version, UpdateTime: at}
	}
	return Live(cardID, version, at)
}

// Change decodes the entry.
func (e ChangeLogEntry) Change() Change {
	return Decode(e.CardID, e.Version, e.UpdateTime)
}

// Coalesce collapses entries (ascending by position) to the last state per
// card. Cards are listed in the order they first appear.
func Coalesce(entries []ChangeLogEntry) []Change {
	out := make([]Change, 0, len(entries))
	idx := make(map[int64]int, len(entries))

	for _, e := range entries {
		if i, ok := idx[e.CardID]; ok {
			out[i] = e.Change()
			continue
		}
		idx[e.CardID] = len(out)
		out = append(out, e.Change())
	}
	return out
}

// CardState is what replaying a card's ledger yields.
type CardState struct {
	Version    int64
	Content    string
	UpdateTime time.Time
	Deleted    bool
}

// Replay applies a card's entries in position order and returns the final
// state. ok is false when entries is empty.
func Replay(entries []ChangeLogEntry) (state CardState, ok bool) {
	for _, e := range entries {
		ch := e.Change()
		state = CardState{
			Version:    ch.Version,
			Content:    e.Content,
			UpdateTime: e.UpdateTime,
			Deleted:    ch.Kind == ChangeDeleted,
		}
		ok = true
	}
	return state, ok
}
