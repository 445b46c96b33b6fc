// Package models defines client-side data models of the cardkeeper CLI.
package models

import "time"

// Card is the locally cached copy of a server card.
type Card struct {
	ID         int64
	Number     string
	Version    int64
	Content    string
	CreateTime time.Time
	UpdateTime time.Time
}

// Change is one entry of a catch-up response. Version uses the wire
// encoding: negative means the card was deleted.
type Change struct {
	CardID  int64
	Version int64
}

// Deleted reports whether the change is a tombstone.
func (c Change) Deleted() bool {
	return c.Version < 0
}
