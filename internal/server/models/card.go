// Package models defines the server-side domain types: users, versioned
// cards and the change ledger.
package models

import (
	"strconv"
	"time"
)

// Card is a versioned note owned by exactly one user. Version starts at 1
// and grows by one per accepted content mutation. A deleted card has no row;
// its deletion lives only in the ledger.
type Card struct {
	ID      int64
	OwnerID string
	// CreateDay and DaySeq form the human-facing display number.
	CreateDay  time.Time
	DaySeq     int
	Version    int64
	Content    string
	CreateTime time.Time
	UpdateTime time.Time
}

// Number renders the display number as YYYYMMDD-n.
func (c *Card) Number() string {
	return c.CreateDay.Format("20060102") + "-" + strconv.Itoa(c.DaySeq)
}
