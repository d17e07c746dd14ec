package models

import (
	"time"

	"github.com/google/uuid"
)

// SupplementEntry is a free-text supplement or medication note. The full
// text never leaves the device; only a hash of the public portion is ever
// transmitted, and Rx entries are not transmitted at all.
type SupplementEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     int       `json:"user_id"`
	Text       string    `json:"-"` // on-device only
	PublicHash string    `json:"public_hash"`
	Rx         bool      `json:"rx"`
	CreatedAt  time.Time `json:"created_at"`
}
