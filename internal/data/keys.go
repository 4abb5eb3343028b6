// Package data provides the MongoDB models and stores.
package data

import "errors"

// PairKeySeparator never appears inside a hex ObjectID.
const PairKeySeparator = ":"

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// ParticipantsKey returns the canonical key for an unordered pair of ids: the
// two ids sorted as strings and joined by PairKeySeparator. It is commutative,
// so ParticipantsKey(a, b) == ParticipantsKey(b, a).
func ParticipantsKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + PairKeySeparator + b
}
