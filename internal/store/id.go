package store

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a time-ordered ULID. Ids minted in the same millisecond
// still sort in creation order.
func NewID() string {
	return ulid.Make().String()
}

// IDTime reports the creation time encoded in an id from NewID.
func IDTime(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
