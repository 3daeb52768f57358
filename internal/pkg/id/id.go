package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// event IDs in the order events were raised when inspected in the queue.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
