package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a prefixed ULID, e.g. NewID("msg") -> "msg_01H...".
// ULIDs sort by creation time, which the routing tie-break relies on.
func NewID(prefix string) string {
	t := time.Now().UTC()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
