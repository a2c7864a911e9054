// Package idgen generates the time-ordered identifiers the ingest
// coordinator proposes for runs that don't carry a client-supplied id.
package idgen

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewRunID returns a new lowercase, lexicographically time-ordered id.
func NewRunID() string {
	mu.Lock()
	defer mu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Now(), entropy).String())
}
