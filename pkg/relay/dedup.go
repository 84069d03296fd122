package relay

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultDedupTTL      = 24 * time.Hour
	DefaultDedupCapacity = 10000
)

// DedupKey identifies one logical submission across delivery paths.
func DedupKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// Deduper remembers recently relayed keys. A key is forgotten once it is
// older than ttl or when more than capacity keys are held, oldest first.
type Deduper struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, time.Time]
}

// NewDeduper builds a dedup window. Non-positive arguments select defaults.
func NewDeduper(ttl time.Duration, capacity int) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}

	return &Deduper{seen: expirable.NewLRU[string, time.Time](capacity, nil, ttl)}
}

// Reserve records key and reports true, or reports false when key is
// already inside the window.
func (d *Deduper) Reserve(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Peek(key); ok {
		return false
	}
	d.seen.Add(key, time.Now())
	return true
}

// Release forgets key so a later delivery of the same submission is relayed.
func (d *Deduper) Release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(key)
}

// Len returns the number of keys currently held. Expired keys count until
// the cache's background sweep drops them.
func (d *Deduper) Len() int {
	return d.seen.Len()
}
