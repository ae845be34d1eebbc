// pattern: Functional Core
package stream

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduplicator suppresses repeated deliveries of identical events. The
// backend rebroadcasts refresh-style events (e.g. "rooms-refresh") from
// several code paths; consumers that only care about the trigger can opt in
// to collapse exact duplicates within the cache window.
type Deduplicator struct {
	cache *lru.Cache[string, struct{}]
}

// NewDeduplicator creates a Deduplicator holding up to size recent event
// fingerprints.
func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// Seen records the event and reports whether an identical one was already
// in the cache.
func (d *Deduplicator) Seen(eventType string, data []byte) bool {
	key := fmt.Sprintf("%s:%x", eventType, hashBytes(data))
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Clear empties the cache.
func (d *Deduplicator) Clear() {
	d.cache.Purge()
}

// hashBytes is FNV-1a over the payload.
func hashBytes(data []byte) uint64 {
	var hash uint64 = 14695981039346656037
	for _, b := range data {
		hash ^= uint64(b)
		hash *= 1099511628211
	}
	return hash
}
