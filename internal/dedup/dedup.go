// Package dedup suppresses duplicate processing of inbound events that the
// messaging platform delivers more than once. It is a best-effort in-memory
// guard, not durable dedup: it does not survive a restart.
package dedup

import (
	"fmt"
	"sync"
)

const (
	// maxEntries is the ceiling on tracked event keys.
	maxEntries = 1000
	// evictBatch is how many of the oldest keys are dropped once the
	// ceiling is exceeded.
	evictBatch = 500
)

// MessageKey builds the dedup key for a message event. The platform's message
// ids are only unique per chat, so the timestamp is folded in.
func MessageKey(messageID, date int) string {
	return fmt.Sprintf("msg_%d_%d", messageID, date)
}

// CallbackKey builds the dedup key for a button-press event. Callback ids
// live in a different namespace than message ids, hence the distinct prefix.
func CallbackKey(callbackID string) string {
	return "query_" + callbackID
}

// Filter tracks recently seen event keys in insertion order.
type Filter struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// New returns an empty Filter.
func New() *Filter {
	return &Filter{seen: make(map[string]struct{})}
}

// Seen reports whether key has already been marked.
func (f *Filter) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// Mark records key as processed. When the tracked set exceeds the ceiling,
// the oldest half is evicted in bulk to bound memory.
func (f *Filter) Mark(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return
	}
	f.seen[key] = struct{}{}
	f.order = append(f.order, key)

	if len(f.order) > maxEntries {
		for _, old := range f.order[:evictBatch] {
			delete(f.seen, old)
		}
		f.order = append(f.order[:0:0], f.order[evictBatch:]...)
	}
}

// Len returns the number of tracked keys.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
