// Package dedupe tracks composite identities that may appear only once,
// such as the (raceId, driverId) grain of the feature matrix.
package dedupe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// keySeparator cannot occur in source ids (ASCII unit separator).
const keySeparator = "\x1f"

// Deduper records seen identities.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Size returns the number of recorded keys.
	Size() int64
}

// Key joins identity parts into one composite key. Parts are kept distinct,
// so Key("1", "23") != Key("12", "3").
func Key(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// inMemoryDeduper is an unbounded set. The matrix grain must hold for the
// whole run, so nothing is ever evicted.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &inMemoryDeduper{seen: make(map[string]struct{}, o.expectedSize)}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
