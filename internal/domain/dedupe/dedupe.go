// Package dedupe drops repeated punt rows from the input.
//
// Tracking exports often repeat a play when it is joined against several
// frames. Rows are identified by model.PuntEvent.Key; rows without a key are
// always kept.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/puntscope/internal/domain/model"
)

// Deduper records seen row keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so a later row with it is kept.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map and, in bounded mode, a
// FIFO of keys used for eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 {
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
		d.order = append(d.order, key)
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord removes a key from the seen set.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; !exists {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
	if d.maxSize > 0 {
		for i, k := range d.order {
			if k == key {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
}

// evictOldest forgets the first recorded key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if len(d.order) == 0 {
		return
	}
	oldest := d.order[0]
	d.order = d.order[1:]
	delete(d.seen, oldest)
	d.size.Add(-1)
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Filter walks events in input order and hands each row whose key has not
// been seen to accept. A row that accept rejects is unrecorded, so a later
// copy of the same play can still be used. It returns the number of dropped
// duplicates and the errors returned by accept.
func Filter(ctx context.Context, d Deduper, events []model.PuntEvent, accept func(model.PuntEvent) error) (int, []error) {
	dropped := 0
	var rejected []error
	for _, e := range events {
		key := e.Key()
		if key != "" && d.SeenAndRecord(ctx, key) {
			dropped++
			continue
		}
		if err := accept(e); err != nil {
			if key != "" {
				d.Unrecord(ctx, key)
			}
			rejected = append(rejected, err)
		}
	}
	return dropped, rejected
}
