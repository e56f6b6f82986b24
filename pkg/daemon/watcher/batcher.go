package watcher

import (
	"slices"
	"sync"
	"time"

	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Batcher coalesces classified filesystem events into change batches. Events
// accumulate while the window timer keeps getting reset; when it expires the
// pending batch is delivered in one callback. Deliveries are serialized: the
// callback is never invoked concurrently with itself.
type Batcher struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending types.ChangeBatch
	seen    map[string]struct{}

	deliverMu sync.Mutex
	deliver   func(types.ChangeBatch)
}

// NewBatcher creates a batcher with the given coalescing window.
func NewBatcher(window time.Duration, deliver func(types.ChangeBatch)) *Batcher {
	return &Batcher{
		window:  window,
		seen:    make(map[string]struct{}),
		deliver: deliver,
	}
}

// Imported records an imported (created or rewritten) path. A pending delete
// of the same path is dropped: a remove-then-recreate within one window is a
// plain import, and the batch categories stay disjoint.
func (b *Batcher) Imported(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.seen["d:"+path]; ok {
		delete(b.seen, "d:"+path)
		b.pending.Deleted = slices.DeleteFunc(b.pending.Deleted, func(p string) bool {
			return p == path
		})
	}
	b.addLocked(&b.pending.Imported, "i:", path)
}

// Deleted records a deleted path.
func (b *Batcher) Deleted(path string) {
	b.add(&b.pending.Deleted, "d:", path)
}

// MovedFrom records the source path of a move.
func (b *Batcher) MovedFrom(path string) {
	b.add(&b.pending.MovedFrom, "f:", path)
}

// MovedTo records the destination path of a move. It returns false when
// there is no unpaired MovedFrom to match, in which case the caller should
// record an import instead.
func (b *Batcher) MovedTo(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending.MovedTo) >= len(b.pending.MovedFrom) {
		return false
	}
	if _, ok := b.seen["t:"+path]; ok {
		return true
	}
	b.seen["t:"+path] = struct{}{}
	b.pending.MovedTo = append(b.pending.MovedTo, path)
	b.reset()
	return true
}

func (b *Batcher) add(dst *[]string, kind, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.addLocked(dst, kind, path)
}

// addLocked appends path to dst unless already recorded. Caller holds b.mu.
func (b *Batcher) addLocked(dst *[]string, kind, path string) {
	if _, ok := b.seen[kind+path]; ok {
		b.reset()
		return
	}
	b.seen[kind+path] = struct{}{}
	*dst = append(*dst, path)
	b.reset()
}

// reset re-arms the window timer. Caller holds b.mu.
func (b *Batcher) reset() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.fire)
}

func (b *Batcher) fire() {
	b.mu.Lock()
	batch := b.take()
	b.mu.Unlock()

	b.send(batch)
}

// take extracts and clears the pending batch. Caller holds b.mu.
func (b *Batcher) take() types.ChangeBatch {
	batch := b.pending
	b.pending = types.ChangeBatch{}
	b.seen = make(map[string]struct{})
	b.timer = nil
	return batch
}

// Flush delivers any pending batch immediately, blocking until the callback
// returns. Used on shutdown so buffered changes are not lost.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	batch := b.take()
	b.mu.Unlock()

	b.send(batch)
}

func (b *Batcher) send(batch types.ChangeBatch) {
	if batch.Empty() || b.deliver == nil {
		return
	}
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	b.deliver(batch)
}
