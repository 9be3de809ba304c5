// Package batch builds and serves named orderings ("batches") of test
// identifiers. Each batch is constructed at most once per process, cached for
// the process lifetime, and served unchanged thereafter; a restart is the
// only eviction mechanism.
package batch

import (
	"context"
	"log"
	"sync"

	"github.com/sayhar/wiki-know/internal/orderstore"
	"github.com/sayhar/wiki-know/internal/report"
)

// Built-in batch names. Any other name is looked up in the order store.
const (
	Chronological = "chronological"
	Reverse       = "reverse"
	Random        = "random"
	Ascending     = "ascending"
	Descending    = "descending"
	English       = "english"
	Foreign       = "foreign"
	Interesting   = "interesting"
)

// DefaultWorkers bounds the parallel metadata reads of the chronological scan.
const DefaultWorkers = 8

// Options configures an Index.
type Options struct {
	// Workers bounds the chronological scan's parallelism; <= 0 uses DefaultWorkers.
	Workers int
	// Interesting is the curated list backing the "interesting" batch.
	Interesting []string
	// Notify, when set, is called after a batch is published to the cache.
	Notify func(batch string, size int)
}

// Index owns the batch cache. Safe for concurrent use; concurrent requests
// for the same uncached batch are serialized so only one build runs.
type Index struct {
	reader      *report.Reader
	orders      *orderstore.Store
	interesting []string
	workers     int
	notify      func(batch string, size int)

	mu     sync.Mutex
	states map[string]*buildState
}

// buildState tracks one batch through Uncached -> Building -> Cached.
// done is closed exactly once, after which ids/members/err are immutable.
type buildState struct {
	done    chan struct{}
	ids     []string
	members map[string]int // identifier -> position in ids
	err     error
}

// NewIndex builds an index over the given reader and order store.
func NewIndex(reader *report.Reader, orders *orderstore.Store, opts Options) *Index {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Index{
		reader:      reader,
		orders:      orders,
		interesting: opts.Interesting,
		workers:     workers,
		notify:      opts.Notify,
		states:      make(map[string]*buildState),
	}
}

// Tests returns the ordered identifiers of a batch, building it on first
// request. The returned slice is shared and must not be mutated. Unrecognized
// names with no stored order yield an empty (cached) sequence; only
// structural failures of the underlying scan return an error.
func (x *Index) Tests(ctx context.Context, name string) ([]string, error) {
	st, err := x.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return st.ids, st.err
}

// resolve returns the completed build state for a batch, running the build
// when this caller is the first to ask.
func (x *Index) resolve(ctx context.Context, name string) (*buildState, error) {
	x.mu.Lock()
	st, ok := x.states[name]
	if ok {
		x.mu.Unlock()
		select {
		case <-st.done:
			return st, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	st = &buildState{done: make(chan struct{})}
	x.states[name] = st
	x.mu.Unlock()

	log.Printf("batch: building %q (first request)", name)
	ids, siblings, err := x.build(ctx, name)
	if err != nil {
		// Partial results are never published; drop the state so a later
		// request can retry once the underlying problem is fixed.
		x.mu.Lock()
		delete(x.states, name)
		x.mu.Unlock()
		st.err = err
		close(st.done)
		return st, nil
	}

	st.ids = ids
	st.members = memberIndex(ids)
	close(st.done)
	if x.notify != nil {
		x.notify(name, len(ids))
	}
	for sib, sibIDs := range siblings {
		x.publish(sib, sibIDs)
	}
	return st, nil
}

// publish inserts an already-computed batch unless one is present or being
// built. Used for siblings that fall out of another batch's construction
// (reverse from chronological, foreign from english, and so on).
func (x *Index) publish(name string, ids []string) {
	x.mu.Lock()
	if _, ok := x.states[name]; ok {
		x.mu.Unlock()
		return
	}
	st := &buildState{
		done:    make(chan struct{}),
		ids:     ids,
		members: memberIndex(ids),
	}
	close(st.done)
	x.states[name] = st
	x.mu.Unlock()
	if x.notify != nil {
		x.notify(name, len(ids))
	}
}

func memberIndex(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := m[id]; !ok {
			m[id] = i
		}
	}
	return m
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
