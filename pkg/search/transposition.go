package search

import (
	"sync"
	"sync/atomic"
)

// stagingCapacity bounds each selector's thread-local insertion buffer
// before it must be flushed, per spec.md §4.B ("bounded, configurable").
const stagingCapacity = 4096

// ttSnapshot is an immutable committed view of hash -> node index. Readers
// during descent dereference the current snapshot without taking any lock
// (spec.md §5: "lock-free reads, writes only at flush").
type ttSnapshot map[PositionHash]NodeIndex

// TranspositionIndex is the concurrent hash -> node-index mapping described
// in spec.md §4.B. Inserts are buffered per selector in a thread-local
// staging slice during batch collection and flushed in bulk at the
// end-of-batch barrier, when no selector is descending.
//
// Grounded on other_examples/H1W0XXX-xionghan__mcts_search.go's
// map[uint64]*MCTSNode-behind-a-mutex pool, generalized into a
// snapshot-swap so descent-time reads never block on the flush mutex — no
// lock-free concurrent-map dependency appears anywhere in the retrieved
// pack, so the snapshot-pointer approach is the justified stdlib-only
// design (see DESIGN.md).
type TranspositionIndex struct {
	current atomic.Pointer[ttSnapshot]
	flushMu sync.Mutex

	staging [numSelectors][]ttEntry
}

type ttEntry struct {
	hash  PositionHash
	index NodeIndex
}

func NewTranspositionIndex() *TranspositionIndex {
	t := &TranspositionIndex{}
	empty := make(ttSnapshot)
	t.current.Store(&empty)
	for i := range t.staging {
		t.staging[i] = make([]ttEntry, 0, stagingCapacity)
	}
	return t
}

// TryGet returns the first-inserted node index for hash, or (0, false).
// Lock-free: reads only the currently-published snapshot.
func (t *TranspositionIndex) TryGet(hash PositionHash) (NodeIndex, bool) {
	snap := *t.current.Load()
	idx, ok := snap[hash]
	return idx, ok
}

// Stage buffers an insertion for the given selector slot, to be flushed at
// the next FlushPending call. Buffering, rather than inserting directly,
// keeps the descent-time path allocation-free and lock-free.
func (t *TranspositionIndex) Stage(slot SelectorID, hash PositionHash, index NodeIndex) {
	if len(t.staging[slot]) >= stagingCapacity {
		// Staging overflow: drop silently. The dropped entry is never
		// added to the index; the node itself is still reachable through
		// the tree, just not discoverable by hash. Not a correctness
		// issue, only a missed reuse opportunity.
		return
	}
	t.staging[slot] = append(t.staging[slot], ttEntry{hash: hash, index: index})
}

// FlushPending merges all staged insertions from every selector into a new
// snapshot and publishes it atomically. Idempotent on duplicate hashes:
// first-wins is preserved by never overwriting an existing key, whether it
// came from the previous snapshot or an earlier entry in this flush.
//
// Must only be called at the end-of-batch barrier, when no selector is
// concurrently staging into t.staging (spec.md §5).
func (t *TranspositionIndex) FlushPending() {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	anyPending := false
	for i := range t.staging {
		if len(t.staging[i]) > 0 {
			anyPending = true
			break
		}
	}
	if !anyPending {
		return
	}

	old := *t.current.Load()
	next := make(ttSnapshot, len(old)+stagingCapacity)
	for k, v := range old {
		next[k] = v
	}
	for i := range t.staging {
		for _, e := range t.staging[i] {
			if _, exists := next[e.hash]; !exists {
				next[e.hash] = e.index
			}
		}
		t.staging[i] = t.staging[i][:0]
	}
	t.current.Store(&next)
}

// Len returns the number of committed entries (for tests/observability).
func (t *TranspositionIndex) Len() int {
	return len(*t.current.Load())
}

// TryGetStaged looks up hash among insertions staged but not yet flushed,
// for spec.md §6's in-flight transposition linkage knobs
// (in_flight_this_batch_linkage_enabled / in_flight_other_batch_linkage_enabled):
// a leaf may transpose into a sibling descent's target from this same
// batch, before FlushPending ever runs. reader names which selector is
// asking; its own staging slice is read directly without locking (a single
// selector only ever appends to its own slice from its own goroutine, so a
// same-goroutine read afterwards is safe), while the peer's staging slice
// is read under flushMu since it may be concurrently appended to by the
// peer's goroutine.
func (t *TranspositionIndex) TryGetStaged(reader SelectorID, hash PositionHash, includeOwnBatch, includeOtherBatch bool) (NodeIndex, bool) {
	if includeOwnBatch {
		for _, e := range t.staging[reader] {
			if e.hash == hash {
				return e.index, true
			}
		}
	}
	if includeOtherBatch {
		peer := SelectorID(1 - int(reader))
		t.flushMu.Lock()
		defer t.flushMu.Unlock()
		for _, e := range t.staging[peer] {
			if e.hash == hash {
				return e.index, true
			}
		}
	}
	return NoNode, false
}
