package search

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Arena is the fixed-capacity store of NodeRecords addressed by 32-bit
// index, per spec.md §4.A. It owns a companion pool of PolicyEdge entries
// (the node's policy move table, kept out of NodeRecord to preserve its
// fixed layout).
//
// The whole capacity is reserved up front with a single make([]T, cap):
// see DESIGN.md's Open Question resolution for why this is the idiomatic,
// dependency-free stand-in for "reserve virtual memory, commit
// incrementally" that spec.md §4.A asks for. The backing arrays are never
// reallocated, so node indices are stable for the lifetime of the search
// (invariant 5).
type Arena struct {
	nodes  []NodeRecord
	edges  []PolicyEdge
	nextNode atomic.Uint32 // high-water mark; index 0 reserved as NoNode
	nextEdge atomic.Uint32

	largePagesRequested bool
}

// NewArena reserves capacity for nodeCapacity records and a policy-edge
// pool sized for an average branching factor of ~35 (chess's rough mean
// legal-move count), which can be overridden via edgeCapacity when callers
// know their game's branching factor differs materially.
func NewArena(nodeCapacity uint32, edgeCapacity uint32, useLargePages bool) *Arena {
	if edgeCapacity == 0 {
		edgeCapacity = nodeCapacity * 35
	}
	a := &Arena{
		nodes: make([]NodeRecord, nodeCapacity),
		edges: make([]PolicyEdge, edgeCapacity),
	}
	// index 0 is reserved as NoNode; burn the first slot of each pool.
	a.nextNode.Store(1)
	a.nextEdge.Store(1)
	if useLargePages {
		a.tryReserveLargePages()
	}
	return a
}

// tryReserveLargePages is a best-effort attempt to back the arena with
// large pages. No large-page mapping primitive is available from this
// allocator (see DESIGN.md); it always logs the documented fallback and
// continues with ordinary allocation, satisfying spec.md §4.A's "MUST
// fall back to ordinary pages and continue" requirement.
func (a *Arena) tryReserveLargePages() {
	a.largePagesRequested = true
	log.Warn().
		Int("node_capacity", len(a.nodes)).
		Msg("large page reservation unavailable, falling back to ordinary pages")
}

// Capacity returns the number of NodeRecord slots reserved.
func (a *Arena) Capacity() uint32 { return uint32(len(a.nodes)) }

// Size returns the number of NodeRecord slots currently allocated.
func (a *Arena) Size() uint32 {
	n := a.nextNode.Load()
	if n == 0 {
		return 0
	}
	return n - 1
}

// Get returns the record at index. Index 0 (NoNode) must never be passed.
func (a *Arena) Get(index NodeIndex) *NodeRecord {
	return &a.nodes[index]
}

// Edge returns the policy edge at the given pool offset.
func (a *Arena) Edge(offset uint32) *PolicyEdge {
	return &a.edges[offset]
}

// Edges returns the slice view of a node's policy move table.
func (a *Arena) Edges(n *NodeRecord) []PolicyEdge {
	return a.edges[n.FirstPolicyIndex : n.FirstPolicyIndex+uint32(n.NumPolicyMoves)]
}

// allocateNodes atomically bumps the node high-water mark by count and
// returns the first allocated index, or ErrArenaExhausted if there isn't
// room.
func (a *Arena) allocateNodes(count uint32) (NodeIndex, error) {
	for {
		cur := a.nextNode.Load()
		next := cur + count
		if next > uint32(len(a.nodes)) || next < cur /* overflow */ {
			return NoNode, ErrArenaExhausted
		}
		if a.nextNode.CompareAndSwap(cur, next) {
			return NodeIndex(cur), nil
		}
	}
}

// allocateEdges atomically bumps the policy-edge high-water mark.
func (a *Arena) allocateEdges(count uint32) (uint32, error) {
	for {
		cur := a.nextEdge.Load()
		next := cur + count
		if next > uint32(len(a.edges)) || next < cur {
			return 0, ErrArenaExhausted
		}
		if a.nextEdge.CompareAndSwap(cur, next) {
			return cur, nil
		}
	}
}

// InstallPolicy allocates a policy-edge block for parent and fills it from
// priors, initializing each edge's Child to NoNode (unexpanded). This is
// called once, right after a leaf's NN (or short-circuit) evaluation
// resolves, transitioning it from leaf to internal node.
func (a *Arena) InstallPolicy(parent *NodeRecord, priors []PriorMove) error {
	if len(priors) == 0 {
		return nil
	}
	first, err := a.allocateEdges(uint32(len(priors)))
	if err != nil {
		return err
	}
	parent.FirstPolicyIndex = first
	parent.NumPolicyMoves = uint16(len(priors))
	for i, p := range priors {
		e := &a.edges[first+uint32(i)]
		e.Move, e.Prior = p.Move, p.Prior
		e.child.Store(uint32(NoNode))
	}
	return nil
}

// AllocateChild materializes a single child NodeRecord for the given policy
// edge (spec.md §4.A's allocate_children with k=1, the common lazy-descent
// case), wiring parent_index and the position hash, and publishes the
// child index into the edge via an atomic CAS so concurrent descents never
// double-allocate the same edge. Returns the resolved child index in all
// cases (the caller's own allocation if it won the race, or the winner's).
func (a *Arena) AllocateChild(parentIndex NodeIndex, edgeOffset uint32, hash PositionHash, depth uint16) (NodeIndex, error) {
	edge := &a.edges[edgeOffset]
	if existing := edge.Child(); existing != NoNode {
		return existing, nil
	}

	idx, err := a.allocateNodes(1)
	if err != nil {
		return NoNode, err
	}
	rec := &a.nodes[idx]
	rec.reset(parentIndex, hash, depth)

	if !edge.child.CompareAndSwap(uint32(NoNode), uint32(idx)) {
		// another goroutine won the race; the slot we grabbed is simply
		// unused (arena slots are never freed, only ever grown).
		return edge.Child(), nil
	}
	a.Get(parentIndex).numChildrenExpanded.Add(1)
	return idx, nil
}

