package search

import (
	"math"
	"sync/atomic"
)

// outcomeScale is the fixed-point precision used to store floating-point
// sums in atomic integers, the way the teacher's NodeStats stores outcomes
// as a scaled atomic.Uint64 (sumOutcomes) to get lock-free accumulation
// without a CAS loop over float bits.
const outcomeScale = 1e6

// expansion flags, mirroring the teacher's node.go CanExpand/Expanding/
// Expanded/Terminal bitmask exactly, generalized to mean "this node's own
// children slots have been allocated" rather than "this node has generic
// children".
const (
	canExpand     uint32 = 0
	expandingMask uint32 = 1
	expandedMask  uint32 = 2
)

// PolicyEdge is one entry of a node's policy move table (spec.md §3): a
// legal move with its prior probability, and the arena index of the child
// node if that move has been expanded (0 otherwise).
type PolicyEdge struct {
	Move  MoveEncoding
	Prior float32
	child atomic.Uint32 // NodeIndex; 0 (NoNode) until expanded
}

// Child returns the expanded child's index, or NoNode if this edge hasn't
// been descended into yet.
func (e *PolicyEdge) Child() NodeIndex { return NodeIndex(e.child.Load()) }

// NodeRecord is the fixed-layout record stored in the arena, per spec.md
// §3. Fields touched during descent (n, n_in_flight_*) are atomic; fields
// touched only during Apply (w/d/m sums, terminal, transposition linkage)
// are written under the Apply barrier and may be read lock-free elsewhere,
// tolerating a one-batch delay, per spec.md §5.
type NodeRecord struct {
	ParentIndex      NodeIndex
	FirstPolicyIndex uint32
	NumPolicyMoves   uint16
	numChildrenExpanded atomic.Uint32 // count of PolicyEdge entries with Child != 0
	expandState      atomic.Uint32   // canExpand / expandingMask / expandedMask

	n         atomic.Int32
	nInFlight [2]atomic.Int32

	wSum atomic.Int64 // fixed-point, see outcomeScale
	dSum atomic.Int64
	mSum atomic.Int64

	V         float32
	WinP      float32
	LossP     float32
	MPosition float32

	Terminal    TerminalKind
	ZobristHash PositionHash

	TranspositionRootIndex          NodeIndex
	pendingTranspositionExtraction  atomic.Int32
	// transpositionBudget is the original budget passed to linkTransposition,
	// needed by backup.go to index which subtree sample an extraction
	// consumes. Written once at first linkage; in dual-selector mode two
	// concurrent first-linkages (rare — both selectors landing on the same
	// freshly-allocated node in the same round) race here benignly, since
	// both derive the value from the same transposition-index lookup.
	transpositionBudget int32

	Depth uint16
}

// reset zeroes a record for reuse at a freshly allocated arena slot. The
// arena only ever hands out fresh (zero-value) slots, but reset exists so
// MakeMove-style reuse patterns can re-initialize a record explicitly.
func (n *NodeRecord) reset(parent NodeIndex, hash PositionHash, depth uint16) {
	n.ParentIndex = parent
	n.FirstPolicyIndex = 0
	n.NumPolicyMoves = 0
	n.numChildrenExpanded.Store(0)
	n.expandState.Store(canExpand)
	n.n.Store(0)
	n.nInFlight[0].Store(0)
	n.nInFlight[1].Store(0)
	n.wSum.Store(0)
	n.dSum.Store(0)
	n.mSum.Store(0)
	n.V, n.WinP, n.LossP, n.MPosition = 0, 0, 0, 0
	n.Terminal = NonTerminal
	n.ZobristHash = hash
	n.TranspositionRootIndex = NoNode
	n.pendingTranspositionExtraction.Store(0)
	n.transpositionBudget = 0
	n.Depth = depth
}

// N returns the completed visit count.
func (n *NodeRecord) N() int32 { return n.n.Load() }

// NInFlight returns the virtual-loss count for the given selector slot.
func (n *NodeRecord) NInFlight(slot SelectorID) int32 { return n.nInFlight[slot].Load() }

// TotalN returns n + both in-flight counters: the "effective" visit count
// used by PUCT's exploration term (spec.md §4.D).
func (n *NodeRecord) TotalN() int32 {
	return n.n.Load() + n.nInFlight[0].Load() + n.nInFlight[1].Load()
}

// AddInFlight applies virtual loss (or removes it, with a negative count)
// to the given selector's slot. The counter is not clamped: removing more
// than was added leaves it negative.
func (n *NodeRecord) AddInFlight(slot SelectorID, count int32) {
	n.nInFlight[slot].Add(count)
}

// ApplyVisit is called once per backed-up visit: increments n, decrements
// the slot's in-flight counter by the visit's weight, and accumulates the
// (already sign-flipped by the caller) w/d/m contributions.
func (n *NodeRecord) ApplyVisit(slot SelectorID, visits int32, w, d, m float64) {
	n.n.Add(visits)
	n.nInFlight[slot].Add(-visits)
	scale := float64(visits) * outcomeScale
	n.wSum.Add(int64(math.Round(w * scale)))
	n.dSum.Add(int64(math.Round(d * scale)))
	n.mSum.Add(int64(math.Round(m * scale)))
}

// Q returns the average backed-up value (w_sum / n), or 0.5 for an
// unvisited node (neutral — callers needing FPU semantics should check N()
// themselves, see selector.go).
func (n *NodeRecord) Q() float64 {
	visits := n.n.Load()
	if visits <= 0 {
		return 0.5
	}
	return float64(n.wSum.Load()) / outcomeScale / float64(visits)
}

func (n *NodeRecord) AvgD() float64 {
	visits := n.n.Load()
	if visits <= 0 {
		return 0
	}
	return float64(n.dSum.Load()) / outcomeScale / float64(visits)
}

func (n *NodeRecord) AvgM() float64 {
	visits := n.n.Load()
	if visits <= 0 {
		return 0
	}
	return float64(n.mSum.Load()) / outcomeScale / float64(visits)
}

func (n *NodeRecord) IsTerminal() bool { return n.Terminal.IsTerminal() }

// NumChildrenExpanded returns how many of this node's policy edges have an
// arena-allocated child.
func (n *NodeRecord) NumChildrenExpanded() uint32 { return n.numChildrenExpanded.Load() }

// CanExpand attempts to claim this node for expansion (allocate_children),
// mirroring the teacher's CAS-based CanExpand/FinishExpanding pair exactly.
func (n *NodeRecord) CanExpand() bool {
	return n.expandState.CompareAndSwap(canExpand, expandingMask)
}

func (n *NodeRecord) FinishExpanding() {
	n.expandState.Store(expandedMask)
}

func (n *NodeRecord) Expanding() bool {
	return n.expandState.Load() == expandingMask
}

func (n *NodeRecord) Expanded() bool {
	return n.expandState.Load() == expandedMask
}

// PendingTranspositionExtractions returns the remaining budget of
// value-samples this node may draw from its transposition root before a
// forced permanent copy, per spec.md §3 invariant 4/5.
func (n *NodeRecord) PendingTranspositionExtractions() int32 {
	return n.pendingTranspositionExtraction.Load()
}

// linkTransposition sets up transposition linkage; only called once, at
// first linkage (invariant 5: never increases except at first linkage).
func (n *NodeRecord) linkTransposition(root NodeIndex, budget int32) {
	n.TranspositionRootIndex = root
	n.transpositionBudget = budget
	n.pendingTranspositionExtraction.Store(budget)
}

// consumeTranspositionExtraction decrements the pending counter and
// returns the remaining budget after the decrement (0 means a forced copy
// is now due). Returns ok=false if there was no budget left to consume.
func (n *NodeRecord) consumeTranspositionExtraction() (remaining int32, ok bool) {
	for {
		cur := n.pendingTranspositionExtraction.Load()
		if cur <= 0 {
			return 0, false
		}
		if n.pendingTranspositionExtraction.CompareAndSwap(cur, cur-1) {
			return cur - 1, true
		}
	}
}

// delinkTransposition clears the transposition fields, e.g. after a forced
// permanent copy or an invariant-violation recovery.
func (n *NodeRecord) delinkTransposition() {
	n.TranspositionRootIndex = NoNode
	n.transpositionBudget = 0
	n.pendingTranspositionExtraction.Store(0)
}
