package search

import (
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// fpuReduction is the first-play-urgency penalty subtracted from the
// parent's own Q when an edge's child has never been visited, so an
// all-unvisited node doesn't treat every sibling as equally and
// unconditionally "average" (spec.md §4.D).
const fpuReduction = 0.2

// tieEpsilon bounds how close two PUCT scores must be to be treated as a
// tie, rather than requiring bit-exact equality.
const tieEpsilon = 1e-9

// rootNoiseFraction is the blend weight given to exploration noise when
// injected into the root's policy priors (see InjectRootNoise).
const rootNoiseFraction = 0.25

// Selector performs repeated PUCT descents from root, applying virtual loss
// along each path and lazily materializing children as descents reach
// unexpanded edges, per spec.md §4.D. Two Selectors (Selector0, Selector1)
// alternate rounds under the overlapped flow.
type Selector struct {
	ID  SelectorID
	rng *rand.Rand
}

// NewSelector seeds an independent RNG per selector (golang.org/x/exp/rand,
// the generator the retrieved pack's engine/local.go and examples reach for
// over math/rand), used for root noise injection rather than tie-breaking
// (PUCT tie-breaking is deterministic, see selectEdge).
func NewSelector(id SelectorID, seed uint64) *Selector {
	return &Selector{ID: id, rng: rand.New(rand.NewSource(seed))}
}

// Descend runs one full PUCT descent from root to a leaf, records the leaf
// into out, and unwinds the oracle's move stack back to the root position
// before returning. oracle must already be positioned at the tree's root.
// Returns ErrArenaExhausted if expanding a child failed for lack of arena
// room (spec.md §4.D); the descent still completes gracefully, recording
// whatever node it backed out to as the leaf, so the caller only needs the
// error to decide whether to keep launching further descents.
func (s *Selector) Descend(t *Tree, oracle PositionOracle, out *SelectedNodesSet, peerPending map[NodeIndex]struct{}) error {
	idx := t.Root()
	var depth int32
	var exhausted error

	for {
		node := t.Arena.Get(idx)
		node.AddInFlight(s.ID, 1)

		if node.IsTerminal() || node.TranspositionRootIndex != NoNode || !node.Expanded() || node.NumPolicyMoves == 0 {
			break
		}

		ei := s.selectEdge(t, node)
		if ei < 0 {
			break
		}
		edges := t.Arena.Edges(node)
		edge := &edges[ei]

		if !oracle.MakeMove(edge.Move) {
			log.Error().Uint32("move", uint32(edge.Move)).Msg("policy edge move rejected by oracle during descent")
			break
		}
		depth++

		childIdx := edge.Child()
		if childIdx == NoNode {
			edgeOffset := node.FirstPolicyIndex + uint32(ei)
			newIdx, err := t.Arena.AllocateChild(idx, edgeOffset, oracle.Hash(), node.Depth+1)
			if err != nil {
				// Arena exhausted: back out this move and stop the descent
				// at the parent, which will simply be reselected (with its
				// now-recorded virtual loss already in place) next round,
				// unless the caller stops issuing descents on this error.
				oracle.UnmakeMove()
				depth--
				exhausted = ErrArenaExhausted
				break
			}
			idx = newIdx
			continue
		}
		idx = childIdx
	}

	out.AddSelected(t, idx, depth, oracle, peerPending)

	for ; depth > 0; depth-- {
		oracle.UnmakeMove()
	}

	return exhausted
}

// selectEdge returns the index (within parent's edge slice) of the edge
// maximizing Q + U. Ties (within tieEpsilon) are broken deterministically:
// higher prior P wins; on exact prior equality, the lower child index wins
// (spec.md §4.D) — iterating edges in ascending order and only replacing
// the incumbent on a strictly higher prior gives both for free.
func (s *Selector) selectEdge(t *Tree, parent *NodeRecord) int {
	edges := t.Arena.Edges(parent)
	if len(edges) == 0 {
		return -1
	}
	sqrtParent := math.Sqrt(math.Max(float64(parent.TotalN()), 1))
	parentQ := parent.Q()

	best := -1
	bestScore := math.Inf(-1)
	var bestPrior float32
	for i := range edges {
		e := &edges[i]
		var q float64
		var childTotal int32
		if childIdx := e.Child(); childIdx != NoNode {
			child := t.Arena.Get(childIdx)
			childTotal = child.TotalN()
			if child.N() > 0 {
				q = -child.Q()
			} else {
				q = parentQ - fpuReduction
			}
		} else {
			q = parentQ - fpuReduction
		}
		u := t.Config.PuctExplorationParam * float64(e.Prior) * sqrtParent / float64(1+childTotal)
		score := q + u

		switch {
		case score > bestScore+tieEpsilon:
			bestScore, best, bestPrior = score, i, e.Prior
		case score > bestScore-tieEpsilon && e.Prior > bestPrior:
			// Tie: higher prior wins. Ascending iteration order already
			// gives "lower index wins" on an exact prior tie, since this
			// branch only fires on a strict prior improvement.
			best, bestPrior = i, e.Prior
		}
	}
	return best
}

// InjectRootNoise blends each of the root's edge priors with normalized
// uniform noise, weighted by rootNoiseFraction, matching the "noise
// injection after root expansion" maintenance step in spec.md §4.G's
// pseudocode. No Dirichlet-sampling library appears anywhere in the
// retrieved pack, so noise is drawn as normalized uniform jitter from this
// selector's own rng rather than a true Dirichlet distribution — an
// approximation, documented in DESIGN.md.
func (s *Selector) InjectRootNoise(t *Tree, root *NodeRecord) {
	edges := t.Arena.Edges(root)
	if len(edges) == 0 {
		return
	}
	noise := make([]float64, len(edges))
	sum := 0.0
	for i := range noise {
		noise[i] = s.rng.Float64()
		sum += noise[i]
	}
	if sum <= 0 {
		return
	}
	for i := range edges {
		edges[i].Prior = float32((1-rootNoiseFraction)*float64(edges[i].Prior) + rootNoiseFraction*(noise[i]/sum))
	}
}
