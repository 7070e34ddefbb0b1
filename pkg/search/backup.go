package search

import "github.com/rs/zerolog/log"

// ApplyResult backs up one selected leaf's evaluation along the path from
// leaf to root, per spec.md §4.H: each ancestor's value is the prior
// level's negated (zero-sum flip), moves-left increments by one per ply,
// and every node's virtual loss is released as its real visit lands.
func (t *Tree) ApplyResult(slot SelectorID, leafIdx NodeIndex, visits int32, outcome EvalOutcome) {
	if visits < 1 {
		visits = 1
	}
	node := t.Arena.Get(leafIdx)

	switch {
	case node.IsTerminal():
		t.backupPath(slot, leafIdx, visits, float64(node.Terminal.Value()), terminalDraw(node.Terminal), 0)

	case node.TranspositionRootIndex != NoNode:
		t.applyTransposition(slot, leafIdx, visits, node)

	case outcome.Terminal != NonTerminal:
		// First-time resolution via TerminalEvaluator: latch the terminal
		// kind onto the node so every future revisit short-circuits
		// through the node.IsTerminal() branch above instead of re-asking
		// the oracle.
		node.Terminal = outcome.Terminal
		t.backupPath(slot, leafIdx, visits, float64(outcome.Terminal.Value()), terminalDraw(outcome.Terminal), 0)

	default:
		if len(outcome.Policy) > 0 && !node.Expanded() {
			if err := t.Arena.InstallPolicy(node, outcome.Policy); err != nil {
				log.Error().Err(err).Msg("failed to install policy on resolved leaf")
			} else {
				node.FinishExpanding()
			}
		}
		node.V, node.WinP, node.LossP, node.MPosition = outcome.Value, outcome.WinP, outcome.LossP, outcome.MovesLeft
		draw := 1 - float64(outcome.WinP) - float64(outcome.LossP)
		t.backupPath(slot, leafIdx, visits, float64(outcome.Value), draw, float64(outcome.MovesLeft))
	}
}

func terminalDraw(kind TerminalKind) float64 {
	if kind == Stalemate || kind == TablebaseDraw {
		return 1
	}
	return 0
}

// releaseInFlightPath walks leaf -> root via ParentIndex releasing visits
// units of virtual loss at every node along the way, without applying a real
// visit at any of them. Used for leaves that are evaluated and cached but
// never backed up (spec.md §4.E's CacheOnly partition), since backupPath -
// the only other path that clears virtual loss - never runs for them and
// their ancestors would otherwise carry stale virtual loss for the rest of
// the search.
func (t *Tree) releaseInFlightPath(slot SelectorID, leafIdx NodeIndex, visits int32) {
	idx := leafIdx
	for idx != NoNode {
		node := t.Arena.Get(idx)
		node.AddInFlight(slot, -visits)
		idx = node.ParentIndex
	}
}

// backupPath walks leaf -> root via ParentIndex, flipping the value's sign
// at every ply and incrementing moves-left, applying visits real visits (and
// releasing as many units of virtual loss) at each node along the way.
func (t *Tree) backupPath(slot SelectorID, leafIdx NodeIndex, visits int32, value, draw, movesLeft float64) {
	idx := leafIdx
	v, m := value, movesLeft
	depth := int32(0)
	for idx != NoNode {
		node := t.Arena.Get(idx)
		node.ApplyVisit(slot, visits, v, draw, m)
		idx = node.ParentIndex
		v = -v
		m++
		depth++
	}
	t.Stats.recordDepth(depth)
}

// applyTransposition resolves a (possibly multi-visit) round's worth of
// visits to a linked-but-not-yet-copied leaf: it consumes exactly one unit
// of the node's extraction budget and backs up a value sampled from the
// transposition root's subtree, applied with weight visits. Once the
// budget is exhausted, the link is replaced by a permanent policy copy so
// future visits behave like an ordinary node.
func (t *Tree) applyTransposition(slot SelectorID, leafIdx NodeIndex, visits int32, node *NodeRecord) {
	rootIdx := node.TranspositionRootIndex
	budget := node.transpositionBudget

	remaining, ok := node.consumeTranspositionExtraction()
	if !ok {
		// Budget was already exhausted by an earlier visit in a prior
		// round before the forced copy landed; force it now and back up
		// with the now-copied node's own (just-installed) value.
		t.forceTranspositionCopy(leafIdx, node, rootIdx)
		t.backupPath(slot, leafIdx, visits, float64(node.V), 1-float64(node.WinP)-float64(node.LossP), float64(node.MPosition))
		return
	}

	sampleIndex := int(budget) - int(remaining) - 1
	value, draw, m, sampled := t.transpositionSample(rootIdx, sampleIndex)
	if !sampled {
		root := t.Arena.Get(rootIdx)
		value, draw, m = float64(root.V), 1-float64(root.WinP)-float64(root.LossP), float64(root.AvgM())
	}
	t.backupPath(slot, leafIdx, visits, value, draw, m)

	if remaining == 0 {
		t.forceTranspositionCopy(leafIdx, node, rootIdx)
	}
}

// transpositionSample draws the sampleIndex-th usable value from the
// transposition root's subtree, per spec.md §4.C: index 0 is the root's own
// value (same side to move as the leaf, no sign flip); index 1 is the
// root's first expanded child, negated (one ply deeper, opposite side to
// move); index 2 is a grandchild under that first child (two plies deeper,
// same side to move again, no flip).
func (t *Tree) transpositionSample(rootIdx NodeIndex, sampleIndex int) (value, draw, movesLeft float64, ok bool) {
	root := t.Arena.Get(rootIdx)
	switch sampleIndex {
	case 0:
		return float64(root.V), 1 - float64(root.WinP) - float64(root.LossP), float64(root.AvgM()), true
	case 1:
		child1 := firstExpandedChild(t, root)
		if child1 == NoNode {
			return 0, 0, 0, false
		}
		c := t.Arena.Get(child1)
		return -float64(c.V), 1 - float64(c.WinP) - float64(c.LossP), float64(c.AvgM()) + 1, true
	default:
		child1 := firstExpandedChild(t, root)
		if child1 == NoNode {
			return 0, 0, 0, false
		}
		grandchild := firstExpandedChild(t, t.Arena.Get(child1))
		if grandchild == NoNode {
			return 0, 0, 0, false
		}
		g := t.Arena.Get(grandchild)
		return float64(g.V), 1 - float64(g.WinP) - float64(g.LossP), float64(g.AvgM()) + 2, true
	}
}

func firstExpandedChild(t *Tree, node *NodeRecord) NodeIndex {
	edges := t.Arena.Edges(node)
	for i := range edges {
		if c := edges[i].Child(); c != NoNode {
			return c
		}
	}
	return NoNode
}

// forceTranspositionCopy materializes the leaf's own policy table from the
// transposition root (the same copy SingleNodeCopy would have done up
// front) once the sample budget is exhausted, and clears the link so the
// node behaves as an ordinary internal node from then on.
func (t *Tree) forceTranspositionCopy(idx NodeIndex, node *NodeRecord, rootIdx NodeIndex) {
	root := t.Arena.Get(rootIdx)
	edges := t.Arena.Edges(root)
	priors := make([]PriorMove, len(edges))
	for i := range edges {
		priors[i] = PriorMove{Move: edges[i].Move, Prior: edges[i].Prior}
	}
	if err := t.Arena.InstallPolicy(node, priors); err != nil {
		log.Error().Err(err).Uint32("node", uint32(idx)).Msg("failed to force-copy transposition policy")
	} else {
		value, winP, lossP, movesLeft := transpositionCopyValue(t.Config, root, node.Depth)
		node.V, node.WinP, node.LossP, node.MPosition = value, winP, lossP, movesLeft
		node.FinishExpanding()
	}
	node.delinkTransposition()
}
