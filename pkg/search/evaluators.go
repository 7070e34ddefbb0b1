package search

// EvalOutcome is what a single leaf evaluator (or, ultimately, the NN
// evaluator) produces for a freshly-selected leaf: either a resolution
// (value/WDL/M, and optionally a terminal kind or a policy to install) or
// NotResolved, letting the next stage try.
type EvalOutcome struct {
	Value     float32
	WinP      float32
	LossP     float32
	MovesLeft float32
	Terminal  TerminalKind
	Policy    []PriorMove // non-nil only when this resolution should install children priors now (cache hit, or a forced transposition copy)
}

// Evaluator is one stage of the pre-NN pipeline (spec.md §4.C). The first
// Resolved stage wins; an evaluator reports resolution via the bool return.
// selector identifies which descending selector is asking, needed by
// TranspositionEvaluator to consult its own or its peer's not-yet-flushed
// staged insertions (spec.md §6's in-flight linkage knobs).
type Evaluator interface {
	Evaluate(t *Tree, idx NodeIndex, node *NodeRecord, oracle PositionOracle, selector SelectorID) (EvalOutcome, bool)
}

// TerminalEvaluator detects checkmate/stalemate/tablebase outcomes and
// three-fold/50-move draws via the oracle, yielding a deterministic value.
type TerminalEvaluator struct{}

func (TerminalEvaluator) Evaluate(_ *Tree, _ NodeIndex, _ *NodeRecord, oracle PositionOracle, _ SelectorID) (EvalOutcome, bool) {
	if kind, ok := oracle.Terminal(); ok {
		return EvalOutcome{Terminal: kind, Value: kind.Value()}, true
	}
	if oracle.IsRepetitionOrFiftyMove() {
		return EvalOutcome{Terminal: Stalemate, Value: 0.5}, true
	}
	return EvalOutcome{}, false
}

// CacheEvaluator performs a content-addressed lookup of a prior NN output.
// A hit installs the cached policy immediately, just as a real NN
// evaluation would, so the node becomes a normal internal node from then
// on (no further cache involvement for its descendants).
type CacheEvaluator struct{}

func (CacheEvaluator) Evaluate(t *Tree, _ NodeIndex, node *NodeRecord, _ PositionOracle, _ SelectorID) (EvalOutcome, bool) {
	if t.Cache == nil {
		return EvalOutcome{}, false
	}
	result, ok := t.Cache.Get(node.ZobristHash)
	if !ok {
		return EvalOutcome{}, false
	}
	return EvalOutcome{
		Value: result.Value, WinP: result.WinP, LossP: result.LossP,
		MovesLeft: result.MovesLeft, Policy: result.Policy,
	}, true
}

// transpositionCopyValue resolves the value/WDL that a SingleNodeCopy (or a
// forced deferred-copy) installs on the leaf, honoring
// transposition_use_transposed_q: the root's raw value assumes the leaf
// sits at the same side-to-move as the root (spec.md §4.C's sample index
// 0). When the leaf is actually an odd number of plies away from the root
// (opposite side to move), that raw value is from the wrong side; the
// parity-corrected value is 1 - value, with Win/Loss swapped. transposition_root_
// q_fraction blends the parity-corrected value against the raw one — 1.0
// (the default) uses the corrected value outright, 0.0 ignores parity
// entirely, matching spec.md §9's note that the exact blend was left to the
// implementer.
func transpositionCopyValue(cfg *Config, root *NodeRecord, leafDepth uint16) (value, winP, lossP, movesLeft float32) {
	rootQ := root.Q()
	rawValue, rawWin, rawLoss := float32(rootQ), root.WinP, root.LossP
	movesLeft = float32(root.AvgM())
	if !cfg.TranspositionUseTransposedQ {
		return rawValue, rawWin, rawLoss, movesLeft
	}

	corrected, correctedWin, correctedLoss := rawValue, rawWin, rawLoss
	if oppositeSide := (leafDepth-root.Depth)%2 != 0; oppositeSide {
		corrected = float32(1 - rootQ)
		correctedWin, correctedLoss = rawLoss, rawWin
	}

	frac := float32(cfg.TranspositionRootQFraction)
	value = frac*corrected + (1-frac)*rawValue
	winP = frac*correctedWin + (1-frac)*rawWin
	lossP = frac*correctedLoss + (1-frac)*rawLoss
	return value, winP, lossP, movesLeft
}

// TranspositionEvaluator implements spec.md §4.C's linkage step. It is only
// ever invoked on a leaf that is neither already known-terminal nor already
// linked (the dispatcher in selected.go handles both of those cases before
// reaching the pipeline at all) — so this evaluator's only job is *first*
// linkage: find an extant equivalent-position subtree and either copy it in
// (SingleNodeCopy) or record deferred linkage (SingleNodeDeferredCopy /
// SharedSubtree).
type TranspositionEvaluator struct{}

func (TranspositionEvaluator) Evaluate(t *Tree, idx NodeIndex, node *NodeRecord, _ PositionOracle, selector SelectorID) (EvalOutcome, bool) {
	rootIdx, found := t.TT.TryGet(node.ZobristHash)
	if !found {
		// Nothing flushed yet; a sibling descent in this very batch (this
		// selector's own, or its peer's) may already be staging the same
		// hash, per spec.md §6's in-flight linkage knobs.
		rootIdx, found = t.TT.TryGetStaged(selector, node.ZobristHash,
			t.Config.InFlightThisBatchLinkageEnabled, t.Config.InFlightOtherBatchLinkageEnabled)
	}
	if !found || rootIdx == idx {
		return EvalOutcome{}, false
	}
	root := t.Arena.Get(rootIdx)
	if root.IsTerminal() || root.N() < 1 || root.ZobristHash != node.ZobristHash {
		return EvalOutcome{}, false
	}

	if t.Config.TranspositionMode == SingleNodeCopy {
		edges := t.Arena.Edges(root)
		priors := make([]PriorMove, len(edges))
		for i := range edges {
			priors[i] = PriorMove{Move: edges[i].Move, Prior: edges[i].Prior}
		}
		value, winP, lossP, movesLeft := transpositionCopyValue(t.Config, root, node.Depth)
		return EvalOutcome{
			Value: value, WinP: winP, LossP: lossP,
			MovesLeft: movesLeft, Policy: priors,
		}, true
	}

	// SingleNodeDeferredCopy / SharedSubtree: record linkage, do not copy
	// yet. The budget and sample values are resolved in backup.go, which
	// is where spec.md places the actual value-drawing responsibility.
	budget := int32(usableTranspositionSubnodeCount(t, rootIdx))
	if cfg := t.Config.maxTranspositionRootApplications(root.N()); int32(cfg) < budget {
		budget = int32(cfg)
	}
	if budget <= 0 {
		// Nothing usable to sample from; fall through to NN instead of
		// linking to a subtree we can't safely draw from.
		return EvalOutcome{}, false
	}
	node.linkTransposition(rootIdx, budget)
	// This first resolution still consumes one unit of budget, backed up
	// with the visit-0 sample (the root's own value) — handled uniformly
	// by backup.go alongside subsequent linked visits, so we just report
	// NotResolved-via-pipeline and let the dispatcher route it through the
	// "already linked" immediate path for this very call too.
	return EvalOutcome{}, false
}

// usableTranspositionSubnodeCount implements spec.md §4.C's definition: the
// root, its first expanded child, its second expanded child, and a
// grandchild under the first child, counted only while each is non-
// transposition-linked and has a populated value (N >= 1).
func usableTranspositionSubnodeCount(t *Tree, rootIdx NodeIndex) int {
	count := 0
	root := t.Arena.Get(rootIdx)
	if usableSubnode(root) {
		count++
	}

	var child1, child2 NodeIndex
	edges := t.Arena.Edges(root)
	for i := range edges {
		c := edges[i].Child()
		if c == NoNode {
			continue
		}
		if child1 == NoNode {
			child1 = c
		} else if child2 == NoNode {
			child2 = c
			break
		}
	}
	if child1 != NoNode && usableSubnode(t.Arena.Get(child1)) {
		count++
	}
	if child2 != NoNode && usableSubnode(t.Arena.Get(child2)) {
		count++
	}
	if child1 != NoNode {
		c1 := t.Arena.Get(child1)
		gcEdges := t.Arena.Edges(c1)
		for i := range gcEdges {
			gc := gcEdges[i].Child()
			if gc != NoNode && usableSubnode(t.Arena.Get(gc)) {
				count++
				break
			}
		}
	}
	return count
}

func usableSubnode(n *NodeRecord) bool {
	return n.TranspositionRootIndex == NoNode && n.N() >= 1
}

// EvaluatorPipeline runs the ordered stages of spec.md §4.C, first-resolved-
// wins.
type EvaluatorPipeline struct {
	stages []Evaluator
}

// DefaultPipeline returns the canonical Terminal -> Transposition -> Cache
// ordering spec.md §4.C names.
func DefaultPipeline() *EvaluatorPipeline {
	return &EvaluatorPipeline{stages: []Evaluator{TerminalEvaluator{}, TranspositionEvaluator{}, CacheEvaluator{}}}
}

func (p *EvaluatorPipeline) Run(t *Tree, idx NodeIndex, node *NodeRecord, oracle PositionOracle, selector SelectorID) (EvalOutcome, bool) {
	for _, stage := range p.stages {
		if out, ok := stage.Evaluate(t, idx, node, oracle, selector); ok {
			return out, true
		}
	}
	return EvalOutcome{}, false
}
