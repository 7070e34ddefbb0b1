package search

// LeafKind classifies a selected leaf by what it needs before it can be
// backed up, per spec.md §4.E.
type LeafKind int

const (
	// LeafNN needs a real neural-network evaluation; it is batched.
	LeafNN LeafKind = iota
	// LeafImmediate was resolved by the pre-NN evaluator pipeline
	// (terminal, transposition sample, or cache hit) and can be backed
	// up without waiting on the batch.
	LeafImmediate
	// LeafCacheOnly is a surplus LeafNN entry beyond the batch sizer's
	// max_nodes_nn cap (spec.md §4.E/§4.F): still sent to the NN evaluator
	// and cached, but never applied to the tree, since applying it would
	// exceed the batch this round was sized for.
	LeafCacheOnly
	// LeafIgnored was selected again by this selector's own descent
	// while it was still in-flight in the *other* selector's not-yet-
	// applied set; its virtual loss is released when the round's
	// immediates are applied and it contributes nothing further this
	// round, avoiding a double count of the same pending evaluation.
	LeafIgnored
)

// SelectedLeaf is one outcome of a single PUCT descent from root.
type SelectedLeaf struct {
	Index    NodeIndex
	Depth    int32
	Kind     LeafKind
	Outcome  EvalOutcome // populated only for LeafImmediate
	Encoding []byte      // populated only for LeafNN, captured while the oracle was still positioned there
}

// SelectedNodesSet accumulates one selector's descents for a round,
// partitioning them into NN/Immediate/Ignored per spec.md §4.E, and
// tracks which arena indices it has already touched so repeated descents
// into the same unresolved leaf (multi-visit batching) collapse into a
// single NN submission carrying extra virtual-loss weight rather than
// duplicate entries.
type SelectedNodesSet struct {
	Selector SelectorID
	Leaves   []SelectedLeaf

	seen   map[NodeIndex]int // index into Leaves, for multi-visit collapse
	visits map[NodeIndex]int32
}

// NewSelectedNodesSet returns an empty set for the given selector slot.
func NewSelectedNodesSet(id SelectorID) *SelectedNodesSet {
	return &SelectedNodesSet{
		Selector: id,
		seen:     make(map[NodeIndex]int),
		visits:   make(map[NodeIndex]int32),
	}
}

// Reset clears the set for reuse across rounds without reallocating the
// backing slice, mirroring the teacher's habit of reusing scratch buffers
// across Select/Expand cycles.
func (s *SelectedNodesSet) Reset() {
	s.Leaves = s.Leaves[:0]
	for k := range s.seen {
		delete(s.seen, k)
	}
	for k := range s.visits {
		delete(s.visits, k)
	}
}

// VisitsAt reports how many descents (this round) landed on idx.
func (s *SelectedNodesSet) VisitsAt(idx NodeIndex) int32 { return s.visits[idx] }

// AddSelected records one descent's terminal leaf. peerPending is the other
// selector's not-yet-applied set from its prior round (nil on the very
// first round of either selector), used for the Ignored de-duplication
// rule.
func (s *SelectedNodesSet) AddSelected(t *Tree, idx NodeIndex, depth int32, oracle PositionOracle, peerPending map[NodeIndex]struct{}) {
	s.visits[idx]++
	if i, dup := s.seen[idx]; dup {
		// Extra visit to an already-classified leaf this round: just bump
		// the visit counter already incremented above, nothing else to
		// add to Leaves.
		_ = i
		return
	}

	if peerPending != nil {
		if _, pending := peerPending[idx]; pending {
			s.seen[idx] = len(s.Leaves)
			s.Leaves = append(s.Leaves, SelectedLeaf{Index: idx, Depth: depth, Kind: LeafIgnored})
			return
		}
	}

	node := t.Arena.Get(idx)
	leaf := SelectedLeaf{Index: idx, Depth: depth}

	switch {
	case node.IsTerminal():
		leaf.Kind = LeafImmediate
		leaf.Outcome = EvalOutcome{Terminal: node.Terminal, Value: node.Terminal.Value()}
	case node.TranspositionRootIndex != NoNode:
		leaf.Kind = LeafImmediate
		leaf.Outcome = EvalOutcome{} // value drawn in backup.go from the linked subtree
	default:
		if outcome, resolved := DefaultPipeline().Run(t, idx, node, oracle, s.Selector); resolved {
			leaf.Kind = LeafImmediate
			leaf.Outcome = outcome
		} else if node.TranspositionRootIndex != NoNode {
			// linked just now by TranspositionEvaluator: same immediate
			// path as an already-linked leaf, no NN evaluation
			leaf.Kind = LeafImmediate
			leaf.Outcome = EvalOutcome{}
		} else {
			leaf.Kind = LeafNN
			leaf.Encoding = oracle.Encode()
		}
	}

	s.seen[idx] = len(s.Leaves)
	s.Leaves = append(s.Leaves, leaf)
}

// MarkOverflowCacheOnly reclassifies any LeafNN entries beyond maxNodesNN
// (in selection order) as LeafCacheOnly, per spec.md §4.E/§4.F: "surplus
// beyond max_nodes_nn... evaluated on NN, cached, but not applied".
// maxNodesNN <= 0 disables the cap.
func (s *SelectedNodesSet) MarkOverflowCacheOnly(maxNodesNN int) {
	if maxNodesNN <= 0 {
		return
	}
	count := 0
	for i := range s.Leaves {
		if s.Leaves[i].Kind != LeafNN {
			continue
		}
		count++
		if count > maxNodesNN {
			s.Leaves[i].Kind = LeafCacheOnly
		}
	}
}

// EncodingAt returns the captured NN encoding for idx, or nil if idx was
// never classified LeafNN/LeafCacheOnly this round.
func (s *SelectedNodesSet) EncodingAt(idx NodeIndex) []byte {
	if i, ok := s.seen[idx]; ok {
		return s.Leaves[i].Encoding
	}
	return nil
}

// NNIndices returns the arena indices of every leaf still needing a real
// NN evaluation and backup, in selection order.
func (s *SelectedNodesSet) NNIndices() []NodeIndex {
	out := make([]NodeIndex, 0, len(s.Leaves))
	for _, leaf := range s.Leaves {
		if leaf.Kind == LeafNN {
			out = append(out, leaf.Index)
		}
	}
	return out
}

// CacheOnlyIndices returns the arena indices of every leaf evaluated on the
// NN and cached but never applied, in selection order.
func (s *SelectedNodesSet) CacheOnlyIndices() []NodeIndex {
	out := make([]NodeIndex, 0)
	for _, leaf := range s.Leaves {
		if leaf.Kind == LeafCacheOnly {
			out = append(out, leaf.Index)
		}
	}
	return out
}

// Pending returns the set of NN-bound (and cache-only) indices as a
// membership set, used by the other selector's next round to compute its
// Ignored partition — both kinds still have an outstanding evaluation this
// selector hasn't backed up yet.
func (s *SelectedNodesSet) Pending() map[NodeIndex]struct{} {
	out := make(map[NodeIndex]struct{}, len(s.Leaves))
	for _, leaf := range s.Leaves {
		if leaf.Kind == LeafNN || leaf.Kind == LeafCacheOnly {
			out[leaf.Index] = struct{}{}
		}
	}
	return out
}
