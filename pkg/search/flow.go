package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Flow is the double-buffered search orchestrator of spec.md §4.G: a single
// coordinator loop alternates between the two selectors (when overlap is
// active), launching each round's NN evaluation asynchronously and only
// awaiting the *prior* round's task once the next round's leaves have
// already been collected — so selection for round N+1 overlaps the
// GPU/accelerator latency of round N's evaluation.
type Flow struct {
	Tree  *Tree
	Sizer *BatchSizer

	selectors [numSelectors]*Selector
	oracles   [numSelectors]PositionOracle

	// pending holds each selector's most recently completed NN-bound set,
	// read by its peer's next round to compute the Ignored partition
	// (spec.md §4.E).
	pending [numSelectors]atomic.Pointer[map[NodeIndex]struct{}]

	rootNoiseInjected atomic.Bool
}

// nnBatchTask is one in-flight (or completed) asynchronous NN evaluation,
// the unit the coordinator loop double-buffers. In overlapped rounds a
// round's task is launched before the prior round's task is awaited, so up
// to two can be in flight at once; the prior one is awaited in the *next*
// round, or at shutdown.
type nnBatchTask struct {
	selector      SelectorID
	set           *SelectedNodesSet
	nnNodes       []NodeIndex
	cacheOnlyNodes []NodeIndex
	done          chan nnTaskOutcome
}

type nnTaskOutcome struct {
	results []EvalResult
	err     error
}

// NewFlow builds a Flow with one independent PositionOracle per selector,
// both positioned at the tree's current root (oracleFactory is called once
// per selector slot and must return an oracle already set to the same
// starting position the Tree was constructed with).
func NewFlow(t *Tree, oracleFactory func() PositionOracle, seed uint64) *Flow {
	f := &Flow{Tree: t, Sizer: NewBatchSizer(t.Config)}
	for i := 0; i < numSelectors; i++ {
		f.selectors[i] = NewSelector(SelectorID(i), seed+uint64(i))
		f.oracles[i] = oracleFactory()
	}
	return f
}

// ProcessDirectOverlapped is the entry point spec.md §4.G/§6 names
// process_direct_overlapped: it drives the search until the root has
// accumulated hardNodeLimit visits (or ctx is cancelled, or the arena is
// exhausted), alternating selectors and overlapping NN evaluation with
// selection whenever the configuration and the sizer both allow it.
// startingBatchSeq offsets the periodic-maintenance counter, letting a
// caller resume a paused search without re-triggering the "every third
// batch" cadence from scratch. forcedBatchSize, when > 0, overrides the
// sizer's computed target for every round (used by tests and by callers
// who want to reproduce a fixed batch shape).
func (f *Flow) ProcessDirectOverlapped(ctx context.Context, hardNodeLimit int32, startingBatchSeq uint32, forcedBatchSize int) Snapshot {
	if hardNodeLimit < 1 {
		hardNodeLimit = 1
	}
	if f.Tree.startedAt.IsZero() {
		f.Tree.startedAt = time.Now()
	}

	selectorID := Selector0
	var priorTask *nnBatchTask
	batchSeq := startingBatchSeq

	for ctx.Err() == nil && !f.Tree.Stats.ArenaExhausted() && f.Tree.RootNode().N() < hardNodeLimit {
		rootN := f.Tree.RootNode().N()
		target, allowOverlap := f.Sizer.TargetSize(int(hardNodeLimit), rootN, f.Tree.Config.FlowDirectOverlapped, f.Tree.Config.FlowDualSelectors)
		if forcedBatchSize > 0 {
			target = forcedBatchSize
		}
		// First round of the whole search (root_n == 0) never overlaps:
		// there is nothing yet for a second selector to usefully diverge
		// on, per spec.md §8's boundary case.
		overlapThisRound := allowOverlap && rootN > 0

		set, nnNodes, cacheOnlyNodes := f.collectRound(selectorID, target, rootN)
		f.applyImmediates(selectorID, set)

		task := f.launchNNTask(ctx, selectorID, set, nnNodes, cacheOnlyNodes)

		if overlapThisRound {
			if priorTask != nil {
				f.applyNNTask(priorTask)
			}
			priorTask = task
			selectorID = SelectorID(1 - int(selectorID))
		} else {
			// Serial mode: no second selector run is pending, so there is
			// nothing to overlap this round's task against. Await it
			// immediately, and flush whatever the *other* mode left
			// buffered so it isn't stranded across a config/phase change.
			if priorTask != nil {
				f.applyNNTask(priorTask)
				priorTask = nil
			}
			f.applyNNTask(task)
			selectorID = Selector0
		}

		f.maybeMaintain(batchSeq)
		batchSeq++
	}

	if priorTask != nil {
		f.applyNNTask(priorTask)
	}

	return f.Tree.Snapshot()
}

// RunBatches is a convenience wrapper over ProcessDirectOverlapped for
// callers (and tests) that think in terms of "run until the root has
// accumulated n more visits than it has now" rather than an absolute node
// budget.
func (f *Flow) RunBatches(ctx context.Context, extraVisits int32) Snapshot {
	target := f.Tree.RootNode().N() + extraVisits
	return f.ProcessDirectOverlapped(ctx, target, 0, 0)
}

// maybeMaintain runs periodic upkeep every third completed batch, per
// spec.md §4.G: flushing staged transposition entries (cheap and otherwise
// needed eventually), and injecting root exploration noise once the root
// has first been expanded.
func (f *Flow) maybeMaintain(batchSeq uint32) {
	f.maybeInjectRootNoise()
	if batchSeq%3 == 2 {
		f.Tree.TT.FlushPending()
	}
}

// maybeInjectRootNoise applies InjectRootNoise exactly once, as soon as the
// root has a policy to perturb, per spec.md §4.G's "noise injection after
// root expansion" maintenance step.
func (f *Flow) maybeInjectRootNoise() {
	if f.rootNoiseInjected.Load() {
		return
	}
	root := f.Tree.RootNode()
	if !root.Expanded() {
		return
	}
	if f.rootNoiseInjected.CompareAndSwap(false, true) {
		f.selectors[Selector0].InjectRootNoise(f.Tree, root)
	}
}

// collectRound runs one selector's round of descents up to target NN-bound
// leaves, reclassifies any surplus beyond target as CacheOnly (spec.md
// §4.E/§4.F's max_nodes_nn breakpoint cap), and returns the resulting set
// alongside its two evaluation-bound index lists in submission order.
func (f *Flow) collectRound(id SelectorID, target int, rootN int32) (*SelectedNodesSet, []NodeIndex, []NodeIndex) {
	peer := SelectorID(1 - int(id))
	var peerPending map[NodeIndex]struct{}
	if p := f.pending[peer].Load(); p != nil {
		peerPending = *p
	}

	set := NewSelectedNodesSet(id)
	arenaExhausted := false
	attempts := 0

	for {
		attempts++
		if err := f.selectors[id].Descend(f.Tree, f.oracles[id], set, peerPending); err != nil {
			arenaExhausted = true
			f.Tree.Stats.recordArenaExhausted()
			break
		}
		nnCount := len(set.NNIndices())
		if attempts > 4*target {
			// Degenerate case: descents keep collapsing onto leaves this
			// round has already classified (e.g. the unexpanded root before
			// its first evaluation, or a fully solved near-terminal
			// subtree), so the NN-bound count stops growing. Stop
			// collecting rather than spin forever.
			break
		}
		if f.Sizer.SplitCollection(nnCount, target, f.Tree.Stats.LastBatchYield()) {
			break
		}
	}

	if !arenaExhausted && rootN < EarlySearchRootN {
		for pad := f.Sizer.PadWithRootPreload(len(set.NNIndices()), target); pad > 0; pad-- {
			if err := f.selectors[id].Descend(f.Tree, f.oracles[id], set, peerPending); err != nil {
				f.Tree.Stats.recordArenaExhausted()
				break
			}
		}
	}

	set.MarkOverflowCacheOnly(target)

	pendingSet := set.Pending()
	f.pending[id].Store(&pendingSet)

	return set, set.NNIndices(), set.CacheOnlyIndices()
}

// applyImmediates backs up every LeafImmediate leaf in set inline and tallies
// it plus every LeafIgnored leaf as attempted this round; Ignored leaves
// contribute nothing further beyond releasing the virtual loss their
// descents added to this selector's slot (the peer's evaluation only
// releases the peer's slot), and NN/CacheOnly leaves are tallied
// separately, by applyNNTask, once their task resolves.
func (f *Flow) applyImmediates(id SelectorID, set *SelectedNodesSet) {
	var attempted, succeeded uint64
	for _, leaf := range set.Leaves {
		switch leaf.Kind {
		case LeafImmediate:
			f.Tree.ApplyResult(id, leaf.Index, set.VisitsAt(leaf.Index), leaf.Outcome)
			attempted++
			succeeded++
		case LeafIgnored:
			f.Tree.releaseInFlightPath(id, leaf.Index, set.VisitsAt(leaf.Index))
			attempted++
		}
	}
	f.Tree.Stats.recordBatch(attempted, succeeded)
}

// launchNNTask starts (or, if there's nothing to evaluate, synthesizes an
// already-closed) asynchronous NN evaluation for this round's NN-bound and
// cache-only leaves, positions built in nnNodes-then-cacheOnlyNodes order so
// the result slice the NN evaluator returns aligns index-for-index with
// allNodes := append(nnNodes, cacheOnlyNodes...).
func (f *Flow) launchNNTask(ctx context.Context, id SelectorID, set *SelectedNodesSet, nnNodes, cacheOnlyNodes []NodeIndex) *nnBatchTask {
	task := &nnBatchTask{selector: id, set: set, nnNodes: nnNodes, cacheOnlyNodes: cacheOnlyNodes, done: make(chan nnTaskOutcome, 1)}

	total := len(nnNodes) + len(cacheOnlyNodes)
	if total == 0 {
		task.done <- nnTaskOutcome{}
		return task
	}

	positions := make([][]byte, 0, total)
	for _, idx := range nnNodes {
		positions = append(positions, set.EncodingAt(idx))
	}
	for _, idx := range cacheOnlyNodes {
		positions = append(positions, set.EncodingAt(idx))
	}

	go func() {
		results, err := f.Tree.nn.Evaluate(ctx, positions)
		task.done <- nnTaskOutcome{results: results, err: err}
	}()

	return task
}

// applyNNTask awaits a launched task's result and backs it up: NN-bound
// leaves are cached, staged into the transposition index, and applied to
// the tree; cache-only leaves are cached but never applied, since applying
// them would exceed the batch this round was sized for (spec.md §4.E) —
// their virtual loss is instead released directly, since ApplyResult (the
// only other path that releases it) never runs for them.
func (f *Flow) applyNNTask(task *nnBatchTask) {
	outcome := <-task.done
	allNodes := append(append([]NodeIndex{}, task.nnNodes...), task.cacheOnlyNodes...)
	if len(allNodes) == 0 {
		return
	}
	if outcome.err != nil {
		log.Error().Err(outcome.err).Int("batch_size", len(allNodes)).Msg("nn evaluation failed")
		for _, idx := range allNodes {
			f.releaseCacheOnlyInFlight(task, idx)
		}
		return
	}
	if len(outcome.results) != len(allNodes) {
		log.Error().Int("want", len(allNodes)).Int("got", len(outcome.results)).Msg("nn evaluator returned mismatched result count")
		return
	}

	var succeeded uint64
	for i, idx := range task.nnNodes {
		res := outcome.results[i]
		node := f.Tree.Arena.Get(idx)
		f.Tree.Cache.Put(node.ZobristHash, res)
		f.Tree.TT.Stage(task.selector, node.ZobristHash, idx)
		f.Tree.ApplyResult(task.selector, idx, task.set.VisitsAt(idx), EvalOutcome{
			Value: res.Value, WinP: res.WinP, LossP: res.LossP,
			MovesLeft: res.MovesLeft, Policy: res.Policy,
		})
		succeeded++
	}
	for i, idx := range task.cacheOnlyNodes {
		res := outcome.results[len(task.nnNodes)+i]
		node := f.Tree.Arena.Get(idx)
		f.Tree.Cache.Put(node.ZobristHash, res)
		f.releaseCacheOnlyInFlight(task, idx)
	}

	f.Tree.Stats.nnEvaluations.Add(uint64(len(allNodes)))
	f.Tree.Stats.recordBatch(uint64(len(allNodes)), succeeded)
}

// releaseCacheOnlyInFlight undoes the virtual loss a CacheOnly (or a
// failed-evaluation) leaf's whole descent path accumulated, since it never
// goes through ApplyResult/backupPath, the only other place that releases
// it.
func (f *Flow) releaseCacheOnlyInFlight(task *nnBatchTask, idx NodeIndex) {
	f.Tree.releaseInFlightPath(task.selector, idx, task.set.VisitsAt(idx))
}
