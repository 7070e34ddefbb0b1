package search

import (
	"math"

	"golang.org/x/exp/slices"
)

// BatchSizer decides how many NN-bound leaves to collect before submitting
// a batch, per spec.md §4.F: snap to the configured device breakpoints,
// optionally pad the batch with extra root-preload work when the real
// selection falls short, and apply the split-collection 60/40 policy when
// enabled.
type BatchSizer struct {
	cfg *Config
}

func NewBatchSizer(cfg *Config) *BatchSizer { return &BatchSizer{cfg: cfg} }

// EarlySearchRootN is the root visit count below which spec.md §4.F says the
// search is still "early": batches stay small and overlap is disabled,
// since there isn't yet enough of a tree to keep two selectors usefully
// busy at once.
const EarlySearchRootN = 3000

// breakpointTolerance is how far (as a fraction of n) a candidate size may
// sit from the nearest device breakpoint and still snap to it, per spec.md
// §4.F's "snap to the nearest breakpoint within roughly 20%" rule.
const breakpointTolerance = 0.2

// SnapToBreakpoint snaps n to the nearest configured device breakpoint, but
// only when that breakpoint lies within breakpointTolerance of n; otherwise
// n is left unsnapped. Either way the result is clamped to MaxBatchSize.
// golang.org/x/exp/slices backs the sorted search the way the corpus
// reaches for it over a hand-rolled binary search.
func (b *BatchSizer) SnapToBreakpoint(n int) int {
	bps := b.cfg.DeviceBreakpoints
	if len(bps) == 0 {
		return clampInt(n, 0, b.cfg.MaxBatchSize)
	}

	i := slices.IndexFunc(bps, func(bp int) bool { return bp >= n })
	candidates := make([]int, 0, 2)
	if i < len(bps) && i >= 0 {
		candidates = append(candidates, bps[i])
	}
	if i > 0 {
		candidates = append(candidates, bps[i-1])
	}
	if len(candidates) == 0 {
		// n is past every breakpoint; nearest is the largest one.
		candidates = append(candidates, bps[len(bps)-1])
	}

	best := n
	bestDist := -1
	for _, bp := range candidates {
		d := absInt(bp - n)
		if bestDist == -1 || d < bestDist {
			best, bestDist = bp, d
		}
	}

	tolerance := int(float64(n) * breakpointTolerance)
	if bestDist <= tolerance {
		return clampInt(best, 0, b.cfg.MaxBatchSize)
	}
	return clampInt(n, 0, b.cfg.MaxBatchSize)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TargetSize returns the batch size a selector should collect before
// submitting, and whether overlap may run this round, per spec.md §4.F:
// early in the search (root_n below EarlySearchRootN) batches stay small
// and overlap is disallowed regardless of configuration; once past that
// point, smart_size_batches scales the target sub-linearly (sqrt) against
// the estimated remaining budget, dual_selectors halves the per-selector
// share, and batch_size_multiplier applies last, before the result is
// snapped to a device breakpoint.
func (b *BatchSizer) TargetSize(estimatedTotalNodes int, rootN int32, overlapRequested, dualSelectors bool) (target int, allowOverlap bool) {
	allowOverlap = overlapRequested && dualSelectors && rootN >= EarlySearchRootN

	if rootN < EarlySearchRootN {
		base := smallestBreakpoint(b.cfg.DeviceBreakpoints)
		return b.SnapToBreakpoint(base), allowOverlap
	}

	base := float64(b.cfg.MaxBatchSize)
	if b.cfg.SmartSizeBatches && estimatedTotalNodes > 0 {
		remaining := float64(estimatedTotalNodes) - float64(rootN)
		if remaining < 1 {
			remaining = 1
		}
		base = math.Sqrt(remaining)
	}
	if dualSelectors {
		base /= 2
	}
	base *= b.cfg.BatchSizeMultiplier
	if base < 1 {
		base = 1
	}
	return b.SnapToBreakpoint(int(base)), allowOverlap
}

func smallestBreakpoint(bps []int) int {
	if len(bps) == 0 {
		return 1
	}
	smallest := bps[0]
	for _, bp := range bps[1:] {
		if bp < smallest {
			smallest = bp
		}
	}
	if smallest < 1 {
		return 1
	}
	return smallest
}

// SplitCollection, when enabled, says whether a selector holding
// collected NN leaves should submit now rather than keep collecting: once
// it holds >= 60% of the target and the moving yield estimate is at least
// the configured gate, submitting early keeps the GPU fed instead of
// stalling for the last stragglers. Mirrors the "don't wait for the slow
// tail" rationale behind the teacher's batch flush heuristics, generalized
// with the spec's literal 60/40 split and 0.667 yield gate.
func (b *BatchSizer) SplitCollection(collected, target int, recentYield float64) bool {
	if !b.cfg.FlowSplitSelects {
		return collected >= target
	}
	if collected >= target {
		return true
	}
	const splitFraction = 0.6
	const yieldGate = 0.667
	return float64(collected) >= float64(target)*splitFraction && recentYield >= yieldGate
}

// PadWithRootPreload returns how many extra root-adjacent placeholder
// allocations (spec.md §4.G root-preload padding) a caller should request
// to round a short batch out to its snapped target, never more than the
// shortfall.
func (b *BatchSizer) PadWithRootPreload(collected, target int) int {
	if collected >= target {
		return 0
	}
	return target - collected
}

func clampInt(v, lo, hi int) int {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
