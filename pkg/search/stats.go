package search

import "sync/atomic"

// TreeStats holds the observable counters exposed to callers, mirroring the
// teacher's TreeStats (maxdepth/cps/cycles) generalized with batch-level
// throughput counters the NN-guided flow needs.
type TreeStats struct {
	maxDepth           atomic.Int32
	totalVisitsAttempted atomic.Uint64
	totalVisitsSucceeded atomic.Uint64
	lastBatchYield       atomic.Uint64 // fixed-point *1e6, see outcomeScale
	batchesCompleted     atomic.Uint32
	nnEvaluations        atomic.Uint64
	arenaExhausted       atomic.Bool
}

func (s *TreeStats) MaxDepth() int32 { return s.maxDepth.Load() }

func (s *TreeStats) recordDepth(depth int32) {
	for {
		cur := s.maxDepth.Load()
		if depth <= cur {
			return
		}
		if s.maxDepth.CompareAndSwap(cur, depth) {
			return
		}
	}
}

func (s *TreeStats) TotalVisitsAttempted() uint64 { return s.totalVisitsAttempted.Load() }
func (s *TreeStats) TotalVisitsSucceeded() uint64 { return s.totalVisitsSucceeded.Load() }
func (s *TreeStats) BatchesCompleted() uint32     { return s.batchesCompleted.Load() }
func (s *TreeStats) NNEvaluations() uint64        { return s.nnEvaluations.Load() }

// LastBatchYield returns num_new_leafs_added_non_duplicates /
// num_leafs_attempted for the most recently completed batch, per spec.md
// §8's yield-bound law.
func (s *TreeStats) LastBatchYield() float64 {
	return float64(s.lastBatchYield.Load()) / outcomeScale
}

// ArenaExhausted reports whether the arena ran out of capacity at any point
// during this tree's search, per spec.md §4.A/§8's graceful-degradation
// requirement: the search keeps running on whatever tree it already built,
// but callers need a way to learn that the node budget, not the move
// budget, was the thing that actually stopped growth.
func (s *TreeStats) ArenaExhausted() bool { return s.arenaExhausted.Load() }

func (s *TreeStats) recordArenaExhausted() { s.arenaExhausted.Store(true) }

func (s *TreeStats) recordBatch(attempted, succeeded uint64) {
	s.totalVisitsAttempted.Add(attempted)
	s.totalVisitsSucceeded.Add(succeeded)
	s.batchesCompleted.Add(1)
	yield := 0.0
	if attempted > 0 {
		yield = float64(succeeded) / float64(attempted)
	}
	s.lastBatchYield.Store(uint64(yield * outcomeScale))
}

// Snapshot is a point-in-time, race-free copy of tree statistics, the
// generalization of the teacher's ListenerTreeStats for NN-guided search.
type Snapshot struct {
	RootN            int32
	MaxDepth         int32
	BatchesCompleted uint32
	NNEvaluations    uint64
	LastBatchYield   float64
	ElapsedMs        int64
	PV               []MoveEncoding
	ArenaExhausted   bool
}
