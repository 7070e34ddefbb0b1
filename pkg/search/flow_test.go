package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/nncore/chesscore/internal/stuboracle"
	"github.com/nncore/chesscore/internal/stubnn"
	"github.com/nncore/chesscore/pkg/search"
)

func TestScenario_SingleRootEval(t *testing.T) {
	root := stuboracle.New(4, 6)
	nn := stubnn.New(4)
	cfg := search.DefaultConfig().SetDualSelectors(false)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 1)

	snap := flow.ProcessDirectOverlapped(context.Background(), 1, 0, 0)
	if snap.RootN < 1 {
		t.Fatalf("RootN = %d, want >= 1 after reaching a hard node limit of 1", snap.RootN)
	}
	if snap.NNEvaluations < 1 {
		t.Fatalf("NNEvaluations = %d, want >= 1", snap.NNEvaluations)
	}
}

func TestScenario_ManyBatchesGrowsTree(t *testing.T) {
	root := stuboracle.New(6, 10)
	nn := stubnn.New(6)
	cfg := search.DefaultConfig().SetDualSelectors(false)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 2)

	// forcedBatchSize=1 keeps each round's NN-bound work to a single leaf,
	// so a hard limit of 100 exercises roughly a hundred rounds of the
	// coordinator loop.
	snap := flow.ProcessDirectOverlapped(context.Background(), 100, 0, 1)
	if snap.RootN < 100 {
		t.Fatalf("RootN = %d, want >= 100 (the requested hard node limit)", snap.RootN)
	}
	if snap.BatchesCompleted == 0 {
		t.Fatal("BatchesCompleted = 0, want at least one recorded batch")
	}
}

func TestScenario_ForcedMateNoNN(t *testing.T) {
	// maxDepth 0 means the root itself is immediately terminal: the search
	// should resolve without ever calling the NN evaluator.
	root := stuboracle.New(4, 0)
	nn := stubnn.New(4)
	cfg := search.DefaultConfig().SetDualSelectors(false)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap := flow.ProcessDirectOverlapped(ctx, 5, 0, 1)
	if snap.NNEvaluations != 0 {
		t.Fatalf("NNEvaluations = %d, want 0 for an already-terminal root", snap.NNEvaluations)
	}
	if snap.RootN < 1 {
		t.Fatalf("RootN = %d, want >= 1 (terminal leaves still get backed up)", snap.RootN)
	}
}

func TestScenario_OverlapConcurrentSelectors(t *testing.T) {
	root := stuboracle.New(8, 14)
	nn := stubnn.New(8)
	cfg := search.DefaultConfig().SetDualSelectors(true).SetOverlap(true)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap := flow.ProcessDirectOverlapped(ctx, 40, 0, 1)
	if snap.RootN < 1 {
		t.Fatalf("RootN = %d, want >= 1 after overlapped dual-selector run", snap.RootN)
	}
}

func TestScenario_ArenaExhaustionGraceful(t *testing.T) {
	root := stuboracle.New(8, 20)
	nn := stubnn.New(8)
	cfg := search.DefaultConfig().SetDualSelectors(false).SetArenaCapacity(24)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Should not panic even once the tiny arena fills up; the coordinator
	// loop should notice ArenaExhausted and stop rather than spin forever.
	snap := flow.ProcessDirectOverlapped(ctx, 30, 0, 1)
	if snap.RootN < 1 {
		t.Fatalf("RootN = %d, want >= 1 even with a tiny arena", snap.RootN)
	}
	if !snap.ArenaExhausted {
		t.Fatal("ArenaExhausted = false, want true once a 24-node arena fills up over 30 requested visits")
	}
}

func TestScenario_RunBatchesConvenienceWrapper(t *testing.T) {
	root := stuboracle.New(4, 6)
	nn := stubnn.New(4)
	cfg := search.DefaultConfig().SetDualSelectors(false)
	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 6)

	snap := flow.RunBatches(context.Background(), 10)
	if snap.RootN < 10 {
		t.Fatalf("RootN = %d, want >= 10 extra visits over the starting root_n of 0", snap.RootN)
	}
}
