package search

import (
	"errors"
	"sync"
	"testing"
)

func TestArenaReservesIndexZero(t *testing.T) {
	a := NewArena(8, 0, false)
	if a.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 right after construction", a.Size())
	}
	idx, err := a.allocateNodes(1)
	if err != nil {
		t.Fatalf("allocateNodes: %v", err)
	}
	if idx == NoNode {
		t.Fatal("first allocated node must not be NoNode")
	}
}

func TestArenaAllocateChildIsIdempotentUnderRace(t *testing.T) {
	a := NewArena(64, 8, false)
	root, _ := a.allocateNodes(1)
	a.Get(root).reset(NoNode, 1, 0)
	if err := a.InstallPolicy(a.Get(root), []PriorMove{{Move: 1, Prior: 1.0}}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	edgeOffset := a.Get(root).FirstPolicyIndex

	const goroutines = 16
	results := make([]NodeIndex, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		go func() {
			defer wg.Done()
			idx, err := a.AllocateChild(root, edgeOffset, 99, 1)
			if err != nil {
				t.Errorf("AllocateChild: %v", err)
				return
			}
			results[i] = idx
		}()
	}
	wg.Wait()

	first := results[0]
	for i, r := range results {
		if r != first {
			t.Fatalf("result[%d] = %v, want %v (all racers must agree on one winner)", i, r, first)
		}
	}
	if got := a.Get(root).NumChildrenExpanded(); got != 1 {
		t.Fatalf("NumChildrenExpanded() = %d, want 1 (only the race winner counts)", got)
	}
}

func TestArenaExhaustionReturnsErrArenaExhausted(t *testing.T) {
	a := NewArena(2, 8, false)
	// index 0 reserved, index 1 available.
	if _, err := a.allocateNodes(1); err != nil {
		t.Fatalf("first allocateNodes: %v", err)
	}
	if _, err := a.allocateNodes(1); !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("allocateNodes past capacity = %v, want ErrArenaExhausted", err)
	}
}

func TestArenaEdgesViewMatchesInstalledPolicy(t *testing.T) {
	a := NewArena(4, 8, false)
	root, _ := a.allocateNodes(1)
	node := a.Get(root)
	node.reset(NoNode, 1, 0)

	priors := []PriorMove{{Move: 10, Prior: 0.4}, {Move: 20, Prior: 0.6}}
	if err := a.InstallPolicy(node, priors); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}

	edges := a.Edges(node)
	if len(edges) != 2 {
		t.Fatalf("len(Edges) = %d, want 2", len(edges))
	}
	for i, p := range priors {
		if edges[i].Move != p.Move || edges[i].Prior != p.Prior {
			t.Fatalf("edge %d = %+v, want move=%v prior=%v", i, &edges[i], p.Move, p.Prior)
		}
		if edges[i].Child() != NoNode {
			t.Fatalf("freshly installed edge %d should have no child yet", i)
		}
	}
}
