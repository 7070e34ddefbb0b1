package search

import "testing"

// fakeOracle is a minimal, package-local PositionOracle: moves are just
// small integers, never illegal, never terminal, with a hash equal to the
// move path encoded as a string so no two distinct paths transpose. Used
// to test selector mechanics in isolation from any particular game.
type fakeOracle struct {
	path []MoveEncoding
}

func (f *fakeOracle) Hash() PositionHash {
	var h PositionHash = 1
	for _, m := range f.path {
		h = h*131 + PositionHash(m) + 1
	}
	return h
}
func (f *fakeOracle) Terminal() (TerminalKind, bool)  { return NonTerminal, false }
func (f *fakeOracle) Encode() []byte                  { return []byte{byte(len(f.path))} }
func (f *fakeOracle) MakeMove(m MoveEncoding) bool {
	f.path = append(f.path, m)
	return true
}
func (f *fakeOracle) UnmakeMove() {
	if len(f.path) > 0 {
		f.path = f.path[:len(f.path)-1]
	}
}
func (f *fakeOracle) IsRepetitionOrFiftyMove() bool { return false }

func newTestTree() *Tree {
	cfg := DefaultConfig()
	cfg.CacheCapacity = 0
	cfg.ArenaCapacity = 1024
	return NewTree(cfg, nil, 1)
}

func TestSelectorDescendPicksUnexpandedRootEdge(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	if err := tree.Arena.InstallPolicy(root, []PriorMove{
		{Move: 0, Prior: 0.1}, {Move: 1, Prior: 0.9},
	}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	root.FinishExpanding()

	sel := NewSelector(Selector0, 1)
	set := NewSelectedNodesSet(Selector0)
	oracle := &fakeOracle{}

	sel.Descend(tree, oracle, set, nil)

	if len(set.Leaves) != 1 {
		t.Fatalf("len(Leaves) = %d, want 1", len(set.Leaves))
	}
	leaf := set.Leaves[0]
	if leaf.Kind != LeafNN {
		t.Fatalf("leaf.Kind = %v, want LeafNN (fresh leaf with no NN/oracle)", leaf.Kind)
	}
	// The highest-prior edge (move 1) should win the very first descent,
	// since both children start unvisited (equal FPU) and U scales with
	// prior.
	edges := tree.Arena.Edges(root)
	var chosen *PolicyEdge
	for i := range edges {
		if edges[i].Child() == leaf.Index {
			chosen = &edges[i]
		}
	}
	if chosen == nil {
		t.Fatal("could not find which root edge the descent expanded")
	}
	if chosen.Move != 1 {
		t.Fatalf("expanded edge move = %v, want move 1 (the higher-prior edge)", chosen.Move)
	}
	if len(oracle.path) != 0 {
		t.Fatalf("oracle should be unwound back to root after Descend, path = %v", oracle.path)
	}
}

func TestSelectorDescendStopsAtTerminalNode(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	root.Terminal = CheckmateWin
	root.FinishExpanding() // terminal nodes never install real policy, but Expanded() state is irrelevant since IsTerminal() short-circuits first

	sel := NewSelector(Selector0, 1)
	set := NewSelectedNodesSet(Selector0)
	oracle := &fakeOracle{}
	sel.Descend(tree, oracle, set, nil)

	if len(set.Leaves) != 1 || set.Leaves[0].Index != tree.Root() {
		t.Fatalf("descent from a terminal root should select the root itself once, got %+v", set.Leaves)
	}
	if set.Leaves[0].Kind != LeafImmediate {
		t.Fatalf("terminal leaf.Kind = %v, want LeafImmediate", set.Leaves[0].Kind)
	}
}

func TestSelectedNodesSetCollapsesRepeatVisits(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	if err := tree.Arena.InstallPolicy(root, []PriorMove{{Move: 0, Prior: 1.0}}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	root.FinishExpanding()

	sel := NewSelector(Selector0, 1)
	set := NewSelectedNodesSet(Selector0)
	oracle := &fakeOracle{}

	sel.Descend(tree, oracle, set, nil)
	sel.Descend(tree, oracle, set, nil) // second visit lands on the same freshly-expanded leaf

	if len(set.Leaves) != 1 {
		t.Fatalf("len(Leaves) = %d, want 1 (repeat visits collapse)", len(set.Leaves))
	}
	if set.VisitsAt(set.Leaves[0].Index) != 2 {
		t.Fatalf("VisitsAt(leaf) = %d, want 2", set.VisitsAt(set.Leaves[0].Index))
	}
}
