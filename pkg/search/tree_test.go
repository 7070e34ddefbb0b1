package search

import "testing"

func TestTreeMakeMoveRebasesRoot(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	if err := tree.Arena.InstallPolicy(root, []PriorMove{{Move: 5, Prior: 1.0}}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	root.FinishExpanding()

	childIdx, err := tree.Arena.AllocateChild(tree.Root(), root.FirstPolicyIndex, 3, 1)
	if err != nil {
		t.Fatalf("AllocateChild: %v", err)
	}

	if !tree.MakeMove(5) {
		t.Fatal("MakeMove(5) should succeed for an expanded matching edge")
	}
	if tree.Root() != childIdx {
		t.Fatalf("Root() after MakeMove = %v, want %v", tree.Root(), childIdx)
	}
	if tree.RootNode().ParentIndex != NoNode {
		t.Fatal("new root's ParentIndex should be cleared")
	}
}

func TestTreeMakeMoveUnknownMoveFails(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	if err := tree.Arena.InstallPolicy(root, []PriorMove{{Move: 1, Prior: 1.0}}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	root.FinishExpanding()

	if tree.MakeMove(99) {
		t.Fatal("MakeMove for a move with no matching expanded edge should fail")
	}
}

func TestTreePVFollowsMostVisitedChild(t *testing.T) {
	tree := newTestTree()
	root := tree.RootNode()
	if err := tree.Arena.InstallPolicy(root, []PriorMove{
		{Move: 1, Prior: 0.5}, {Move: 2, Prior: 0.5},
	}); err != nil {
		t.Fatalf("InstallPolicy: %v", err)
	}
	root.FinishExpanding()

	edges := tree.Arena.Edges(root)
	c1, err := tree.Arena.AllocateChild(tree.Root(), root.FirstPolicyIndex+0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := tree.Arena.AllocateChild(tree.Root(), root.FirstPolicyIndex+1, 20, 1)
	if err != nil {
		t.Fatal(err)
	}
	tree.Arena.Get(c1).ApplyVisit(Selector0, 3, 0.5, 0, 0)
	tree.Arena.Get(c2).ApplyVisit(Selector0, 7, 0.5, 0, 0)

	best, ok := tree.BestMove()
	if !ok {
		t.Fatal("BestMove() should succeed once children have visits")
	}
	if best != edges[1].Move {
		t.Fatalf("BestMove() = %v, want %v (the more-visited child)", best, edges[1].Move)
	}
}
