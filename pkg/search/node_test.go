package search

import "testing"

func TestNodeRecordApplyVisitAccumulates(t *testing.T) {
	var n NodeRecord
	n.reset(NoNode, 7, 0)

	n.ApplyVisit(Selector0, 1, 1.0, 0.0, 5.0)
	n.ApplyVisit(Selector0, 1, 0.0, 0.0, 3.0)

	if got := n.N(); got != 2 {
		t.Fatalf("N() = %d, want 2", got)
	}
	if got := n.Q(); got != 0.5 {
		t.Fatalf("Q() = %v, want 0.5 (average of 1.0 and 0.0)", got)
	}
	if got := n.AvgM(); got != 4.0 {
		t.Fatalf("AvgM() = %v, want 4.0", got)
	}
}

func TestNodeRecordQUnvisitedIsNeutral(t *testing.T) {
	var n NodeRecord
	n.reset(NoNode, 1, 0)
	if got := n.Q(); got != 0.5 {
		t.Fatalf("Q() on unvisited node = %v, want 0.5", got)
	}
}

func TestNodeRecordInFlightRoundTrips(t *testing.T) {
	var n NodeRecord
	n.reset(NoNode, 1, 0)

	n.AddInFlight(Selector0, 3)
	n.AddInFlight(Selector1, 2)
	if got := n.TotalN(); got != 5 {
		t.Fatalf("TotalN() = %d, want 5", got)
	}

	n.ApplyVisit(Selector0, 3, 1, 0, 0)
	if got := n.NInFlight(Selector0); got != 0 {
		t.Fatalf("NInFlight(Selector0) after applying all in-flight = %d, want 0", got)
	}
	if got := n.TotalN(); got != 2+3 {
		t.Fatalf("TotalN() after apply = %d, want %d", got, 5)
	}
}

func TestNodeRecordExpandStateCAS(t *testing.T) {
	var n NodeRecord
	n.reset(NoNode, 1, 0)

	if !n.CanExpand() {
		t.Fatal("first CanExpand() should succeed")
	}
	if n.CanExpand() {
		t.Fatal("second concurrent CanExpand() should fail once claimed")
	}
	if !n.Expanding() {
		t.Fatal("node should report Expanding() after a successful claim")
	}
	n.FinishExpanding()
	if !n.Expanded() {
		t.Fatal("node should report Expanded() after FinishExpanding")
	}
}

func TestNodeRecordTranspositionBudgetConsumption(t *testing.T) {
	var n NodeRecord
	n.reset(NoNode, 1, 0)
	n.linkTransposition(NodeIndex(5), 3)

	for want := int32(2); want >= 0; want-- {
		remaining, ok := n.consumeTranspositionExtraction()
		if !ok {
			t.Fatalf("consume should succeed while budget remains (want remaining %d)", want)
		}
		if remaining != want {
			t.Fatalf("remaining = %d, want %d", remaining, want)
		}
	}
	if _, ok := n.consumeTranspositionExtraction(); ok {
		t.Fatal("consume should fail once budget is exhausted")
	}

	n.delinkTransposition()
	if n.TranspositionRootIndex != NoNode || n.PendingTranspositionExtractions() != 0 {
		t.Fatal("delinkTransposition should clear linkage fields")
	}
}

func TestPolicyEdgeChildDefaultsToNoNode(t *testing.T) {
	var e PolicyEdge
	if e.Child() != NoNode {
		t.Fatalf("zero-value PolicyEdge.Child() = %v, want NoNode", e.Child())
	}
}
