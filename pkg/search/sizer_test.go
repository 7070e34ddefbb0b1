package search

import "testing"

func TestBatchSizerSnapToBreakpoint(t *testing.T) {
	cfg := DefaultConfig()
	sizer := NewBatchSizer(cfg)

	cases := []struct{ in, want int }{
		{0, 0},     // nearest breakpoint (32) is farther than the ±20% tolerance
		{1, 1},     // same
		{32, 32},   // exact breakpoint
		{33, 32},   // within 20% of 32, snaps down
		{256, 256}, // exact breakpoint
		{257, 256}, // within 20% of 256, snaps down (384 is too far)
		{1000, 256}, // beyond the largest breakpoint, unsnapped result capped by MaxBatchSize
	}
	for _, c := range cases {
		if got := sizer.SnapToBreakpoint(c.in); got != c.want {
			t.Errorf("SnapToBreakpoint(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBatchSizerSnapToBreakpointLeavesFarValuesUnsnapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 2000 // raise the cap so it doesn't mask the unsnapped result
	sizer := NewBatchSizer(cfg)

	if got := sizer.SnapToBreakpoint(100); got != 100 {
		t.Fatalf("SnapToBreakpoint(100) = %d, want 100 unsnapped (nearest breakpoint 128 is 28 away, beyond the 20 allowed)", got)
	}
	if got := sizer.SnapToBreakpoint(110); got != 128 {
		t.Fatalf("SnapToBreakpoint(110) = %d, want 128 (18 away, within the 22 allowed)", got)
	}
}

func TestBatchSizerTargetSizeEarlySearchDisablesOverlap(t *testing.T) {
	sizer := NewBatchSizer(DefaultConfig())

	target, allowOverlap := sizer.TargetSize(1_000_000, 0, true, true)
	if allowOverlap {
		t.Fatal("root_n below EarlySearchRootN must never allow overlap, regardless of request")
	}
	if target <= 0 {
		t.Fatalf("target = %d, want a small positive early-search batch", target)
	}
}

func TestBatchSizerTargetSizeAllowsOverlapPastEarlySearch(t *testing.T) {
	sizer := NewBatchSizer(DefaultConfig())

	_, allowOverlap := sizer.TargetSize(1_000_000, EarlySearchRootN, true, true)
	if !allowOverlap {
		t.Fatal("past EarlySearchRootN with overlap and dual selectors requested, overlap should be allowed")
	}

	_, allowOverlap = sizer.TargetSize(1_000_000, EarlySearchRootN, false, true)
	if allowOverlap {
		t.Fatal("overlap must stay off when not requested, even past early search")
	}
}

func TestBatchSizerTargetSizeDualSelectorsHalves(t *testing.T) {
	sizer := NewBatchSizer(DefaultConfig())

	single, _ := sizer.TargetSize(1_000_000, EarlySearchRootN, false, false)
	dual, _ := sizer.TargetSize(1_000_000, EarlySearchRootN, false, true)
	if dual > single {
		t.Fatalf("dual-selector target (%d) should not exceed the single-selector target (%d)", dual, single)
	}

	// With default settings both targets hit the MaxBatchSize cap, hiding
	// the halving; without breakpoints and with a high cap, a remaining
	// budget of 40,000 gives sqrt = 200 single and 100 dual.
	cfg := DefaultConfig()
	cfg.DeviceBreakpoints = nil
	cfg.MaxBatchSize = 4096
	unmasked := NewBatchSizer(cfg)
	single, _ = unmasked.TargetSize(EarlySearchRootN+40_000, EarlySearchRootN, false, false)
	dual, _ = unmasked.TargetSize(EarlySearchRootN+40_000, EarlySearchRootN, false, true)
	if single != 200 || dual != 100 {
		t.Fatalf("single = %d, dual = %d, want 200 and 100 (dual halves the per-selector share)", single, dual)
	}
}

func TestBatchSizerSplitCollectionDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlowSplitSelects = false
	sizer := NewBatchSizer(cfg)

	if sizer.SplitCollection(10, 32, 1.0) {
		t.Fatal("with splitting disabled, should only submit once target is fully reached")
	}
	if !sizer.SplitCollection(32, 32, 1.0) {
		t.Fatal("should submit once collected >= target even with splitting disabled")
	}
}

func TestBatchSizerSplitCollectionGatesOnYield(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlowSplitSelects = true
	sizer := NewBatchSizer(cfg)

	if sizer.SplitCollection(19, 32, 0.9) {
		t.Fatal("below the 60% threshold, should not submit early regardless of yield")
	}
	if sizer.SplitCollection(20, 32, 0.5) {
		t.Fatal("above 60% but below the yield gate, should not submit early")
	}
	if !sizer.SplitCollection(20, 32, 0.667) {
		t.Fatal("at >=60% collected and >=0.667 yield, should submit early")
	}
}

func TestBatchSizerPadWithRootPreload(t *testing.T) {
	sizer := NewBatchSizer(DefaultConfig())
	if got := sizer.PadWithRootPreload(20, 32); got != 12 {
		t.Fatalf("PadWithRootPreload(20, 32) = %d, want 12", got)
	}
	if got := sizer.PadWithRootPreload(32, 32); got != 0 {
		t.Fatalf("PadWithRootPreload(32, 32) = %d, want 0", got)
	}
}
