// Command searchdemo drives pkg/search end to end against the
// dependency-free stuboracle/stubnn stand-ins, printing live progress the
// way the teacher's real-time-stats example prints listener callbacks —
// generalized here to poll Tree.Snapshot() periodically instead, since
// pkg/search has no callback-listener type of its own (spec.md's
// observability surface is pull-based).
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/nncore/chesscore/internal/stuboracle"
	"github.com/nncore/chesscore/internal/stubnn"
	"github.com/nncore/chesscore/pkg/search"
)

func main() {
	var (
		branchFactor  = flag.Int("branch", 12, "abstract game branching factor")
		maxDepth      = flag.Int("depth", 20, "abstract game depth at which positions terminate")
		hardNodeLimit = flag.Int("nodes", 20000, "root visit count at which the search stops")
		dualSelector  = flag.Bool("dual", true, "run both selectors concurrently (overlapped flow)")
		quiet         = flag.Bool("quiet", false, "suppress library logging below warn level")
	)
	flag.Parse()

	if *quiet {
		search.SetLogLevel(zerolog.WarnLevel)
	}

	profile := termenv.ColorProfile()
	title := termenv.String("chesscore search demo").Bold().Foreground(profile.Color("#5FAFFF"))
	fmt.Println(title)

	cfg := search.DefaultConfig().
		SetDualSelectors(*dualSelector).
		SetOverlap(*dualSelector)
	cfg.CacheCapacity = 1 << 16

	root := stuboracle.New(*branchFactor, *maxDepth)
	nn := stubnn.New(*branchFactor)

	tree := search.NewTree(cfg, nn, root.Hash())
	flow := search.NewFlow(tree, func() search.PositionOracle { return root.Clone() }, 42)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan search.Snapshot, 1)
	go func() { done <- flow.ProcessDirectOverlapped(ctx, int32(*hardNodeLimit), 0, 0) }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ok := termenv.String("ok").Foreground(profile.Color("#5FFF87"))
	for {
		select {
		case snap := <-done:
			printSnapshot(profile, snap, time.Since(start))
			fmt.Println(ok, "search complete")
			return
		case <-ticker.C:
			printSnapshot(profile, tree.Snapshot(), time.Since(start))
		}
	}
}

func printSnapshot(profile termenv.Profile, snap search.Snapshot, elapsed time.Duration) {
	label := termenv.String(fmt.Sprintf("[%6.1fs]", elapsed.Seconds())).Faint()
	fmt.Printf("%s root_n=%d depth=%d batches=%d nn_evals=%d yield=%.2f pv_len=%d\n",
		label, snap.RootN, snap.MaxDepth, snap.BatchesCompleted, snap.NNEvaluations, snap.LastBatchYield, len(snap.PV))
}
