// Package stubnn is a dependency-free stand-in for a real neural-network
// evaluator, implementing search.NNEvaluator with a uniform policy and a
// near-neutral value so pkg/search's tests and cmd/searchdemo can run a full
// batched search without any actual model weights.
package stubnn

import (
	"context"
	"encoding/binary"

	"github.com/nncore/chesscore/pkg/search"
)

// Evaluator returns a uniform policy over BranchFactor moves and a value in
// [0.375, 0.625] derived from the first four bytes of each position's
// encoding.
type Evaluator struct {
	BranchFactor int
	MaxBatch     int
	Breaks       []int
}

// New returns an Evaluator with the given branch factor, a generous max
// batch size, and breakpoints matching the package defaults.
func New(branchFactor int) *Evaluator {
	return &Evaluator{
		BranchFactor: branchFactor,
		MaxBatch:     512,
		Breaks:       []int{32, 64, 128, 192, 256, 384, 512},
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, positions [][]byte) ([]search.EvalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]search.EvalResult, len(positions))
	prior := float32(1) / float32(e.BranchFactor)
	policy := make([]search.PriorMove, e.BranchFactor)
	for i := range policy {
		policy[i] = search.PriorMove{Move: search.MoveEncoding(i), Prior: prior}
	}
	for i, pos := range positions {
		// Derive a mildly position-dependent value so different leaves
		// don't all collapse to the exact same Q, without pretending to
		// model anything real.
		var seed uint32
		if len(pos) >= 4 {
			seed = binary.LittleEndian.Uint32(pos)
		}
		value := 0.5 + float32(int(seed%101)-50)/400.0
		results[i] = search.EvalResult{
			Value: value, WinP: value, LossP: 1 - value, MovesLeft: 30,
			Policy: append([]search.PriorMove(nil), policy...),
		}
	}
	return results, nil
}

func (e *Evaluator) MaxBatchSize() int   { return e.MaxBatch }
func (e *Evaluator) Breakpoints() []int { return e.Breaks }
