package search

import "context"

// NNEvaluator is the external neural-network collaborator (spec.md §6).
// Weight loading, device placement, and tensor plumbing are all out of
// scope here — only the batched evaluate contract matters to this package.
type NNEvaluator interface {
	// Evaluate runs a batch of opaque position encodings through the
	// network and returns one EvalResult per input, in the same order.
	// Flow does not consult MaxBatchSize(): a submitted batch holds the
	// round's NN-bound leaves plus its cache-only surplus, whatever the
	// evaluator's limit.
	Evaluate(ctx context.Context, positions [][]byte) ([]EvalResult, error)

	// MaxBatchSize returns the largest batch this evaluator accepts.
	MaxBatchSize() int

	// Breakpoints returns the ascending list of device-optimal batch
	// sizes. The Batch Sizer snaps to Config.DeviceBreakpoints, not to
	// this list.
	Breakpoints() []int
}
