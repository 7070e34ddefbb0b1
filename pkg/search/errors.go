package search

import "errors"

// Error taxonomy, per spec.md §7. Go error values replace the exception-based
// control flow the source material used for "internal error" cases (spec.md
// §9's redesign flag) — invariant violations are logged and recovered from,
// never panicked.
var (
	// ErrArenaExhausted is returned when the node arena has no room left
	// for new records. The search terminates gracefully and returns
	// best-so-far results.
	ErrArenaExhausted = errors.New("search: node arena exhausted")

	// ErrEvaluatorFailure wraps a failure returned by the external NN
	// evaluator. The search terminates.
	ErrEvaluatorFailure = errors.New("search: nn evaluator failure")

	// ErrIllegalMove names a move rejected by a PositionOracle, which
	// indicates a bug in the oracle or a corrupted policy table. No code in
	// this package returns it: Selector.Descend logs a rejected move and
	// ends that descent at the node it had reached.
	ErrIllegalMove = errors.New("search: illegal move")

	// ErrInvalidPosition is returned by an oracle that cannot represent
	// the position it was asked to encode or hash.
	ErrInvalidPosition = errors.New("search: invalid position")

	// ErrCancelled is a cooperative stop signal. In-flight work is applied
	// and the search returns normally; callers should not treat this as a
	// failure.
	ErrCancelled = errors.New("search: cancelled")

	// ErrInternalInvariantViolation names an unreachable branch (lost
	// transposition root, pending-extraction counter underflow, etc). No
	// code in this package returns or logs it; the backup path handles an
	// exhausted transposition budget by forcing the policy copy.
	ErrInternalInvariantViolation = errors.New("search: internal invariant violation")
)
