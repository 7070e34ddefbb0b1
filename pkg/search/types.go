// Package search implements the concurrent, neural-network-guided Monte
// Carlo Tree Search core: a fixed-layout node arena, a transposition index,
// a pre-NN leaf evaluator pipeline, a PUCT leaf selector, batch sizing, and
// the double-buffered search flow that overlaps selection with NN
// evaluation.
package search

// MoveEncoding is an opaque, game-specific move representation. The chess
// rules and move generator that produce these are outside this package's
// scope (see PositionOracle).
type MoveEncoding uint32

// NodeIndex addresses a NodeRecord inside the arena. Zero is reserved to
// mean "no node" (nil), matching invariant 2 in spec.md.
type NodeIndex uint32

// PositionHash is a Zobrist-style position hash used for transposition
// lookups.
type PositionHash uint64

const NoNode NodeIndex = 0

// TerminalKind enumerates why a position is terminal, or NonTerminal.
type TerminalKind uint8

const (
	NonTerminal TerminalKind = iota
	CheckmateWin
	CheckmateLoss
	Stalemate
	TablebaseDraw
	TablebaseWin
	TablebaseLoss
)

func (t TerminalKind) IsTerminal() bool {
	return t != NonTerminal
}

// Value returns the deterministic result-from-mover's-perspective value for
// a terminal kind, in [0, 1] (1 = win, 0 = loss, 0.5 = draw). Non-terminal
// kinds return 0.5 as a neutral placeholder; callers must check IsTerminal
// first.
func (t TerminalKind) Value() float32 {
	switch t {
	case CheckmateWin, TablebaseWin:
		return 1
	case CheckmateLoss, TablebaseLoss:
		return 0
	default:
		return 0.5
	}
}

// SelectorID identifies which of the two selector slots (and therefore
// which n_in_flight_* counter) a descent belongs to. Represented as a plain
// index per spec.md §9's redesign flag against per-node polymorphism.
type SelectorID int

const (
	Selector0 SelectorID = 0
	Selector1 SelectorID = 1
	numSelectors int      = 2
)

// EvalResult is what the NN evaluator (or a leaf evaluator short-circuit)
// produces for a single position.
type EvalResult struct {
	Value    float32 // side-to-move value in [0, 1]
	WinP     float32
	LossP    float32
	MovesLeft float32
	Policy   []PriorMove // legal moves with prior probabilities, any order
}

// PriorMove pairs a move with its policy prior, as emitted by the NN
// evaluator's policy head or by a leaf evaluator that short-circuits NN
// evaluation (e.g. transposition SingleNodeCopy).
type PriorMove struct {
	Move  MoveEncoding
	Prior float32
}

// PositionOracle is the external chess-rules collaborator. It is
// deliberately treated only as an interface here: move generation, Zobrist
// hashing, and position encoding are out of this package's scope (spec.md
// §1). Implementations must be safe to call from a single goroutine at a
// time per instance (the selector serializes traversal of one oracle
// instance during a descent).
type PositionOracle interface {
	// Hash returns the Zobrist-style hash of the current position.
	Hash() PositionHash
	// Terminal reports whether the current position is terminal and, if
	// so, which kind.
	Terminal() (TerminalKind, bool)
	// Encode returns an opaque position encoding suitable for feeding to
	// the NN evaluator.
	Encode() []byte
	// MakeMove applies a move, mutating the oracle's internal state, and
	// returns whether the move was legal (Selector.Descend logs a rejected
	// move and ends the descent at the node it had reached).
	MakeMove(MoveEncoding) bool
	// UnmakeMove undoes the most recent MakeMove.
	UnmakeMove()
	// IsRepetitionOrFiftyMove reports whether the current position is a
	// three-fold repetition or has hit the 50-move rule, both of which the
	// selector treats as a forced draw leaf.
	IsRepetitionOrFiftyMove() bool
}
