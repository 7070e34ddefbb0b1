// Package stuboracle is a deterministic, dependency-free stand-in for a
// real chess rules engine, grounded on the teacher's pkg/mcts DummyOps test
// helper: a fixed branching factor, a fixed search depth at which positions
// become terminal, and no actual game logic. It exists only so
// pkg/search's tests and cmd/searchdemo can drive a full search without a
// real move generator.
package stuboracle

import (
	"encoding/binary"

	"github.com/nncore/chesscore/pkg/search"
)

// Oracle implements search.PositionOracle over an abstract game with a
// fixed branching factor. Its position hash is deliberately
// order-independent (a function of the multiset of moves played, not their
// sequence), so different move orders reaching "the same" position
// transpose onto one another — useful for exercising transposition linkage
// without a real zobrist hasher.
type Oracle struct {
	BranchFactor int
	MaxDepth     int
	moves        []search.MoveEncoding
}

// New returns an Oracle positioned at the empty-history root.
func New(branchFactor, maxDepth int) *Oracle {
	return &Oracle{BranchFactor: branchFactor, MaxDepth: maxDepth}
}

// Clone returns an independent Oracle at the same (root) starting state,
// for use as the second selector's oracle instance in dual-selector flow.
func (o *Oracle) Clone() *Oracle {
	return New(o.BranchFactor, o.MaxDepth)
}

func (o *Oracle) Hash() search.PositionHash {
	counts := make(map[search.MoveEncoding]int, len(o.moves))
	for _, m := range o.moves {
		counts[m]++
	}
	h := uint64(14695981039346656037) // FNV-64 offset basis
	// fold in ascending move order: map iteration order is random, and the
	// xor-multiply fold is order-sensitive
	for i := 0; i < o.BranchFactor; i++ {
		m := search.MoveEncoding(i)
		c, ok := counts[m]
		if !ok {
			continue
		}
		h ^= uint64(m)*1000003 + uint64(c)
		h *= 1099511628211
	}
	h ^= uint64(len(o.moves))
	return search.PositionHash(h)
}

func (o *Oracle) Terminal() (search.TerminalKind, bool) {
	if len(o.moves) < o.MaxDepth {
		return search.NonTerminal, false
	}
	switch uint64(o.Hash()) % 3 {
	case 0:
		return search.Stalemate, true
	case 1:
		return search.CheckmateWin, true
	default:
		return search.CheckmateLoss, true
	}
}

func (o *Oracle) Encode() []byte {
	buf := make([]byte, 4+len(o.moves)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(o.moves)))
	for i, m := range o.moves {
		binary.LittleEndian.PutUint32(buf[4+i*4:], uint32(m))
	}
	return buf
}

func (o *Oracle) MakeMove(m search.MoveEncoding) bool {
	if int(m) < 0 || int(m) >= o.BranchFactor {
		return false
	}
	if len(o.moves) >= o.MaxDepth {
		return false
	}
	o.moves = append(o.moves, m)
	return true
}

func (o *Oracle) UnmakeMove() {
	if len(o.moves) == 0 {
		return
	}
	o.moves = o.moves[:len(o.moves)-1]
}

// IsRepetitionOrFiftyMove never forces a draw on its own; Terminal already
// resolves every path by MaxDepth.
func (o *Oracle) IsRepetitionOrFiftyMove() bool { return false }
