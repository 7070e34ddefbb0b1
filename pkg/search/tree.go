package search

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Tree owns the Node Store, the root index, the TranspositionIndex, an
// optional position-evaluation cache, and the auxiliary counters — the
// aggregate root of the whole search core, per spec.md §3 "Tree".
type Tree struct {
	Config *Config
	Arena  *Arena
	TT     *TranspositionIndex
	Cache  *PositionCache
	Stats  TreeStats

	rootMu sync.RWMutex
	root   NodeIndex

	nn       NNEvaluator
	startedAt time.Time
}

// NewTree constructs a Tree with a freshly reserved arena and an
// unexpanded root positioned at the given oracle's current (starting)
// position.
func NewTree(cfg *Config, nn NNEvaluator, startingHash PositionHash) *Tree {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := NewArena(cfg.ArenaCapacity, 0, cfg.UseLargePages)
	t := &Tree{
		Config: cfg,
		Arena:  a,
		TT:     NewTranspositionIndex(),
		Cache:  NewPositionCache(cfg.CacheCapacity),
		nn:     nn,
	}
	rootIdx, err := a.allocateNodes(1)
	if err != nil {
		// A fresh arena can only fail to hand out node 1 if configured
		// with zero capacity; treat that as a configuration error made
		// visible immediately rather than silently starting unusable.
		log.Error().Err(err).Msg("failed to allocate root node")
		rootIdx = NoNode
	}
	if rootIdx != NoNode {
		a.Get(rootIdx).reset(NoNode, startingHash, 0)
	}
	t.root = rootIdx
	return t
}

// Root returns the current root's arena index.
func (t *Tree) Root() NodeIndex {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.root
}

// RootNode returns the current root's record.
func (t *Tree) RootNode() *NodeRecord {
	return t.Arena.Get(t.Root())
}

// MakeMove rebases the tree onto the child reached by move, discarding the
// rest of the tree's addressable-from-root reachability (the old sibling
// subtrees remain physically present in the arena — it never shrinks — but
// are no longer reachable from the new root). Mirrors the teacher's
// MCTS.MakeMove intent (promote a child to root) adapted to arena indices:
// there's no pointer surgery to do, only repointing which index is root.
func (t *Tree) MakeMove(move MoveEncoding) bool {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()

	root := t.Arena.Get(t.root)
	edges := t.Arena.Edges(root)
	for i := range edges {
		edge := &edges[i]
		if edge.Move == move && edge.Child() != NoNode {
			t.root = edge.Child()
			t.Arena.Get(t.root).ParentIndex = NoNode
			return true
		}
	}
	return false
}

// PV walks the principal variation from root, following each node's most-
// visited expanded child, per spec.md's "per-move visit counts, principal
// variation" observable.
func (t *Tree) PV(maxLen int) []MoveEncoding {
	pv := make([]MoveEncoding, 0, maxLen)
	idx := t.Root()
	for len(pv) < maxLen {
		node := t.Arena.Get(idx)
		edges := t.Arena.Edges(node)
		var bestEdge *PolicyEdge
		var bestN int32 = -1
		for i := range edges {
			e := &edges[i]
			child := e.Child()
			if child == NoNode {
				continue
			}
			if n := t.Arena.Get(child).N(); n > bestN {
				bestN = n
				bestEdge = e
			}
		}
		if bestEdge == nil {
			break
		}
		pv = append(pv, bestEdge.Move)
		idx = bestEdge.Child()
	}
	return pv
}

// BestMove returns the root's most-visited child move, the "go-to method
// for MCTS" per the teacher's BestChild(BestChildMostVisits) comment.
func (t *Tree) BestMove() (MoveEncoding, bool) {
	pv := t.PV(1)
	if len(pv) == 0 {
		return 0, false
	}
	return pv[0], true
}

// Snapshot returns a point-in-time view of the search's progress.
func (t *Tree) Snapshot() Snapshot {
	elapsed := int64(0)
	if !t.startedAt.IsZero() {
		elapsed = time.Since(t.startedAt).Milliseconds()
	}
	return Snapshot{
		RootN:            t.RootNode().N(),
		MaxDepth:         t.Stats.MaxDepth(),
		BatchesCompleted: t.Stats.BatchesCompleted(),
		NNEvaluations:    t.Stats.NNEvaluations(),
		LastBatchYield:   t.Stats.LastBatchYield(),
		ElapsedMs:        elapsed,
		PV:               t.PV(64),
		ArenaExhausted:   t.Stats.ArenaExhausted(),
	}
}
