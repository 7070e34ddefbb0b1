package search

// TranspositionMode selects how the Transposition leaf evaluator links a
// newly-selected leaf to an existing equivalent-position subtree, per
// spec.md §4.C.
type TranspositionMode int

const (
	// SingleNodeCopy copies the transposition root's policy children into
	// the leaf immediately and marks it evaluated with the root's value.
	SingleNodeCopy TranspositionMode = iota
	// SingleNodeDeferredCopy links the leaf to the root and draws up to a
	// configured number of value samples from the root's subtree before
	// forcing a permanent copy.
	SingleNodeDeferredCopy
	// SharedSubtree is handled exactly like SingleNodeDeferredCopy: the
	// leaf samples from the root subtree while its budget lasts, and is
	// then given a permanent policy copy and de-linked. A subtree is never
	// shared without a copy.
	SharedSubtree
)

// MaxPendingTranspositionExtractions is the hard ceiling on
// num_visits_pending_transposition_root_extraction regardless of
// configuration, per spec.md §3 invariant 4.
const MaxPendingTranspositionExtractions = 3

// Config enumerates every tunable named in spec.md §6. It is passed
// explicitly into Tree/Flow construction — no package-level mutable
// config, per spec.md §9's redesign flag against module-level state.
type Config struct {
	FlowDirectOverlapped bool
	FlowDualSelectors    bool
	FlowSplitSelects     bool

	PaddedBatchSizing        bool
	PaddedExtraNodesBase     int
	PaddedExtraNodesMultiplier float64

	MaxBatchSize       int
	BatchSizeMultiplier float64
	SmartSizeBatches    bool

	MaxTranspositionRootApplicationsFixed    int
	MaxTranspositionRootApplicationsFraction float64
	TranspositionMode                        TranspositionMode
	TranspositionUseTransposedQ              bool
	TranspositionRootQFraction                float64
	InFlightThisBatchLinkageEnabled          bool
	InFlightOtherBatchLinkageEnabled         bool

	UseLargePages bool

	// ArenaCapacity is the fixed number of NodeRecord slots reserved up
	// front (spec.md §4.A).
	ArenaCapacity uint32

	// PuctExplorationParam is "c_puct" in the PUCT formula (spec.md §4.D).
	PuctExplorationParam float64

	// DeviceBreakpoints are the NN evaluator's device-optimal batch sizes,
	// ascending order, used for breakpoint snapping (spec.md §4.F).
	DeviceBreakpoints []int

	// CacheCapacity is the optional position-evaluation cache's capacity;
	// zero disables the Cache leaf evaluator.
	CacheCapacity int
}

// DefaultConfig mirrors the teacher's DefaultLimits() constructor style:
// conservative, single-selector, non-overlapped defaults safe for tests and
// small searches.
func DefaultConfig() *Config {
	return &Config{
		FlowDirectOverlapped: false,
		FlowDualSelectors:    false,
		FlowSplitSelects:     true,

		PaddedBatchSizing:          false,
		PaddedExtraNodesBase:       0,
		PaddedExtraNodesMultiplier: 0,

		MaxBatchSize:        256,
		BatchSizeMultiplier: 1.0,
		SmartSizeBatches:    true,

		MaxTranspositionRootApplicationsFixed:    MaxPendingTranspositionExtractions,
		MaxTranspositionRootApplicationsFraction: 0.1,
		TranspositionMode:                        SingleNodeDeferredCopy,
		TranspositionUseTransposedQ:               true,
		TranspositionRootQFraction:                 1.0,
		InFlightThisBatchLinkageEnabled:           true,
		InFlightOtherBatchLinkageEnabled:          false,

		UseLargePages: false,

		ArenaCapacity:         1 << 20,
		PuctExplorationParam:  1.5,
		DeviceBreakpoints:     []int{32, 64, 128, 192, 256, 384, 512},
		CacheCapacity:         0,
	}
}

func (c *Config) SetOverlap(enabled bool) *Config {
	c.FlowDirectOverlapped = enabled
	return c
}

func (c *Config) SetDualSelectors(enabled bool) *Config {
	c.FlowDualSelectors = enabled
	return c
}

func (c *Config) SetMaxBatchSize(n int) *Config {
	if n > 0 {
		c.MaxBatchSize = n
	}
	return c
}

func (c *Config) SetArenaCapacity(n uint32) *Config {
	if n > 0 {
		c.ArenaCapacity = n
	}
	return c
}

func (c *Config) SetTranspositionMode(mode TranspositionMode) *Config {
	c.TranspositionMode = mode
	return c
}

func (c *Config) SetPuctExplorationParam(v float64) *Config {
	c.PuctExplorationParam = max(0, v)
	return c
}

// maxTranspositionRootApplications resolves the fixed/fraction knobs and the
// hard cap into a single usable bound for a given root visit count.
func (c *Config) maxTranspositionRootApplications(rootN int32) int {
	fixed := c.MaxTranspositionRootApplicationsFixed
	frac := int(float64(rootN) * c.MaxTranspositionRootApplicationsFraction)
	bound := fixed
	if frac > 0 && frac < bound {
		bound = frac
	}
	if bound > MaxPendingTranspositionExtractions {
		bound = MaxPendingTranspositionExtractions
	}
	if bound < 0 {
		bound = 0
	}
	return bound
}
