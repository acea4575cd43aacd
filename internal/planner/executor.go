package planner

import (
	"sort"

	"github.com/warpsync/core/pkg/types"
)

// ExecutorConfig carries the allocation knobs §6 enumerates that bear on
// order execution.
type ExecutorConfig struct {
	// MaxAmountPerNote caps the amount a single Fill may carry; 0 means
	// unlimited. Larger orders are split across multiple same-pool Fills.
	MaxAmountPerNote uint64
}

func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{MaxAmountPerNote: 0}
}

// AnyDestination is the synthetic all-pools-accepted destination set used
// for the fee and change orders the fixed-point planner injects (§4.H);
// the planner does not yet know which pool those synthetic orders will
// ultimately land in, so all three are offered and the executor's own
// preference rules pick one.
func AnyDestination() [3]*types.Destination {
	return [3]*types.Destination{
		{Pool: types.PoolTransparent},
		{Pool: types.PoolSapling},
		{Pool: types.PoolOrchard},
	}
}

// destPreference is the order in which an order's acceptable destination
// pools are tried: shielded pools before transparent, so that a same-pool
// shielded fill is always attempted before a transparent leg is considered
// (§4.G rules 1-2).
var destPreference = [3]types.Pool{types.PoolSapling, types.PoolOrchard, types.PoolTransparent}

// otherShielded returns the "opposite" shielded pool. Nothing in this
// package calls it: fillOrder's cross-pool step simply never builds a
// direct shielded-to-shielded fill (§4.G rule 3: cross-pool shielded
// transfers happen only via a change note).
func otherShielded(p types.Pool) types.Pool {
	if p == types.PoolSapling {
		return types.PoolOrchard
	}
	return types.PoolSapling
}

// Executor fills orders against an available PoolAllocation, producing
// Fills under the privacy-preserving rules of §4.G. It is itself
// stateless between calls to Execute other than the running
// pool_available/pool_used/fills it accumulates, mirroring the source's
// OrderExecutor.
type Executor struct {
	cfg           *ExecutorConfig
	PoolAvailable types.PoolAllocation
	PoolUsed      types.PoolAllocation
	Fills         []types.Fill
}

// NewExecutor seeds an executor with the funds available to spend, per pool.
func NewExecutor(initial types.PoolAllocation, cfg *ExecutorConfig) *Executor {
	if cfg == nil {
		cfg = DefaultExecutorConfig()
	}
	return &Executor{cfg: cfg, PoolAvailable: initial}
}

// Execute allocates orders against the executor's remaining available
// funds, appending Fills and advancing each order's Filled total. It
// returns whether every order was fully filled. Execute is idempotent: a
// second call against already-fully-filled orders allocates nothing and
// returns true (§4.G).
func (e *Executor) Execute(orders []*types.Order) bool {
	sorted := make([]*types.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, o := range sorted {
		e.fillOrder(o)
	}

	fullyFilled := true
	for _, o := range orders {
		if o.Filled != o.Amount {
			fullyFilled = false
			break
		}
	}
	return fullyFilled
}

func (e *Executor) fillOrder(o *types.Order) {
	// Rule 1+2: same-pool direct fill, tried shielded pools before
	// transparent, for every destination the order accepts.
	for _, destPool := range destPreference {
		if o.Remaining() == 0 {
			return
		}
		if !o.AcceptsPool(destPool) {
			continue
		}
		e.fillFromPool(o, destPool, destPool)
	}

	// Rule 3: cross-pool fallback. Transparent -> shielded is
	// unrestricted; shielded -> transparent is a disclosure. Direct
	// shielded <-> shielded transfers are never attempted here — they
	// must go through a change note, handled by the planner, not the
	// executor.
	for _, destPool := range destPreference {
		if o.Remaining() == 0 {
			return
		}
		if !o.AcceptsPool(destPool) {
			continue
		}
		switch destPool {
		case types.PoolTransparent:
			e.fillFromPool(o, types.PoolSapling, destPool)
			e.fillFromPool(o, types.PoolOrchard, destPool)
		case types.PoolSapling, types.PoolOrchard:
			e.fillFromPool(o, types.PoolTransparent, destPool)
		}
	}
}

// fillFromPool draws from src to pay o's destPool leg, splitting into
// multiple Fills if MaxAmountPerNote bounds a single one, and updating the
// executor's running allocation totals.
func (e *Executor) fillFromPool(o *types.Order, src, destPool types.Pool) {
	for o.Remaining() > 0 && e.PoolAvailable[src] > 0 {
		amount := min64(o.Remaining(), e.PoolAvailable[src])
		if e.cfg.MaxAmountPerNote > 0 {
			amount = min64(amount, e.cfg.MaxAmountPerNote)
		}
		if amount == 0 {
			return
		}

		e.Fills = append(e.Fills, types.Fill{
			OrderID:    o.ID,
			SourcePool: src,
			DestPool:   destPool,
			Amount:     amount,
			Memo:       o.Memo,
			Disclosed:  src != types.PoolTransparent && destPool == types.PoolTransparent,
			NoFee:      o.NoFee,
		})
		o.Filled += amount
		e.PoolAvailable[src] -= amount
		e.PoolUsed[src] += amount
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// SelectNotes greedily consumes utxos in the given (ascending id, pool)
// order until each pool's consumed total reaches used for that pool,
// matching the source's select_notes (§4.I ordering contract feeds this).
func SelectNotes(used types.PoolAllocation, utxos []types.UTXO) []types.UTXO {
	remaining := used
	var selected []types.UTXO
	for _, u := range utxos {
		pool := u.Source.Pool()
		if remaining[pool] > 0 {
			amount := min64(remaining[pool], u.Amount)
			selected = append(selected, u)
			remaining[pool] -= amount
		}
	}
	return selected
}
