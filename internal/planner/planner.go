package planner

import (
	"errors"
	"fmt"

	"github.com/warpsync/core/pkg/types"
)

// MaxAttempts bounds the fee fixed-point iteration (§4.H, §6 config knobs).
const MaxAttempts = 10

// ErrNotEnoughFunds is returned when an allocation step cannot fully fill
// its orders from the available pools.
var ErrNotEnoughFunds = errors.New("planner: insufficient funds")

// ErrTxTooComplex is returned when the fee fixed-point fails to converge
// within MaxAttempts iterations.
var ErrTxTooComplex = errors.New("planner: fee did not converge within MAX_ATTEMPTS")

// Config bundles the knobs the fixed-point loop needs beyond the executor's
// own ExecutorConfig: a fee calculator and the wallet's own change address.
type Config struct {
	Executor      *ExecutorConfig
	Fee           FeeCalculator
	ChangeAddress types.Destination
}

func DefaultConfig(changeAddress types.Destination) *Config {
	return &Config{
		Executor:      DefaultExecutorConfig(),
		Fee:           NewMarginalFeeCalculator(nil),
		ChangeAddress: changeAddress,
	}
}

// Plan runs the fee fixed-point loop of §4.H: allocate orders, optionally
// allocate a synthetic fee order and a change order, recompute the fee
// against the resulting note selection, and repeat until the fee no
// longer increases. orders is mutated in place (Filled is reset each
// iteration, matching the source).
func Plan(utxos []types.UTXO, orders []*types.Order, cfg *Config) (*types.TransactionPlan, error) {
	initialPool := types.PoolAllocationFromUTXOs(utxos)

	var fee uint64
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		for _, o := range orders {
			o.Filled = 0
		}

		exec := NewExecutor(initialPool, cfg.Executor)
		if !exec.Execute(orders) {
			return nil, fmt.Errorf("%w: orders", ErrNotEnoughFunds)
		}

		if fee > 0 {
			anyDest := AnyDestination()
			feeOrder := &types.Order{
				ID:           ^uint32(0),
				Destinations: anyDest,
				Amount:       fee,
				NoFee:        true,
			}
			if !exec.Execute([]*types.Order{feeOrder}) {
				return nil, fmt.Errorf("%w: fee", ErrNotEnoughFunds)
			}
		}

		needed := exec.PoolUsed.Total()

		notes := SelectNotes(exec.PoolUsed, utxos)
		spent := types.PoolAllocationFromUTXOs(notes).Total()
		change := spent - needed

		if change > 0 {
			changeOrder := &types.Order{
				ID:           ^uint32(0),
				Destinations: singleDestination(cfg.ChangeAddress),
				Amount:       change,
			}
			if !exec.Execute([]*types.Order{changeOrder}) {
				return nil, fmt.Errorf("%w: change", ErrNotEnoughFunds)
			}
		}

		notes = SelectNotes(exec.PoolUsed, utxos)
		newFee := cfg.Fee.CalculateFee(notes, exec.Fills)
		if newFee <= fee {
			plan := &types.TransactionPlan{Spends: notes, Outputs: realOutputs(exec.Fills)}
			if err := verifyPlanBalance(plan, plan.Fee()); err != nil {
				return nil, err
			}
			return plan, nil
		}
		fee = newFee
	}

	return nil, ErrTxTooComplex
}

func singleDestination(d types.Destination) [3]*types.Destination {
	var dests [3]*types.Destination
	dests[d.Pool] = &d
	return dests
}

// realOutputs drops the synthetic fee order's fill: it consumed pool
// allocation like any other fill, but it is not a note the transaction
// actually produces, and its amount is exactly what the plan-balance
// invariant (§3, §8 property 6) expects to show up as fee rather than
// output.
func realOutputs(fills []types.Fill) []types.Fill {
	out := make([]types.Fill, 0, len(fills))
	for _, f := range fills {
		if !f.NoFee {
			out = append(out, f)
		}
	}
	return out
}
