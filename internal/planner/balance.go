package planner

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/pkg/types"
)

// verifyPlanBalance cryptographically double-checks the plan-balance
// invariant (§3, §8 property 6) that Plan's uint64 arithmetic already
// enforced: commit to every spend and output with a random blinder,
// balance the last output's blinder against the rest, and check the
// commitments sum to zero net of fee*G, the same role a binding signature
// plays over a transaction's real value pools.
func verifyPlanBalance(plan *types.TransactionPlan, fee uint64) error {
	if len(plan.Outputs) == 0 {
		return nil
	}

	spendComms := make([]hasher.ValueCommitment, len(plan.Spends))
	blinderSum := new(big.Int)
	for i, s := range plan.Spends {
		c, b, err := hasher.NewRandomValueCommitment(s.Amount)
		if err != nil {
			return fmt.Errorf("planner: verify plan balance: %w", err)
		}
		spendComms[i] = c
		blinderSum.Add(blinderSum, b)
	}

	outputComms := make([]hasher.ValueCommitment, len(plan.Outputs))
	for i := 0; i < len(plan.Outputs)-1; i++ {
		c, b, err := hasher.NewRandomValueCommitment(plan.Outputs[i].Amount)
		if err != nil {
			return fmt.Errorf("planner: verify plan balance: %w", err)
		}
		outputComms[i] = c
		blinderSum.Sub(blinderSum, b)
	}

	lastBlinder := new(big.Int).Mod(blinderSum, fr.Modulus())
	last := plan.Outputs[len(plan.Outputs)-1]
	lastComm, err := hasher.NewValueCommitment(last.Amount, lastBlinder)
	if err != nil {
		return fmt.Errorf("planner: verify plan balance: %w", err)
	}
	outputComms[len(outputComms)-1] = lastComm

	if !hasher.VerifyPlanBalance(spendComms, outputComms, fee) {
		return fmt.Errorf("planner: plan balance commitment check failed")
	}
	return nil
}
