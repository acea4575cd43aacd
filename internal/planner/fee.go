// Package planner implements the privacy-aware order executor and the
// fee-fixed-point transaction planner (§4.G, §4.H).
package planner

import "github.com/warpsync/core/pkg/types"

// FeeCalculator computes the marginal fee for a candidate set of spends and
// outputs. Implementations must be monotone non-decreasing in
// len(spends)+len(outputs) so the fixed-point loop in Plan is guaranteed to
// terminate (§4.H, §8 property 5).
type FeeCalculator interface {
	CalculateFee(spends []types.UTXO, outputs []types.Fill) uint64
}

// MarginalFeeConfig parameterizes MarginalFeeCalculator's per-pool pricing.
type MarginalFeeConfig struct {
	// MarginalFee is charged per spend plus per output, in zatoshi.
	MarginalFee uint64

	// GraceActions is the number of (spends+outputs) at or below which no
	// fee is charged at all, matching the zero-fee allowance small
	// transactions get in practice.
	GraceActions int

	// ShieldedSurcharge is added once per shielded output, reflecting the
	// extra proving/verification cost relative to a transparent one.
	ShieldedSurcharge uint64
}

// DefaultMarginalFeeConfig returns the canonical per-input/per-output fee
// schedule described in §4.H: a flat marginal cost per action. The per-pool
// differential for shielded outputs (ShieldedSurcharge) defaults to zero.
func DefaultMarginalFeeConfig() *MarginalFeeConfig {
	return &MarginalFeeConfig{
		MarginalFee:       5_000,
		GraceActions:      2,
		ShieldedSurcharge: 0,
	}
}

// MarginalFeeCalculator is the canonical FeeCalculator: it charges
// MarginalFee per input and per output (the synthetic fee order's fill
// included), with an added ShieldedSurcharge per shielded output, and
// charges zero when the total action count is at most GraceActions. It is monotone non-decreasing in
// len(spends)+len(outputs), since adding a spend or output can only ever
// add to the action count this function prices on.
type MarginalFeeCalculator struct {
	cfg *MarginalFeeConfig
}

func NewMarginalFeeCalculator(cfg *MarginalFeeConfig) *MarginalFeeCalculator {
	if cfg == nil {
		cfg = DefaultMarginalFeeConfig()
	}
	return &MarginalFeeCalculator{cfg: cfg}
}

func (f *MarginalFeeCalculator) CalculateFee(spends []types.UTXO, outputs []types.Fill) uint64 {
	actions := len(spends) + len(outputs)
	if actions <= f.cfg.GraceActions {
		return 0
	}

	fee := uint64(actions) * f.cfg.MarginalFee
	for _, o := range outputs {
		if o.DestPool != types.PoolTransparent {
			fee += f.cfg.ShieldedSurcharge
		}
	}
	return fee
}
