package hasher

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/warpsync/core/pkg/types"
)

// ErrInvalidBlinder is returned when a nil blinding factor is passed to
// NewValueCommitment.
var ErrInvalidBlinder = errors.New("hasher: invalid commitment blinder")

var (
	commitInit sync.Once
	commitG    bn254.G1Affine
	commitH    bn254.G1Affine
)

func initCommitmentGenerators() {
	commitInit.Do(func() {
		_, _, g1Gen, _ := bn254.Generators()
		commitG = g1Gen
		commitH.ScalarMultiplication(&commitG, scalarFromLabel("WarpSync-Commitment-H", 0))
	})
}

// ValueCommitment is a Pedersen commitment to a plaintext amount: C =
// value*G + blinder*H. It lets the fee fixed-point planner's balance
// invariant (Σspends - Σoutputs == fee, §3, §8 property 6) be checked
// without revealing individual amounts — the same role Pedersen
// commitments play over a transaction's real value pools.
type ValueCommitment struct {
	Point bn254.G1Affine
}

// NewValueCommitment computes value*G + blinder*H.
func NewValueCommitment(value uint64, blinder *big.Int) (ValueCommitment, error) {
	initCommitmentGenerators()
	if blinder == nil {
		return ValueCommitment{}, ErrInvalidBlinder
	}

	var valueG bn254.G1Affine
	valueG.ScalarMultiplication(&commitG, new(big.Int).SetUint64(value))

	var blinderH bn254.G1Affine
	blinderH.ScalarMultiplication(&commitH, blinder)

	var c bn254.G1Affine
	c.Add(&valueG, &blinderH)
	return ValueCommitment{Point: c}, nil
}

// NewRandomValueCommitment commits to value with a freshly drawn blinder,
// returning the blinder so the caller can later prove conservation.
func NewRandomValueCommitment(value uint64) (ValueCommitment, *big.Int, error) {
	var scalar fr.Element
	if _, err := scalar.SetRandom(); err != nil {
		return ValueCommitment{}, nil, err
	}
	blinder := scalar.BigInt(new(big.Int))

	c, err := NewValueCommitment(value, blinder)
	if err != nil {
		return ValueCommitment{}, nil, err
	}
	return c, blinder, nil
}

// Add returns c + other, matching the additive homomorphism Pedersen
// commitments carry: commitments to a sum equal the sum of commitments.
func (c ValueCommitment) Add(other ValueCommitment) ValueCommitment {
	var out bn254.G1Affine
	out.Add(&c.Point, &other.Point)
	return ValueCommitment{Point: out}
}

// Hash returns the commitment's x-coordinate as a types.Hash, the same
// point-to-hash projection the Orchard hasher uses.
func (c ValueCommitment) Hash() types.Hash {
	return pointToHash(c.Point)
}

// VerifyPlanBalance checks Σspends == Σoutputs + fee*G over the
// commitments, the cryptographic form of the plan-balance invariant:
// it holds if and only if the underlying blinders also balance, which a
// caller arranges by drawing the last output's blinder as
// Σspend blinders - Σ(other output blinders); the fee carries no blinder.
func VerifyPlanBalance(spends, outputs []ValueCommitment, fee uint64) bool {
	initCommitmentGenerators()

	var spendSum bn254.G1Affine
	spendSum.SetInfinity()
	for _, c := range spends {
		spendSum.Add(&spendSum, &c.Point)
	}

	var outputSum bn254.G1Affine
	outputSum.SetInfinity()
	for _, c := range outputs {
		outputSum.Add(&outputSum, &c.Point)
	}

	var feeG bn254.G1Affine
	feeG.ScalarMultiplication(&commitG, new(big.Int).SetUint64(fee))
	outputSum.Add(&outputSum, &feeG)

	return spendSum.Equal(&outputSum)
}
