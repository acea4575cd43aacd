package hasher

import (
	"math/big"
	"testing"
)

func TestValueCommitmentHomomorphicSum(t *testing.T) {
	c1, b1, err := NewRandomValueCommitment(60_000)
	if err != nil {
		t.Fatalf("NewRandomValueCommitment: %v", err)
	}
	c2, b2, err := NewRandomValueCommitment(80_000)
	if err != nil {
		t.Fatalf("NewRandomValueCommitment: %v", err)
	}

	sum := c1.Add(c2)
	want, err := NewValueCommitment(140_000, new(big.Int).Add(b1, b2))
	if err != nil {
		t.Fatalf("NewValueCommitment: %v", err)
	}
	if !sum.Point.Equal(&want.Point) {
		t.Fatalf("commitment to sum of values does not equal sum of commitments")
	}
}

func TestVerifyPlanBalanceHoldsWhenBlindersBalance(t *testing.T) {
	spend, blinder, err := NewRandomValueCommitment(140_000)
	if err != nil {
		t.Fatalf("NewRandomValueCommitment: %v", err)
	}
	output, err := NewValueCommitment(120_000, blinder)
	if err != nil {
		t.Fatalf("NewValueCommitment: %v", err)
	}

	if !VerifyPlanBalance([]ValueCommitment{spend}, []ValueCommitment{output}, 20_000) {
		t.Fatalf("expected plan balance to verify when blinders and amounts agree")
	}
	if VerifyPlanBalance([]ValueCommitment{spend}, []ValueCommitment{output}, 19_999) {
		t.Fatalf("expected plan balance to fail to verify against a wrong fee")
	}
}
