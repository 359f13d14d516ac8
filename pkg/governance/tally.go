package governance

import (
	"math"
	"math/bits"
)

// TallyResult is the outcome of evaluating a proposal's vote counts.
type TallyResult int

const (
	TallyPassed TallyResult = iota
	TallyFailedQuorum
	TallyFailedMajority
)

func (r TallyResult) String() string {
	switch r {
	case TallyPassed:
		return "passed"
	case TallyFailedQuorum:
		return "failed_quorum"
	case TallyFailedMajority:
		return "failed_majority"
	default:
		return "unknown"
	}
}

// Evaluate computes pass/fail for a proposal against quorum and majority
// rules. It is a pure function of the proposal's recorded tallies: quorum
// requires TotalWeight >= totalSupply * quorumPercent / 100, then treasury
// spends need yes > 66% of participating weight while every other kind needs
// a simple yes > no majority. Ties do not pass. A zero totalSupply is a hard
// error.
func Evaluate(p *Proposal, totalSupply uint64, quorumPercent uint64) (TallyResult, error) {
	if totalSupply == 0 {
		return TallyFailedQuorum, ErrInvalidQuorum
	}

	quorumRequired := mulDiv(totalSupply, quorumPercent, 100)
	if p.TotalWeight < quorumRequired {
		return TallyFailedQuorum, nil
	}

	if p.Kind.IsTreasurySpend() {
		threshold := mulDiv(p.TotalWeight, 66, 100)
		if p.YesWeight > threshold {
			return TallyPassed, nil
		}
		return TallyFailedMajority, nil
	}

	if p.YesWeight > p.NoWeight {
		return TallyPassed, nil
	}
	return TallyFailedMajority, nil
}

// mulDiv computes a*b/d with a widened 128-bit intermediate so the product
// cannot overflow. A quotient beyond uint64 saturates at the maximum.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}
