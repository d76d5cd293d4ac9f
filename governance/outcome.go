package governance

import (
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/cadastrelabs/landgov/store"
)

// TallySnapshot is the input to outcome evaluation: the three tally buckets
// plus the quorum/threshold parameters fixed when voting began.
type TallySnapshot struct {
	VotesFor         sdkmath.Int
	VotesAgainst     sdkmath.Int
	VotesAbstain     sdkmath.Int
	QuorumRequired   sdkmath.Int
	TotalVotingPower sdkmath.Int
	ThresholdPercent float64 // e.g. 50.0 meaning ">50%"
}

// Outcome is the derived decision for a proposal.
type Outcome struct {
	QuorumReached    bool
	ThresholdReached bool
	Decision         string // store.StatusSucceeded or store.StatusDefeated
}

// EvaluateOutcome computes quorum, threshold and decision from a tally
// snapshot. It is pure: same inputs, same outputs, no side effects. Every
// call site derives outcome through this function; nothing else in the
// engine compares tallies.
//
// Abstain votes count toward quorum but are excluded from the threshold
// ratio. The threshold comparison is done with integer cross-multiplication
// in basis points — votesFor*10000 > round(pct*100)*effective — so the
// boundary case (ratio exactly equal to the threshold) is a strict fail and
// no floating-point rounding can flip it.
func EvaluateOutcome(t TallySnapshot) Outcome {
	defeated := Outcome{Decision: store.StatusDefeated}

	// A missing or zero snapshot is a definitional failure, not a pass.
	if t.TotalVotingPower.IsNil() || !t.TotalVotingPower.IsPositive() {
		return defeated
	}
	if t.QuorumRequired.IsNil() || t.QuorumRequired.IsNegative() {
		return defeated
	}

	votesFor := orZero(t.VotesFor)
	votesAgainst := orZero(t.VotesAgainst)
	votesAbstain := orZero(t.VotesAbstain)

	participating := votesFor.Add(votesAgainst).Add(votesAbstain)
	if participating.LT(t.QuorumRequired) {
		return defeated
	}

	out := Outcome{QuorumReached: true, Decision: store.StatusDefeated}

	effective := votesFor.Add(votesAgainst)
	if effective.IsZero() {
		return out
	}

	thresholdBps := sdkmath.NewInt(int64(math.Round(t.ThresholdPercent * 100)))
	if votesFor.MulRaw(10000).GT(thresholdBps.Mul(effective)) {
		out.ThresholdReached = true
		out.Decision = store.StatusSucceeded
	}
	return out
}

// SnapshotFromProposal parses a stored proposal's tally columns into an
// evaluation snapshot.
func SnapshotFromProposal(p *store.Proposal) (TallySnapshot, error) {
	var (
		snap TallySnapshot
		err  error
	)
	if snap.VotesFor, err = store.ParseTally(p.VotesFor); err != nil {
		return snap, err
	}
	if snap.VotesAgainst, err = store.ParseTally(p.VotesAgainst); err != nil {
		return snap, err
	}
	if snap.VotesAbstain, err = store.ParseTally(p.VotesAbstain); err != nil {
		return snap, err
	}
	if snap.QuorumRequired, err = store.ParseTally(p.QuorumRequired); err != nil {
		return snap, err
	}
	if snap.TotalVotingPower, err = store.ParseTally(p.TotalVotingPower); err != nil {
		return snap, err
	}
	snap.ThresholdPercent = p.ThresholdPercent
	return snap, nil
}

func orZero(n sdkmath.Int) sdkmath.Int {
	if n.IsNil() {
		return sdkmath.ZeroInt()
	}
	return n
}
