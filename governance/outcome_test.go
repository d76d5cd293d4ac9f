package governance

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadastrelabs/landgov/store"
)

func snap(votesFor, against, abstain, quorum, total string, threshold float64) TallySnapshot {
	mustInt := func(s string) sdkmath.Int {
		n, ok := sdkmath.NewIntFromString(s)
		if !ok {
			panic("bad test int " + s)
		}
		return n
	}
	return TallySnapshot{
		VotesFor:         mustInt(votesFor),
		VotesAgainst:     mustInt(against),
		VotesAbstain:     mustInt(abstain),
		QuorumRequired:   mustInt(quorum),
		TotalVotingPower: mustInt(total),
		ThresholdPercent: threshold,
	}
}

func TestEvaluateOutcome(t *testing.T) {
	tests := []struct {
		name             string
		snapshot         TallySnapshot
		quorumReached    bool
		thresholdReached bool
		decision         string
	}{
		{
			name:             "quorum and threshold met",
			snapshot:         snap("600", "300", "100", "500", "2000", 50.0),
			quorumReached:    true,
			thresholdReached: true,
			decision:         store.StatusSucceeded,
		},
		{
			name:             "quorum missed by one unit",
			snapshot:         snap("300", "100", "99", "500", "2000", 50.0),
			quorumReached:    false,
			thresholdReached: false,
			decision:         store.StatusDefeated,
		},
		{
			name:             "quorum met exactly",
			snapshot:         snap("300", "100", "100", "500", "2000", 50.0),
			quorumReached:    true,
			thresholdReached: true,
			decision:         store.StatusSucceeded,
		},
		{
			name: "ratio exactly at threshold fails",
			// 500 of 1000 effective is exactly 50%, and >50% is required.
			snapshot:         snap("500", "500", "0", "100", "5000", 50.0),
			quorumReached:    true,
			thresholdReached: false,
			decision:         store.StatusDefeated,
		},
		{
			name:             "one unit above threshold passes",
			snapshot:         snap("501", "499", "0", "100", "5000", 50.0),
			quorumReached:    true,
			thresholdReached: true,
			decision:         store.StatusSucceeded,
		},
		{
			name: "abstain reaches quorum but dilutes nothing",
			// Abstain fills the quorum; the threshold ratio still uses only
			// for+against, so 30 of 60 effective is an exact-boundary fail.
			snapshot:         snap("30", "30", "40", "100", "1000", 50.0),
			quorumReached:    true,
			thresholdReached: false,
			decision:         store.StatusDefeated,
		},
		{
			name:             "fractional threshold",
			snapshot:         snap("667", "333", "0", "10", "10000", 66.7),
			quorumReached:    true,
			thresholdReached: false, // 66.70% exactly
			decision:         store.StatusDefeated,
		},
		{
			name:             "fractional threshold exceeded",
			snapshot:         snap("668", "332", "0", "10", "10000", 66.7),
			quorumReached:    true,
			thresholdReached: true,
			decision:         store.StatusSucceeded,
		},
		{
			name:             "no effective votes",
			snapshot:         snap("0", "0", "500", "100", "1000", 50.0),
			quorumReached:    true,
			thresholdReached: false,
			decision:         store.StatusDefeated,
		},
		{
			name:             "zero voting power snapshot fails definitionally",
			snapshot:         snap("100", "0", "0", "0", "0", 50.0),
			quorumReached:    false,
			thresholdReached: false,
			decision:         store.StatusDefeated,
		},
		{
			name: "tallies beyond uint64 stay exact",
			snapshot: snap(
				"92233720368547758080000000001",
				"92233720368547758080000000000",
				"0",
				"100000000000000000000000000000",
				"400000000000000000000000000000",
				50.0),
			quorumReached:    true,
			thresholdReached: true,
			decision:         store.StatusSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EvaluateOutcome(tt.snapshot)
			assert.Equal(t, tt.quorumReached, out.QuorumReached, "quorum")
			assert.Equal(t, tt.thresholdReached, out.ThresholdReached, "threshold")
			assert.Equal(t, tt.decision, out.Decision, "decision")
		})
	}
}

func TestEvaluateOutcomeNilFields(t *testing.T) {
	out := EvaluateOutcome(TallySnapshot{})
	assert.False(t, out.QuorumReached)
	assert.False(t, out.ThresholdReached)
	assert.Equal(t, store.StatusDefeated, out.Decision)
}

func TestEvaluateOutcomeDeterministic(t *testing.T) {
	s := snap("12345678901234567890", "9876543210987654321", "11111", "1000", "99999999999999999999", 33.3)
	first := EvaluateOutcome(s)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, EvaluateOutcome(s))
	}
}

func TestSnapshotFromProposal(t *testing.T) {
	p := &store.Proposal{
		VotesFor:         "42",
		VotesAgainst:     "",
		VotesAbstain:     "7",
		QuorumRequired:   "10",
		TotalVotingPower: "1000",
		ThresholdPercent: 50.0,
	}
	s, err := SnapshotFromProposal(p)
	require.NoError(t, err)
	assert.Equal(t, "42", s.VotesFor.String())
	assert.True(t, s.VotesAgainst.IsZero(), "empty column reads as zero")
	assert.Equal(t, "7", s.VotesAbstain.String())

	p.VotesFor = "not-a-number"
	_, err = SnapshotFromProposal(p)
	require.Error(t, err)
}
