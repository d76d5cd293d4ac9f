package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/rs/zerolog"

	"github.com/cadastrelabs/landgov/store"
)

func newTestSweeper(e *testEngine) *Sweeper {
	s := NewSweeper(SweeperConfig{
		Store:      e.store,
		Controller: e.controller,
		Interval:   time.Hour, // never fires in tests; Sweep is driven directly
		BatchSize:  50,
		Logger:     zerolog.Nop(),
	})
	s.now = func() time.Time { return e.now }
	return s
}

func TestSweepAdvancesElapsedProposals(t *testing.T) {
	e := newTestEngine(t)
	sweeper := newTestSweeper(e)
	ended := e.now.Add(-time.Minute)

	// Window elapsed, quorum and threshold met.
	wins := e.seed(t, store.StatusActive, func(p *store.Proposal) {
		p.VotingEndAt = &ended
		p.VotesFor = "600"
		p.VotesAgainst = "300"
		p.VotesAbstain = "100"
		p.QuorumRequired = "500"
	})

	// Window elapsed, quorum met, ratio exactly at the threshold.
	thresholdFail := e.seed(t, store.StatusActive, func(p *store.Proposal) {
		p.VotingEndAt = &ended
		p.VotesFor = "500"
		p.VotesAgainst = "500"
		p.QuorumRequired = "500"
	})

	// Window elapsed, quorum missed.
	quorumFail := e.seed(t, store.StatusActive, func(p *store.Proposal) {
		p.VotingEndAt = &ended
		p.VotesFor = "400"
		p.QuorumRequired = "500"
	})

	// Expiration date passed while still awaiting registration.
	expired := e.seed(t, store.StatusPending, func(p *store.Proposal) {
		p.ExternalID = ""
		exp := e.now.Add(-time.Hour)
		p.ExpirationAt = &exp
	})

	// Nothing elapsed; must not be touched.
	untouched := e.seed(t, store.StatusPending, func(p *store.Proposal) {
		p.ExternalID = ""
	})

	sweeper.Sweep(context.Background())

	assertStatus := func(p *store.Proposal, want string) {
		t.Helper()
		got, err := e.store.GetProposal(p.ProposalID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
	assertStatus(wins, store.StatusSucceeded)
	assertStatus(thresholdFail, store.StatusDefeated)
	assertStatus(quorumFail, store.StatusDefeated)
	assertStatus(expired, store.StatusExpired)
	assertStatus(untouched, store.StatusPending)
}

func TestSweepExpirationWinsOverOutcome(t *testing.T) {
	e := newTestEngine(t)
	sweeper := newTestSweeper(e)

	// Both the voting window and the expiration date elapsed in the same
	// interval; expiration takes priority over outcome determination.
	p := e.seed(t, store.StatusActive, func(p *store.Proposal) {
		ended := e.now.Add(-time.Minute)
		p.VotingEndAt = &ended
		p.ExpirationAt = &ended
		p.VotesFor = "600"
		p.QuorumRequired = "100"
	})

	sweeper.Sweep(context.Background())

	got, err := e.store.GetProposal(p.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusExpired, got.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	sweeper := newTestSweeper(e)

	p := e.seed(t, store.StatusActive, func(p *store.Proposal) {
		ended := e.now.Add(-time.Minute)
		p.VotingEndAt = &ended
		p.VotesFor = "600"
		p.QuorumRequired = "100"
	})

	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	got, err := e.store.GetProposal(p.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
}
