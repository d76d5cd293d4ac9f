package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadastrelabs/landgov/db"
	"github.com/cadastrelabs/landgov/store"
)

func newTestAPI(t *testing.T) (*Server, *store.ProposalStore) {
	t.Helper()

	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	st := store.NewProposalStore(database.Client(), zerolog.Nop())
	return NewServer(zerolog.Nop(), st, 0), st
}

func seedProposal(t *testing.T, st *store.ProposalStore, id, status string) *store.Proposal {
	t.Helper()
	p := &store.Proposal{
		ProposalID:       id,
		ExternalID:       "42",
		Proposer:         "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Title:            "Rezone the northern district",
		Status:           status,
		VotesFor:         "600",
		VotesAgainst:     "300",
		VotesAbstain:     "100",
		QuorumRequired:   "500",
		ThresholdPercent: 50.0,
		TotalVotingPower: "10000",
	}
	require.NoError(t, st.CreateProposal(p))
	return p
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestAPI(t)
	rec := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleListProposals(t *testing.T) {
	s, st := newTestAPI(t)
	seedProposal(t, st, "p-1", store.StatusActive)
	seedProposal(t, st, "p-2", store.StatusDefeated)

	rec := doRequest(t, s, "/api/v1/proposals")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []ProposalView
	decodeData(t, rec, &all)
	assert.Len(t, all, 2)

	rec = doRequest(t, s, "/api/v1/proposals?status=defeated")
	require.Equal(t, http.StatusOK, rec.Code)
	var defeated []ProposalView
	decodeData(t, rec, &defeated)
	require.Len(t, defeated, 1)
	assert.Equal(t, "p-2", defeated[0].ProposalID)

	rec = doRequest(t, s, "/api/v1/proposals?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetProposal(t *testing.T) {
	s, st := newTestAPI(t)
	seedProposal(t, st, "p-1", store.StatusSucceeded)

	rec := doRequest(t, s, "/api/v1/proposals/p-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var view ProposalView
	decodeData(t, rec, &view)
	assert.Equal(t, "p-1", view.ProposalID)
	assert.Equal(t, "600", view.VotesFor)

	// 1000 of 10000 participating and 600 of 900 effective, in basis points.
	require.NotNil(t, view.ParticipationBps)
	assert.Equal(t, int64(1000), *view.ParticipationBps)
	require.NotNil(t, view.ApprovalBps)
	assert.Equal(t, int64(6666), *view.ApprovalBps)
}

func TestHandleGetProposalNotFound(t *testing.T) {
	s, _ := newTestAPI(t)
	rec := doRequest(t, s, "/api/v1/proposals/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "missing")
}

func TestHandleListVotes(t *testing.T) {
	s, st := newTestAPI(t)
	p := seedProposal(t, st, "p-1", store.StatusActive)

	_, err := st.AddVote(&store.Vote{
		ProposalID:  p.ProposalID,
		Voter:       "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
		Choice:      store.ChoiceFor,
		VotingPower: "250",
		CastAt:      time.Now().UTC(),
		TxRef:       "0xvote",
	}, nil)
	require.NoError(t, err)

	rec := doRequest(t, s, "/api/v1/proposals/p-1/votes")
	require.Equal(t, http.StatusOK, rec.Code)

	var votes []VoteView
	decodeData(t, rec, &votes)
	require.Len(t, votes, 1)
	assert.Equal(t, store.ChoiceFor, votes[0].Choice)
	assert.Equal(t, "250", votes[0].VotingPower)

	rec = doRequest(t, s, "/api/v1/proposals/missing/votes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatesOmittedWithoutDenominator(t *testing.T) {
	s, st := newTestAPI(t)
	p := &store.Proposal{
		ProposalID: "p-1",
		Proposer:   "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Title:      "Awaiting registration",
		Status:     store.StatusPending,
	}
	require.NoError(t, st.CreateProposal(p))

	rec := doRequest(t, s, "/api/v1/proposals/p-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var view ProposalView
	decodeData(t, rec, &view)
	assert.Nil(t, view.ParticipationBps, "no voting power snapshot yet")
	assert.Nil(t, view.ApprovalBps, "no effective votes yet")
}
