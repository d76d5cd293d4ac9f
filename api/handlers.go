package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cadastrelabs/landgov/store"
)

const defaultListLimit = 100

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleListProposals handles GET /api/v1/proposals?status=<status>&limit=<n>
func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	proposals, err := s.store.ListProposals(status, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list proposals")
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}

	views := make([]ProposalView, 0, len(proposals))
	for i := range proposals {
		views = append(views, toProposalView(&proposals[i]))
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views, Timestamp: time.Now().UTC()})
}

// handleGetProposal handles GET /api/v1/proposals/{id}
func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	proposal, err := s.store.GetProposal(id)
	if err != nil {
		if errors.Is(err, store.ErrProposalNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("proposal %s not found", id))
			return
		}
		s.logger.Error().Err(err).Str("proposal_id", id).Msg("failed to fetch proposal")
		writeError(w, http.StatusInternalServerError, "failed to fetch proposal")
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Data: toProposalView(proposal), Timestamp: time.Now().UTC()})
}

// handleListVotes handles GET /api/v1/proposals/{id}/votes
func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.store.GetProposal(id); err != nil {
		if errors.Is(err, store.ErrProposalNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("proposal %s not found", id))
			return
		}
		s.logger.Error().Err(err).Str("proposal_id", id).Msg("failed to fetch proposal")
		writeError(w, http.StatusInternalServerError, "failed to fetch proposal")
		return
	}

	votes, err := s.store.ListVotes(id)
	if err != nil {
		s.logger.Error().Err(err).Str("proposal_id", id).Msg("failed to list votes")
		writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}

	views := make([]VoteView, 0, len(votes))
	for _, v := range votes {
		views = append(views, VoteView{
			Voter:       v.Voter,
			Choice:      v.Choice,
			VotingPower: v.VotingPower,
			CastAt:      v.CastAt,
			BlockNumber: v.BlockNumber,
			TxRef:       v.TxRef,
			Reason:      v.Reason,
		})
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views, Timestamp: time.Now().UTC()})
}

// toProposalView maps a stored proposal to its read-side shape, deriving the
// participation and approval rates by exact integer division.
func toProposalView(p *store.Proposal) ProposalView {
	view := ProposalView{
		ProposalID:       p.ProposalID,
		ExternalID:       p.ExternalID,
		ProposalType:     p.ProposalType,
		Proposer:         p.Proposer,
		Title:            p.Title,
		BodyRef:          p.BodyRef,
		ChainDescription: p.ChainDescription,
		DescriptionHash:  p.DescriptionHash,
		Status:           p.Status,
		VotesFor:         p.VotesFor,
		VotesAgainst:     p.VotesAgainst,
		VotesAbstain:     p.VotesAbstain,
		TotalVotingPower: p.TotalVotingPower,
		QuorumRequired:   p.QuorumRequired,
		ThresholdPercent: p.ThresholdPercent,
		QuorumReached:    p.QuorumReached,
		ThresholdReached: p.ThresholdReached,
		CreatedAt:        p.CreatedAt,
		VotingStartAt:    p.VotingStartAt,
		VotingEndAt:      p.VotingEndAt,
		ExpirationAt:     p.ExpirationAt,
		QueuedAt:         p.QueuedAt,
		EarliestExecAt:   p.EarliestExecutionAt,
		ExecutedAt:       p.ExecutedAt,
		CancelledAt:      p.CancelledAt,
		ExecutionTxRef:   p.ExecutionTxRef,
		CancellationNote: p.CancellationReason,
	}

	votesFor, errFor := store.ParseTally(p.VotesFor)
	votesAgainst, errAgainst := store.ParseTally(p.VotesAgainst)
	votesAbstain, errAbstain := store.ParseTally(p.VotesAbstain)
	if errFor != nil || errAgainst != nil || errAbstain != nil {
		return view
	}

	participating := votesFor.Add(votesAgainst).Add(votesAbstain)
	if total, err := store.ParseTally(p.TotalVotingPower); err == nil && total.IsPositive() {
		bps := participating.Mul(sdkmath.NewInt(10000)).Quo(total)
		if bps.IsInt64() {
			n := bps.Int64()
			view.ParticipationBps = &n
		}
	}

	effective := votesFor.Add(votesAgainst)
	if effective.IsPositive() {
		bps := votesFor.Mul(sdkmath.NewInt(10000)).Quo(effective)
		if bps.IsInt64() {
			n := bps.Int64()
			view.ApprovalBps = &n
		}
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
