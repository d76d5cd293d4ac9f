package api

import "time"

// QueryResponse is the envelope for successful query responses.
type QueryResponse struct {
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse is the envelope for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProposalView is the read-side representation of a proposal.
type ProposalView struct {
	ProposalID       string     `json:"proposal_id"`
	ExternalID       string     `json:"external_id,omitempty"`
	ProposalType     string     `json:"proposal_type"`
	Proposer         string     `json:"proposer"`
	Title            string     `json:"title"`
	BodyRef          string     `json:"body_ref,omitempty"`
	ChainDescription string     `json:"chain_description"`
	DescriptionHash  string     `json:"description_hash"`
	Status           string     `json:"status"`
	VotesFor         string     `json:"votes_for"`
	VotesAgainst     string     `json:"votes_against"`
	VotesAbstain     string     `json:"votes_abstain"`
	TotalVotingPower string     `json:"total_voting_power,omitempty"`
	QuorumRequired   string     `json:"quorum_required"`
	ThresholdPercent float64    `json:"threshold_percent"`
	QuorumReached    bool       `json:"quorum_reached"`
	ThresholdReached bool       `json:"threshold_reached"`
	// Rates are reported in basis points from exact integer division;
	// they are omitted while their denominator is zero.
	ParticipationBps *int64     `json:"participation_bps,omitempty"`
	ApprovalBps      *int64     `json:"approval_bps,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	VotingStartAt    *time.Time `json:"voting_start_at,omitempty"`
	VotingEndAt      *time.Time `json:"voting_end_at,omitempty"`
	ExpirationAt     *time.Time `json:"expiration_at,omitempty"`
	QueuedAt         *time.Time `json:"queued_at,omitempty"`
	EarliestExecAt   *time.Time `json:"earliest_execution_at,omitempty"`
	ExecutedAt       *time.Time `json:"executed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	ExecutionTxRef   string     `json:"execution_tx_ref,omitempty"`
	CancellationNote string     `json:"cancellation_reason,omitempty"`
}

// VoteView is the read-side representation of a recorded vote.
type VoteView struct {
	Voter       string    `json:"voter"`
	Choice      string    `json:"choice"`
	VotingPower string    `json:"voting_power"`
	CastAt      time.Time `json:"cast_at"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	TxRef       string    `json:"tx_ref,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}
