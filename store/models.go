// Package store contains the GORM-backed SQLite models and the ProposalStore,
// the only component permitted to mutate proposal tallies and status.
//
// Database structure (database file: governance.db):
//
//	<home>/data/governance.db
//	├── proposals
//	└── votes
package store

import (
	"time"

	"gorm.io/gorm"
)

// Proposal status values. The lifecycle controller owns every transition;
// EXECUTED, CANCELLED, EXPIRED and DEFEATED are terminal.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusSucceeded = "SUCCEEDED"
	StatusDefeated  = "DEFEATED"
	StatusQueued    = "QUEUED"
	StatusExecuted  = "EXECUTED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Vote choice values, matching the Governor support ordering.
const (
	ChoiceAgainst = "AGAINST"
	ChoiceFor     = "FOR"
	ChoiceAbstain = "ABSTAIN"
)

// Proposal is the aggregate root mirrored against the external ledger.
//
// Tallies, quorum and voting power are decimal strings so arbitrary-precision
// values survive storage without truncation; they are parsed to math.Int at
// the store boundary and never touched with floating point.
type Proposal struct {
	gorm.Model
	ProposalID string `gorm:"uniqueIndex;not null"` // Internal id, stable across the record's life
	ExternalID string `gorm:"index"`                // Ledger-assigned id (decimal string); empty until registered

	// Immutable at creation
	ProposalType     string `gorm:"index"`
	Proposer         string `gorm:"index;not null"` // Case-normalized 0x address
	Title            string
	Description      string `gorm:"type:text"`
	BodyRef          string // Content-addressed pointer to the full proposal body
	ChainDescription string `gorm:"type:text"` // Exact description string registered on-chain (scheme://ref); never updated
	DescriptionHash  string // keccak-256 of ChainDescription, captured at creation
	Targets          string `gorm:"type:text"` // JSON array of 0x addresses
	RawValues        string `gorm:"type:text"` // JSON array of decimal strings
	Signatures       string `gorm:"type:text"` // JSON array of function signatures
	Calldatas        string `gorm:"type:text"` // JSON array of hex payloads

	// Mutable governance fields
	Status           string `gorm:"index;not null"`
	VotesFor         string `gorm:"default:'0'"`
	VotesAgainst     string `gorm:"default:'0'"`
	VotesAbstain     string `gorm:"default:'0'"`
	QuorumRequired   string `gorm:"default:'0'"`
	ThresholdPercent float64
	TotalVotingPower string // Snapshot denominator; empty until voting begins
	QuorumReached    bool
	ThresholdReached bool
	TimelockDelay    int64 // Seconds

	// Temporal fields
	VotingStartBlock uint64
	VotingEndBlock   uint64
	VotingStartAt    *time.Time
	VotingEndAt      *time.Time `gorm:"index"`
	QueuedAt         *time.Time
	EarliestExecutionAt *time.Time
	ExecutedAt       *time.Time
	ExpirationAt     *time.Time `gorm:"index"`
	CancelledAt      *time.Time

	// Outcome fields
	ExecutionTxRef     string
	CancellationReason string `gorm:"type:text"`
	Metadata           string `gorm:"type:text"` // Free-form JSON
}

// Vote records one confirmed ballot. Created only after ledger confirmation,
// never updated, never deleted. The composite unique index is the database
// backstop for the one-vote-per-(proposal, voter) invariant.
type Vote struct {
	gorm.Model
	ProposalID  string `gorm:"uniqueIndex:idx_proposal_voter,priority:1;not null"` // Internal proposal id
	Voter       string `gorm:"uniqueIndex:idx_proposal_voter,priority:2;not null"` // Case-normalized 0x address
	Choice      string `gorm:"not null"` // FOR / AGAINST / ABSTAIN
	VotingPower string `gorm:"not null"` // Decimal string, fixed at cast time
	CastAt      time.Time
	BlockNumber uint64 // Ledger block the vote was confirmed in
	TxRef       string // Ledger transaction reference
	Reason      string `gorm:"type:text"`
}
