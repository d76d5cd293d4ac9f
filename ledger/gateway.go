// Package ledger defines the contract between the governance engine and the
// external authoritative ledger. The engine is a shadow of the ledger's
// state: every lifecycle transition that matters on-chain goes through a
// Gateway submission and is reflected locally only after confirmation.
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProposalCall is the (targets, values, signatures, calldatas) tuple that
// identifies a proposal on the ledger. Queue, execute and cancel identify the
// proposal by the hash of this tuple plus the description hash, not by id.
type ProposalCall struct {
	Targets    []common.Address
	Values     []*big.Int
	Signatures []string
	Calldatas  [][]byte
}

// RegisterResult is returned once a proposal registration has been confirmed.
type RegisterResult struct {
	ExternalID       string // Ledger-assigned proposal id, decimal string
	TxRef            string
	BlockNumber      uint64
	VotingStartBlock uint64
	VotingEndBlock   uint64
}

// Confirmation reports the outcome of a submitted transaction.
type Confirmation struct {
	TxRef       string
	BlockNumber uint64
	Success     bool       // false means mined but reverted
	ETA         *time.Time // Earliest execution time from the queue event, when emitted
}

// Gateway submits governance operations to the external ledger and answers
// point-in-time voting power queries. Implementations are stateless with
// respect to the engine and safe for concurrent use.
type Gateway interface {
	// RegisterProposal submits the proposal and blocks until the registration
	// is confirmed, returning the ledger-assigned id and voting window.
	RegisterProposal(ctx context.Context, call ProposalCall, description string) (*RegisterResult, error)

	// CastVote submits a ballot and returns its transaction reference without
	// waiting for confirmation.
	CastVote(ctx context.Context, externalID string, choice uint8, reason string) (string, error)

	// AwaitConfirmation blocks until the referenced transaction is mined or
	// ctx expires, reporting success and any queue eta event it carried.
	AwaitConfirmation(ctx context.Context, txRef string) (*Confirmation, error)

	// QueueProposal submits the timelock queue instruction.
	QueueProposal(ctx context.Context, call ProposalCall, descriptionHash [32]byte) (string, error)

	// ExecuteProposal submits the execution instruction.
	ExecuteProposal(ctx context.Context, call ProposalCall, descriptionHash [32]byte) (string, error)

	// CancelProposal submits the cancellation instruction.
	CancelProposal(ctx context.Context, call ProposalCall, descriptionHash [32]byte) (string, error)

	// VotingPowerAt returns the voter's voting power at the given block.
	VotingPowerAt(ctx context.Context, voter common.Address, blockNumber uint64) (*big.Int, error)

	// TotalVotingPowerAt returns the total eligible voting power at the given
	// block, used as the quorum denominator once voting begins.
	TotalVotingPowerAt(ctx context.Context, blockNumber uint64) (*big.Int, error)
}
