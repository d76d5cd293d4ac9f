// Package governance implements the proposal lifecycle engine: the state
// machine controller, the pure outcome evaluator, and the reconciliation
// sweep that closes out elapsed voting windows.
package governance

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"

	"github.com/cadastrelabs/landgov/store"
)

// VoteChoice is a ballot option. The numeric values match the Governor
// support ordering on the ledger (0 = against, 1 = for, 2 = abstain).
type VoteChoice uint8

const (
	ChoiceAgainst VoteChoice = iota
	ChoiceFor
	ChoiceAbstain
)

// String returns the store representation of the choice.
func (c VoteChoice) String() string {
	switch c {
	case ChoiceAgainst:
		return store.ChoiceAgainst
	case ChoiceFor:
		return store.ChoiceFor
	case ChoiceAbstain:
		return store.ChoiceAbstain
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(c))
	}
}

// ParseVoteChoice parses a case-insensitive choice name.
func ParseVoteChoice(s string) (VoteChoice, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case store.ChoiceAgainst:
		return ChoiceAgainst, nil
	case store.ChoiceFor:
		return ChoiceFor, nil
	case store.ChoiceAbstain:
		return ChoiceAbstain, nil
	default:
		return 0, errors.Errorf("invalid vote choice %q", s)
	}
}

// CreateProposalRequest carries everything needed to create and register a
// proposal.
type CreateProposalRequest struct {
	ProposalType string
	Proposer     string
	Title        string
	Description  string
	Batch        ActionBatch

	// Optional overrides; zero values fall back to the engine defaults.
	QuorumRequired   sdkmath.Int
	ThresholdPercent float64
	TimelockDelay    time.Duration
	ExpirationAt     *time.Time
	Metadata         map[string]string
}

// UpdateProposalRequest carries the only fields that may change while a
// proposal is still undecided. Nil pointers leave the field untouched.
type UpdateProposalRequest struct {
	Title       *string
	Description *string
	VotingEndAt *time.Time
	Metadata    map[string]string
}

// TimelockActiveError is returned when execution is attempted before the
// timelock has elapsed. It carries the remaining wait so the caller knows
// when to retry.
type TimelockActiveError struct {
	Remaining time.Duration
}

func (e *TimelockActiveError) Error() string {
	return fmt.Sprintf("timelock still active: %s remaining before execution is allowed", e.Remaining)
}
