package store

import (
	stderrors "errors"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrProposalNotFound indicates the proposal does not exist in the store
	ErrProposalNotFound = stderrors.New("proposal not found")

	// ErrDuplicateVote indicates the voter already has a vote for the proposal
	ErrDuplicateVote = stderrors.New("voter has already voted on this proposal")

	// ErrInvalidTally indicates a stored tally could not be parsed as a
	// non-negative arbitrary-precision integer
	ErrInvalidTally = stderrors.New("invalid tally value")
)

// ProposalStore provides database access for proposals and votes. It is the
// sole mutator of tallies and status; tally mutation happens inside a single
// transaction so two confirmed votes arriving concurrently cannot both read
// the same pre-update tally and lose an increment.
type ProposalStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewProposalStore creates a new proposal store.
func NewProposalStore(db *gorm.DB, logger zerolog.Logger) *ProposalStore {
	return &ProposalStore{
		db:     db,
		logger: logger.With().Str("component", "proposal_store").Logger(),
	}
}

// CreateProposal stores a new proposal record.
func (s *ProposalStore) CreateProposal(p *Proposal) error {
	if err := s.db.Create(p).Error; err != nil {
		return errors.Wrapf(err, "failed to create proposal %s", p.ProposalID)
	}
	s.logger.Info().
		Str("proposal_id", p.ProposalID).
		Str("proposer", p.Proposer).
		Str("status", p.Status).
		Msg("stored new proposal")
	return nil
}

// GetProposal retrieves a proposal by its internal id.
func (s *ProposalStore) GetProposal(proposalID string) (*Proposal, error) {
	var p Proposal
	if err := s.db.Where("proposal_id = ?", proposalID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, errors.Wrapf(err, "failed to query proposal %s", proposalID)
	}
	return &p, nil
}

// GetProposalByExternalID retrieves a proposal by its ledger-assigned id.
func (s *ProposalStore) GetProposalByExternalID(externalID string) (*Proposal, error) {
	var p Proposal
	if err := s.db.Where("external_id = ?", externalID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, errors.Wrapf(err, "failed to query proposal with external id %s", externalID)
	}
	return &p, nil
}

// UpdateFields applies a partial update to a proposal. Status and tallies are
// never updated through this path; use TransitionStatus and AddVote.
func (s *ProposalStore) UpdateFields(proposalID string, fields map[string]any) error {
	result := s.db.Model(&Proposal{}).
		Where("proposal_id = ?", proposalID).
		Updates(fields)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update proposal %s", proposalID)
	}
	if result.RowsAffected == 0 {
		return ErrProposalNotFound
	}
	return nil
}

// TransitionStatus moves a proposal from one of the expected statuses to the
// target status, applying any extra fields in the same guarded update. It
// returns false when no row moved, meaning the proposal was not in an
// expected status — callers treat that as "someone advanced it first" and
// re-read rather than error, which is what makes every transition idempotent
// under concurrent sweeps and request-driven calls.
func (s *ProposalStore) TransitionStatus(proposalID string, from []string, to string, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := s.db.Model(&Proposal{}).
		Where("proposal_id = ? AND status IN ?", proposalID, from).
		Updates(updates)
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "failed to transition proposal %s to %s", proposalID, to)
	}
	if result.RowsAffected > 0 {
		s.logger.Info().
			Str("proposal_id", proposalID).
			Str("status", to).
			Msg("proposal status transitioned")
	}
	return result.RowsAffected > 0, nil
}

// ListProposals returns proposals, optionally filtered by status, newest first.
func (s *ProposalStore) ListProposals(status string, limit int) ([]Proposal, error) {
	var proposals []Proposal
	query := s.db.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&proposals).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list proposals")
	}
	return proposals, nil
}

// ActiveWithVotingEnded returns ACTIVE proposals whose voting window has
// elapsed, oldest window first.
func (s *ProposalStore) ActiveWithVotingEnded(now time.Time, limit int) ([]Proposal, error) {
	var proposals []Proposal
	query := s.db.
		Where("status = ? AND voting_end_at IS NOT NULL AND voting_end_at <= ?", StatusActive, now).
		Order("voting_end_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&proposals).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query proposals with ended voting windows")
	}
	return proposals, nil
}

// ExpiredPendingOrActive returns PENDING or ACTIVE proposals whose explicit
// expiration date has passed.
func (s *ProposalStore) ExpiredPendingOrActive(now time.Time, limit int) ([]Proposal, error) {
	var proposals []Proposal
	query := s.db.
		Where("status IN ? AND expiration_at IS NOT NULL AND expiration_at <= ?",
			[]string{StatusPending, StatusActive}, now).
		Order("expiration_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&proposals).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query expired proposals")
	}
	return proposals, nil
}

// HasVote reports whether the voter already has a vote on the proposal. This
// is a pre-check only; AddVote re-verifies inside its transaction.
func (s *ProposalStore) HasVote(proposalID, voter string) (bool, error) {
	var count int64
	if err := s.db.Model(&Vote{}).
		Where("proposal_id = ? AND voter = ?", proposalID, voter).
		Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "failed to check vote for %s on %s", voter, proposalID)
	}
	return count > 0, nil
}

// ListVotes returns all votes cast on a proposal in cast order.
func (s *ProposalStore) ListVotes(proposalID string) ([]Vote, error) {
	var votes []Vote
	if err := s.db.Where("proposal_id = ?", proposalID).
		Order("cast_at ASC, id ASC").
		Find(&votes).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list votes for proposal %s", proposalID)
	}
	return votes, nil
}

// AddVote appends a confirmed vote and bumps the matching tally bucket in a
// single transaction. The duplicate-voter check runs again inside the
// transaction to close the race between two concurrent first-time votes from
// the same address; the unique index on (proposal_id, voter) backstops it.
//
// refreshOutcome is invoked on the updated record before persisting so the
// cached quorum/threshold flags are always written consistently with the
// tallies they were derived from. It must not touch status or tallies.
func (s *ProposalStore) AddVote(vote *Vote, refreshOutcome func(*Proposal)) (*Proposal, error) {
	var updated *Proposal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p Proposal
		if err := tx.Where("proposal_id = ?", vote.ProposalID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProposalNotFound
			}
			return errors.Wrapf(err, "failed to load proposal %s", vote.ProposalID)
		}

		var count int64
		if err := tx.Model(&Vote{}).
			Where("proposal_id = ? AND voter = ?", vote.ProposalID, vote.Voter).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to re-check voter uniqueness")
		}
		if count > 0 {
			return ErrDuplicateVote
		}

		if err := tx.Create(vote).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateVote
			}
			return errors.Wrapf(err, "failed to insert vote by %s", vote.Voter)
		}

		power, err := ParseTally(vote.VotingPower)
		if err != nil {
			return err
		}
		if err := bumpTally(&p, vote.Choice, power); err != nil {
			return err
		}

		if refreshOutcome != nil {
			refreshOutcome(&p)
		}

		if err := tx.Model(&Proposal{}).
			Where("proposal_id = ?", p.ProposalID).
			Updates(map[string]any{
				"votes_for":         p.VotesFor,
				"votes_against":     p.VotesAgainst,
				"votes_abstain":     p.VotesAbstain,
				"quorum_reached":    p.QuorumReached,
				"threshold_reached": p.ThresholdReached,
			}).Error; err != nil {
			return errors.Wrapf(err, "failed to persist tallies for proposal %s", p.ProposalID)
		}

		updated = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("proposal_id", vote.ProposalID).
		Str("voter", vote.Voter).
		Str("choice", vote.Choice).
		Str("power", vote.VotingPower).
		Msg("vote recorded")
	return updated, nil
}

// ParseTally parses a stored decimal string into a non-negative math.Int.
// Empty strings read as zero so freshly migrated rows behave.
func ParseTally(value string) (sdkmath.Int, error) {
	if value == "" {
		return sdkmath.ZeroInt(), nil
	}
	n, ok := sdkmath.NewIntFromString(value)
	if !ok || n.IsNegative() {
		return sdkmath.Int{}, errors.Wrapf(ErrInvalidTally, "value %q", value)
	}
	return n, nil
}

// bumpTally adds power to the bucket matching the vote choice using
// arbitrary-precision addition.
func bumpTally(p *Proposal, choice string, power sdkmath.Int) error {
	add := func(current string) (string, error) {
		n, err := ParseTally(current)
		if err != nil {
			return "", err
		}
		return n.Add(power).String(), nil
	}

	var err error
	switch choice {
	case ChoiceFor:
		p.VotesFor, err = add(p.VotesFor)
	case ChoiceAgainst:
		p.VotesAgainst, err = add(p.VotesAgainst)
	case ChoiceAbstain:
		p.VotesAbstain, err = add(p.VotesAbstain)
	default:
		return errors.Errorf("invalid vote choice %q", choice)
	}
	return err
}

// isUniqueViolation reports whether the error is a SQLite unique constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
