package governance

import (
	"context"
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cadastrelabs/landgov/contentstore"
	engerrors "github.com/cadastrelabs/landgov/errors"
	"github.com/cadastrelabs/landgov/ledger"
	"github.com/cadastrelabs/landgov/metrics"
	"github.com/cadastrelabs/landgov/notify"
	"github.com/cadastrelabs/landgov/store"
)

const defaultConfirmTimeout = 120 * time.Second

// Defaults are the governance parameters applied to proposals that do not
// override them.
type Defaults struct {
	VotingPeriod     time.Duration
	TimelockDelay    time.Duration
	QuorumRequired   sdkmath.Int
	ThresholdPercent float64
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Store          *store.ProposalStore
	Gateway        ledger.Gateway
	Publisher      contentstore.Publisher
	Notifier       notify.Notifier
	Defaults       Defaults
	ConfirmTimeout time.Duration
	Logger         zerolog.Logger
}

// Controller orchestrates the proposal state machine. It exclusively owns
// status transitions; tallies are mutated only through the store, and every
// ledger wait happens without any in-process lock held.
type Controller struct {
	store     *store.ProposalStore
	gateway   ledger.Gateway
	publisher contentstore.Publisher
	notifier  notify.Notifier
	defaults  Defaults

	confirmTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewController creates a lifecycle controller.
func NewController(cfg ControllerConfig) *Controller {
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	return &Controller{
		store:          cfg.Store,
		gateway:        cfg.Gateway,
		publisher:      cfg.Publisher,
		notifier:       cfg.Notifier,
		defaults:       cfg.Defaults,
		confirmTimeout: timeout,
		logger:         cfg.Logger.With().Str("component", "lifecycle_controller").Logger(),
		now:            time.Now,
	}
}

// CreateProposal validates, publishes and registers a new proposal. The
// record is persisted as PENDING before the ledger submission so a failed
// registration leaves a resubmittable record behind; registration is never
// retried automatically.
func (c *Controller) CreateProposal(ctx context.Context, req CreateProposalRequest) (*store.Proposal, error) {
	if !common.IsHexAddress(req.Proposer) {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "proposer is not a valid address", nil)
	}
	if req.Title == "" {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "title must not be empty", nil)
	}
	if req.Batch.Len() == 0 {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "action batch must not be empty", nil)
	}

	quorum := req.QuorumRequired
	if quorum.IsNil() {
		quorum = c.defaults.QuorumRequired
	}
	if quorum.IsNil() || quorum.IsNegative() {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "quorum must be a non-negative integer", nil)
	}
	threshold := req.ThresholdPercent
	if threshold == 0 {
		threshold = c.defaults.ThresholdPercent
	}
	if threshold <= 0 || threshold > 100 {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "threshold percent must be in (0, 100]", nil)
	}
	timelock := req.TimelockDelay
	if timelock <= 0 {
		timelock = c.defaults.TimelockDelay
	}

	proposer := common.HexToAddress(req.Proposer).Hex()
	now := c.now().UTC()

	bodyRef, err := c.publisher.Publish(ctx, proposalBody{
		Type:        req.ProposalType,
		Title:       req.Title,
		Description: req.Description,
		Proposer:    proposer,
		Actions:     bodyActions(req.Batch),
		CreatedAt:   now,
	})
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeContentStore, "create", "failed to publish proposal body", err)
	}

	chainDescription := contentstore.Ref(bodyRef)
	descriptionHash := crypto.Keccak256Hash([]byte(chainDescription)).Hex()

	targets, values, signatures, calldatas, err := req.Batch.EncodeColumns()
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeInternal, "create", "failed to encode action batch", err)
	}
	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "create", "invalid metadata", err)
	}

	proposal := &store.Proposal{
		ProposalID:       uuid.NewString(),
		ProposalType:     req.ProposalType,
		Proposer:         proposer,
		Title:            req.Title,
		Description:      req.Description,
		BodyRef:          bodyRef,
		ChainDescription: chainDescription,
		DescriptionHash:  descriptionHash,
		Targets:          targets,
		RawValues:        values,
		Signatures:       signatures,
		Calldatas:        calldatas,
		Status:           store.StatusPending,
		QuorumRequired:   quorum.String(),
		ThresholdPercent: threshold,
		TimelockDelay:    int64(timelock / time.Second),
		ExpirationAt:     req.ExpirationAt,
		Metadata:         metadata,
	}
	if err := c.store.CreateProposal(proposal); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "create", "failed to persist proposal", err)
	}

	result, err := c.register(ctx, proposal, req.Batch)
	if err != nil {
		// Record stays PENDING; the caller resubmits deliberately.
		metrics.LedgerSubmissionFailures.WithLabelValues("register").Inc()
		return proposal, err
	}

	activated, err := c.activate(ctx, proposal, result)
	if err != nil {
		return proposal, err
	}

	metrics.ProposalsCreated.Inc()
	metrics.StatusTransitions.WithLabelValues(store.StatusActive).Inc()
	c.notifier.Notify(ctx, notify.Event{
		ProposalID: activated.ProposalID,
		ExternalID: activated.ExternalID,
		Actor:      proposer,
		Kind:       notify.KindProposalCreated,
	})
	return activated, nil
}

// register submits the proposal to the ledger, bounded by the confirmation
// timeout.
func (c *Controller) register(ctx context.Context, p *store.Proposal, batch ActionBatch) (*ledger.RegisterResult, error) {
	subCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	result, err := c.gateway.RegisterProposal(subCtx, batch.Call(), p.ChainDescription)
	if err != nil {
		if subCtx.Err() != nil {
			return nil, engerrors.New(engerrors.ErrCodeTimeout, "create",
				"registration not confirmed in time; inspect the ledger before resubmitting", err).
				WithContext("proposal_id", p.ProposalID)
		}
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "create", "ledger registration failed", err).
			WithContext("proposal_id", p.ProposalID)
	}
	return result, nil
}

// activate records the confirmed registration, captures the voting power
// snapshot, and moves the proposal to ACTIVE.
func (c *Controller) activate(ctx context.Context, p *store.Proposal, result *ledger.RegisterResult) (*store.Proposal, error) {
	total, err := c.gateway.TotalVotingPowerAt(ctx, result.VotingStartBlock)
	if err != nil {
		// Keep the external id so a follow-up activation does not re-register.
		if uerr := c.store.UpdateFields(p.ProposalID, map[string]any{
			"external_id": result.ExternalID,
		}); uerr != nil {
			c.logger.Error().Err(uerr).Str("proposal_id", p.ProposalID).Msg("failed to record external id")
		}
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "create",
			"registered but failed to capture voting power snapshot", err).
			WithContext("proposal_id", p.ProposalID)
	}

	now := c.now().UTC()
	votingEnd := now.Add(c.defaults.VotingPeriod)
	moved, err := c.store.TransitionStatus(p.ProposalID,
		[]string{store.StatusPending}, store.StatusActive,
		map[string]any{
			"external_id":        result.ExternalID,
			"voting_start_block": result.VotingStartBlock,
			"voting_end_block":   result.VotingEndBlock,
			"voting_start_at":    now,
			"voting_end_at":      votingEnd,
			"total_voting_power": sdkmath.NewIntFromBigInt(total).String(),
		})
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "create", "failed to activate proposal", err)
	}
	if !moved {
		// Expired or cancelled while registration was confirming; the
		// guarded update keeps that outcome.
		c.logger.Warn().Str("proposal_id", p.ProposalID).Msg("proposal left PENDING before activation completed")
	}
	return c.store.GetProposal(p.ProposalID)
}

// UpdateProposal applies the narrow set of mutable fields while the proposal
// is still undecided. Title and description changes re-publish the body and
// update its pointer; the on-chain description and hash never change.
func (c *Controller) UpdateProposal(ctx context.Context, proposalID string, req UpdateProposalRequest) (*store.Proposal, error) {
	p, err := c.getProposal("update", proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != store.StatusPending && p.Status != store.StatusActive {
		return nil, engerrors.New(engerrors.ErrCodeState, "update",
			"proposal can no longer be updated", nil).
			WithContext("status", p.Status)
	}

	fields := make(map[string]any)
	title, description := p.Title, p.Description
	if req.Title != nil {
		if *req.Title == "" {
			return nil, engerrors.New(engerrors.ErrCodeValidation, "update", "title must not be empty", nil)
		}
		title = *req.Title
		fields["title"] = title
	}
	if req.Description != nil {
		description = *req.Description
		fields["description"] = description
	}
	if req.VotingEndAt != nil {
		fields["voting_end_at"] = req.VotingEndAt.UTC()
	}
	if req.Metadata != nil {
		merged, err := mergeMetadata(p.Metadata, req.Metadata)
		if err != nil {
			return nil, engerrors.New(engerrors.ErrCodeValidation, "update", "invalid metadata", err)
		}
		fields["metadata"] = merged
	}
	if len(fields) == 0 {
		return p, nil
	}

	if req.Title != nil || req.Description != nil {
		batch, err := DecodeActionBatch(p.Targets, p.RawValues, p.Signatures, p.Calldatas)
		if err != nil {
			return nil, engerrors.New(engerrors.ErrCodeInternal, "update", "failed to decode stored action batch", err)
		}
		bodyRef, err := c.publisher.Publish(ctx, proposalBody{
			Type:        p.ProposalType,
			Title:       title,
			Description: description,
			Proposer:    p.Proposer,
			Actions:     bodyActions(batch),
			CreatedAt:   p.CreatedAt.UTC(),
		})
		if err != nil {
			return nil, engerrors.New(engerrors.ErrCodeContentStore, "update", "failed to re-publish proposal body", err)
		}
		fields["body_ref"] = bodyRef
	}

	if err := c.store.UpdateFields(proposalID, fields); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "update", "failed to update proposal", err)
	}
	return c.store.GetProposal(proposalID)
}

// CastVote validates eligibility, submits the ballot to the ledger, and
// mutates local tallies only after the ledger confirmed it. A confirmation
// timeout is indeterminate: nothing is mutated and the caller must read the
// ledger before retrying.
func (c *Controller) CastVote(ctx context.Context, proposalID, voter string, choice VoteChoice, reason string) (*store.Vote, error) {
	if !common.IsHexAddress(voter) {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "vote", "voter is not a valid address", nil)
	}
	voterAddr := common.HexToAddress(voter)

	p, err := c.getProposal("vote", proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != store.StatusActive {
		return nil, engerrors.New(engerrors.ErrCodeState, "vote", "proposal is not open for voting", nil).
			WithContext("status", p.Status)
	}
	now := c.now().UTC()
	if p.VotingEndAt == nil || !now.Before(*p.VotingEndAt) {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "vote", "voting window has closed", nil)
	}

	voted, err := c.store.HasVote(proposalID, voterAddr.Hex())
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "vote", "failed to check prior vote", err)
	}
	if voted {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "vote", "voter has already voted on this proposal", nil)
	}

	power, err := c.gateway.VotingPowerAt(ctx, voterAddr, p.VotingStartBlock)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "vote", "failed to query voting power", err)
	}
	if power.Sign() <= 0 {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "vote", "voter had no voting power at the snapshot", nil)
	}

	txRef, err := c.gateway.CastVote(ctx, p.ExternalID, uint8(choice), reason)
	if err != nil {
		metrics.LedgerSubmissionFailures.WithLabelValues("vote").Inc()
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "vote", "ledger vote submission failed", err)
	}

	conf, err := c.awaitConfirmation(ctx, "vote", txRef)
	if err != nil {
		return nil, err
	}

	vote := &store.Vote{
		ProposalID:  proposalID,
		Voter:       voterAddr.Hex(),
		Choice:      choice.String(),
		VotingPower: sdkmath.NewIntFromBigInt(power).String(),
		CastAt:      now,
		BlockNumber: conf.BlockNumber,
		TxRef:       txRef,
		Reason:      reason,
	}
	if _, err := c.store.AddVote(vote, c.refreshOutcomeFlags); err != nil {
		if engerrors.Is(err, store.ErrDuplicateVote) {
			return nil, engerrors.New(engerrors.ErrCodeValidation, "vote", "voter has already voted on this proposal", err)
		}
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "vote", "failed to record confirmed vote", err)
	}

	metrics.VotesCast.WithLabelValues(vote.Choice).Inc()
	c.notifier.Notify(ctx, notify.Event{
		ProposalID: proposalID,
		ExternalID: p.ExternalID,
		Actor:      vote.Voter,
		Kind:       notify.KindVoteCast,
	})
	return vote, nil
}

// refreshOutcomeFlags keeps the cached quorum/threshold booleans consistent
// with the tallies inside the store's vote transaction. Status is never
// touched here; decision-driven transitions only happen at window close.
func (c *Controller) refreshOutcomeFlags(p *store.Proposal) {
	snap, err := SnapshotFromProposal(p)
	if err != nil {
		c.logger.Error().Err(err).Str("proposal_id", p.ProposalID).Msg("failed to parse tallies for outcome refresh")
		return
	}
	participating := snap.VotesFor.Add(snap.VotesAgainst).Add(snap.VotesAbstain)
	if !snap.TotalVotingPower.IsNil() && snap.TotalVotingPower.IsPositive() && participating.GT(snap.TotalVotingPower) {
		c.logger.Warn().
			Str("proposal_id", p.ProposalID).
			Str("participating", participating.String()).
			Str("snapshot", snap.TotalVotingPower.String()).
			Msg("tallies exceed voting power snapshot")
	}
	out := EvaluateOutcome(snap)
	p.QuorumReached = out.QuorumReached
	p.ThresholdReached = out.ThresholdReached
}

// CloseVoting runs the window-close outcome determination. Re-running it on
// an already-decided proposal is a silent no-op: the guarded transition only
// fires from ACTIVE, so a concurrent sweep or caller cannot re-derive a
// different answer.
func (c *Controller) CloseVoting(ctx context.Context, proposalID string) (*store.Proposal, error) {
	p, err := c.getProposal("close", proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != store.StatusActive {
		if p.Status == store.StatusPending {
			return nil, engerrors.New(engerrors.ErrCodeState, "close", "voting has not begun", nil)
		}
		return p, nil
	}
	now := c.now().UTC()
	if p.VotingEndAt == nil || now.Before(*p.VotingEndAt) {
		return nil, engerrors.New(engerrors.ErrCodeState, "close", "voting window is still open", nil)
	}

	snap, err := SnapshotFromProposal(p)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeInternal, "close", "failed to parse stored tallies", err)
	}
	out := EvaluateOutcome(snap)

	moved, err := c.store.TransitionStatus(proposalID,
		[]string{store.StatusActive}, out.Decision,
		map[string]any{
			"quorum_reached":    out.QuorumReached,
			"threshold_reached": out.ThresholdReached,
		})
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "close", "failed to record outcome", err)
	}
	if moved {
		metrics.StatusTransitions.WithLabelValues(out.Decision).Inc()
		c.logger.Info().
			Str("proposal_id", proposalID).
			Str("decision", out.Decision).
			Bool("quorum_reached", out.QuorumReached).
			Bool("threshold_reached", out.ThresholdReached).
			Msg("voting window closed")
	}
	return c.store.GetProposal(proposalID)
}

// QueueProposal submits the timelock queue instruction for a succeeded
// proposal. The stored on-chain description must still hash to the
// creation-time value; a mismatch means the record was tampered with and the
// transition is refused.
func (c *Controller) QueueProposal(ctx context.Context, proposalID string) (*store.Proposal, error) {
	p, err := c.getProposal("queue", proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status == store.StatusQueued {
		return nil, engerrors.New(engerrors.ErrCodeState, "queue", "proposal is already queued", nil)
	}
	if p.Status != store.StatusSucceeded {
		return nil, engerrors.New(engerrors.ErrCodeState, "queue", "only succeeded proposals can be queued", nil).
			WithContext("status", p.Status)
	}

	call, descHash, err := c.ledgerCall("queue", p)
	if err != nil {
		return nil, err
	}

	txRef, err := c.gateway.QueueProposal(ctx, call, descHash)
	if err != nil {
		metrics.LedgerSubmissionFailures.WithLabelValues("queue").Inc()
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "queue", "ledger queue submission failed", err)
	}
	conf, err := c.awaitConfirmation(ctx, "queue", txRef)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	eta := now.Add(time.Duration(p.TimelockDelay) * time.Second)
	if conf.ETA != nil {
		eta = conf.ETA.UTC()
	}

	moved, err := c.store.TransitionStatus(proposalID,
		[]string{store.StatusSucceeded}, store.StatusQueued,
		map[string]any{
			"queued_at":             now,
			"earliest_execution_at": eta,
		})
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "queue", "failed to record queue transition", err)
	}
	if moved {
		metrics.StatusTransitions.WithLabelValues(store.StatusQueued).Inc()
		c.notifier.Notify(ctx, notify.Event{
			ProposalID: proposalID,
			ExternalID: p.ExternalID,
			Actor:      p.Proposer,
			Kind:       notify.KindProposalQueued,
		})
	}
	return c.store.GetProposal(proposalID)
}

// ExecuteProposal executes a queued proposal once the timelock has elapsed.
// This is the only transition the engine treats as irreversible.
func (c *Controller) ExecuteProposal(ctx context.Context, proposalID, executorNote string) (*store.Proposal, error) {
	p, err := c.getProposal("execute", proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status == store.StatusExecuted {
		return nil, engerrors.New(engerrors.ErrCodeState, "execute", "proposal is already executed", nil)
	}
	if p.Status != store.StatusQueued {
		return nil, engerrors.New(engerrors.ErrCodeState, "execute", "only queued proposals can be executed", nil).
			WithContext("status", p.Status)
	}
	if p.EarliestExecutionAt == nil {
		return nil, engerrors.New(engerrors.ErrCodeConsistency, "execute", "queued proposal has no execution eligibility time", nil)
	}
	now := c.now().UTC()
	if now.Before(*p.EarliestExecutionAt) {
		return nil, &TimelockActiveError{Remaining: p.EarliestExecutionAt.Sub(now)}
	}

	call, descHash, err := c.ledgerCall("execute", p)
	if err != nil {
		return nil, err
	}

	txRef, err := c.gateway.ExecuteProposal(ctx, call, descHash)
	if err != nil {
		metrics.LedgerSubmissionFailures.WithLabelValues("execute").Inc()
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "execute", "ledger execution submission failed", err)
	}
	if _, err := c.awaitConfirmation(ctx, "execute", txRef); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"executed_at":      now,
		"execution_tx_ref": txRef,
	}
	if executorNote != "" {
		merged, err := mergeMetadata(p.Metadata, map[string]string{"executor_note": executorNote})
		if err == nil {
			fields["metadata"] = merged
		}
	}
	moved, err := c.store.TransitionStatus(proposalID,
		[]string{store.StatusQueued}, store.StatusExecuted, fields)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "execute", "failed to record execution", err)
	}
	if !moved {
		return nil, engerrors.New(engerrors.ErrCodeState, "execute", "proposal is already executed", nil)
	}

	metrics.StatusTransitions.WithLabelValues(store.StatusExecuted).Inc()
	c.notifier.Notify(ctx, notify.Event{
		ProposalID: proposalID,
		ExternalID: p.ExternalID,
		Actor:      p.Proposer,
		Kind:       notify.KindProposalExecuted,
	})
	return c.store.GetProposal(proposalID)
}

// CancelProposal cancels an undecided or not-yet-executed proposal. A
// PENDING proposal that never reached the ledger cancels locally; otherwise
// the cancellation carries the same call tuple and description hash used at
// creation, since that is how the ledger identifies the proposal.
func (c *Controller) CancelProposal(ctx context.Context, proposalID, actor, reason string) (*store.Proposal, error) {
	if reason == "" {
		return nil, engerrors.New(engerrors.ErrCodeValidation, "cancel", "cancellation reason must not be empty", nil)
	}
	p, err := c.getProposal("cancel", proposalID)
	if err != nil {
		return nil, err
	}
	cancellable := map[string]bool{
		store.StatusPending:   true,
		store.StatusActive:    true,
		store.StatusSucceeded: true,
		store.StatusQueued:    true,
	}
	if !cancellable[p.Status] {
		return nil, engerrors.New(engerrors.ErrCodeState, "cancel", "proposal can no longer be cancelled", nil).
			WithContext("status", p.Status)
	}

	if p.ExternalID != "" {
		call, descHash, err := c.ledgerCall("cancel", p)
		if err != nil {
			return nil, err
		}
		txRef, err := c.gateway.CancelProposal(ctx, call, descHash)
		if err != nil {
			metrics.LedgerSubmissionFailures.WithLabelValues("cancel").Inc()
			return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, "cancel", "ledger cancellation failed", err)
		}
		if _, err := c.awaitConfirmation(ctx, "cancel", txRef); err != nil {
			return nil, err
		}
	}

	moved, err := c.store.TransitionStatus(proposalID,
		[]string{store.StatusPending, store.StatusActive, store.StatusSucceeded, store.StatusQueued},
		store.StatusCancelled,
		map[string]any{
			"cancelled_at":        c.now().UTC(),
			"cancellation_reason": reason,
		})
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeDatabase, "cancel", "failed to record cancellation", err)
	}
	if moved {
		metrics.StatusTransitions.WithLabelValues(store.StatusCancelled).Inc()
		c.notifier.Notify(ctx, notify.Event{
			ProposalID: proposalID,
			ExternalID: p.ExternalID,
			Actor:      actor,
			Kind:       notify.KindProposalCancelled,
		})
	}
	return c.store.GetProposal(proposalID)
}

// awaitConfirmation bounds the confirmation wait and maps the three failure
// shapes: unreachable, indeterminate timeout, and mined-but-reverted.
func (c *Controller) awaitConfirmation(ctx context.Context, op, txRef string) (*ledger.Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	conf, err := c.gateway.AwaitConfirmation(waitCtx, txRef)
	if err != nil {
		if waitCtx.Err() != nil {
			return nil, engerrors.New(engerrors.ErrCodeTimeout, op,
				"confirmation not observed in time; inspect the ledger before retrying", err).
				WithContext("tx_ref", txRef)
		}
		metrics.LedgerSubmissionFailures.WithLabelValues(op).Inc()
		return nil, engerrors.New(engerrors.ErrCodeLedgerSubmit, op, "failed to await confirmation", err).
			WithContext("tx_ref", txRef)
	}
	if !conf.Success {
		metrics.LedgerSubmissionFailures.WithLabelValues(op).Inc()
		return nil, engerrors.New(engerrors.ErrCodeLedgerRevert, op, "ledger transaction reverted", nil).
			WithContext("tx_ref", txRef)
	}
	return conf, nil
}

// ledgerCall rebuilds the creation-time call tuple and verifies the
// description hash before any queue/execute/cancel submission.
func (c *Controller) ledgerCall(op string, p *store.Proposal) (ledger.ProposalCall, [32]byte, error) {
	computed := crypto.Keccak256Hash([]byte(p.ChainDescription))
	if computed.Hex() != p.DescriptionHash {
		return ledger.ProposalCall{}, [32]byte{}, engerrors.New(engerrors.ErrCodeConsistency, op,
			"stored description no longer matches the hash submitted at creation", nil).
			WithContext("proposal_id", p.ProposalID)
	}
	batch, err := DecodeActionBatch(p.Targets, p.RawValues, p.Signatures, p.Calldatas)
	if err != nil {
		return ledger.ProposalCall{}, [32]byte{}, engerrors.New(engerrors.ErrCodeConsistency, op,
			"stored action batch is corrupt", err).
			WithContext("proposal_id", p.ProposalID)
	}
	return batch.Call(), computed, nil
}

func (c *Controller) getProposal(op, proposalID string) (*store.Proposal, error) {
	p, err := c.store.GetProposal(proposalID)
	if err != nil {
		if engerrors.Is(err, store.ErrProposalNotFound) {
			return nil, engerrors.New(engerrors.ErrCodeNotFound, op, "proposal not found", err)
		}
		return nil, engerrors.New(engerrors.ErrCodeDatabase, op, "failed to load proposal", err)
	}
	return p, nil
}

// proposalBody is the document published to content-addressed storage.
type proposalBody struct {
	Type        string       `json:"type,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Proposer    string       `json:"proposer"`
	Actions     []bodyAction `json:"actions"`
	CreatedAt   time.Time    `json:"created_at"`
}

type bodyAction struct {
	Target    string `json:"target"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
	Calldata  string `json:"calldata"`
}

func bodyActions(batch ActionBatch) []bodyAction {
	actions := make([]bodyAction, batch.Len())
	for i := range actions {
		actions[i] = bodyAction{
			Target:    batch.Targets[i].Hex(),
			Value:     batch.Values[i].String(),
			Signature: batch.Signatures[i],
			Calldata:  "0x" + common.Bytes2Hex(batch.Calldatas[i]),
		}
	}
	return actions
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func mergeMetadata(existing string, extra map[string]string) (string, error) {
	merged := make(map[string]string)
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return "", err
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
