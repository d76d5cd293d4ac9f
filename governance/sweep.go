package governance

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadastrelabs/landgov/metrics"
	"github.com/cadastrelabs/landgov/store"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 100
)

// SweeperConfig holds configuration for the reconciliation sweep.
type SweeperConfig struct {
	Store      *store.ProposalStore
	Controller *Controller
	Interval   time.Duration
	BatchSize  int
	Logger     zerolog.Logger
}

// Sweeper is the recurring reconciliation pass that advances proposals whose
// voting window or expiration date has elapsed without waiting for a user
// action. Every transition it applies is a guarded no-op when the proposal
// already moved, so the sweep is safe to run concurrently with vote
// submission and with itself.
type Sweeper struct {
	store      *store.ProposalStore
	controller *Controller
	interval   time.Duration
	batchSize  int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSweeper creates a reconciliation sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Sweeper{
		store:      cfg.Store,
		controller: cfg.Controller,
		interval:   interval,
		batchSize:  batch,
		logger:     cfg.Logger.With().Str("component", "reconciliation_sweep").Logger(),
		now:        time.Now,
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("starting reconciliation sweep")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("context cancelled, stopping reconciliation sweep")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Expiration runs first so a proposal
// whose expiration date and voting window elapsed in the same interval ends
// up EXPIRED, not decided. Each proposal is processed independently; one
// failure never aborts the pass for the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	metrics.SweepRuns.Inc()
	now := s.now().UTC()

	expired := s.sweepExpired(now)
	closed := s.sweepEndedWindows(ctx, now)

	if expired > 0 || closed > 0 {
		s.logger.Info().
			Int("expired", expired).
			Int("windows_closed", closed).
			Msg("reconciliation sweep advanced proposals")
	}
}

// sweepExpired forces PENDING/ACTIVE proposals past their expiration date to
// EXPIRED.
func (s *Sweeper) sweepExpired(now time.Time) int {
	proposals, err := s.store.ExpiredPendingOrActive(now, s.batchSize)
	if err != nil {
		metrics.SweepErrors.Inc()
		s.logger.Error().Err(err).Msg("failed to query expired proposals")
		return 0
	}

	swept := 0
	for _, p := range proposals {
		moved, err := s.store.TransitionStatus(p.ProposalID,
			[]string{store.StatusPending, store.StatusActive},
			store.StatusExpired, nil)
		if err != nil {
			metrics.SweepErrors.Inc()
			s.logger.Error().Err(err).Str("proposal_id", p.ProposalID).Msg("failed to expire proposal")
			continue
		}
		if moved {
			metrics.StatusTransitions.WithLabelValues(store.StatusExpired).Inc()
			swept++
		}
	}
	return swept
}

// sweepEndedWindows runs the window-close outcome determination for ACTIVE
// proposals whose voting window has elapsed.
func (s *Sweeper) sweepEndedWindows(ctx context.Context, now time.Time) int {
	proposals, err := s.store.ActiveWithVotingEnded(now, s.batchSize)
	if err != nil {
		metrics.SweepErrors.Inc()
		s.logger.Error().Err(err).Msg("failed to query ended voting windows")
		return 0
	}

	closed := 0
	for _, p := range proposals {
		if _, err := s.controller.CloseVoting(ctx, p.ProposalID); err != nil {
			metrics.SweepErrors.Inc()
			s.logger.Error().Err(err).Str("proposal_id", p.ProposalID).Msg("failed to close voting window")
			continue
		}
		closed++
	}
	return closed
}
