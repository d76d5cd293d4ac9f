// Package metrics exposes Prometheus instrumentation for the governance
// engine. All collectors are registered on the default registry and served
// from the query server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalsCreated counts successfully registered proposals.
	ProposalsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "proposals_created_total",
		Help:      "Number of proposals registered on the ledger",
	})

	// VotesCast counts confirmed votes by choice.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "votes_cast_total",
		Help:      "Number of confirmed votes recorded, by choice",
	}, []string{"choice"})

	// StatusTransitions counts lifecycle transitions by target status.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "status_transitions_total",
		Help:      "Number of proposal status transitions, by resulting status",
	}, []string{"status"})

	// LedgerSubmissionFailures counts ledger submissions that failed or
	// reverted, by operation.
	LedgerSubmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "ledger_submission_failures_total",
		Help:      "Number of failed or reverted ledger submissions, by operation",
	}, []string{"operation"})

	// SweepRuns counts reconciliation sweep passes.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "sweep_runs_total",
		Help:      "Number of reconciliation sweep passes",
	})

	// SweepErrors counts proposals skipped during a sweep because of errors.
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "landgov",
		Name:      "sweep_errors_total",
		Help:      "Number of proposals skipped during sweeps due to errors",
	})
)
