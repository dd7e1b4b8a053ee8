package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xswap"

var (
	TransactionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evm",
		Name:      "transactions_total",
		Help:      "Transactions submitted, by chain and receipt status",
	}, []string{"chain", "status"})

	CirclePolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attestation",
		Name:      "circle_polls_total",
		Help:      "Circle attestation polls, by result",
	}, []string{"result"})

	GuardianFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attestation",
		Name:      "guardian_fetches_total",
		Help:      "Signed VAA lookups, by source and result",
	}, []string{"source", "result"})

	AttestationWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "attestation",
		Name:      "wait_seconds",
		Help:      "Time until an attestation became available",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600, 1200},
	}, []string{"source"})

	RelayChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "relay_checks_total",
		Help:      "Destination consumption checks while waiting for the relayer, by result",
	}, []string{"result"})

	RelayTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "relay_timeouts_total",
		Help:      "Swaps that fell back to manual redemption",
	})

	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "state_transitions_total",
		Help:      "Executor state transitions, by target state",
	}, []string{"state"})
)
