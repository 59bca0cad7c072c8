// internal/metrics/metrics.go
//
// Prometheus collectors for game sessions, registered on the default
// registry and served at /metrics.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GamesStarted counts successful StartGame transitions.
	GamesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "games_started_total",
			Help:      "Total number of games started",
		},
	)

	// GamesConcluded counts finished games.
	// Labels: outcome (win, lose), reason (guess, tries, timeout)
	GamesConcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "games_concluded_total",
			Help:      "Total number of concluded games by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	// GamesInProgress tracks sessions currently in play.
	GamesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "games_in_progress",
			Help:      "Number of sessions currently in progress",
		},
	)

	// ChecksDispatched counts word checks sent to the engine.
	ChecksDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "checks_dispatched_total",
			Help:      "Total number of word checks dispatched to the engine",
		},
	)

	// CheckRoundTrip measures dispatch-to-reply latency.
	CheckRoundTrip = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "check_round_trip_seconds",
			Help:      "Time from dispatching a word check to applying its reply",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RequestsRejected counts caller errors.
	// Labels: code (invalid_state, not_in_game, invalid_word, ...)
	RequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "requests_rejected_total",
			Help:      "Total number of rejected player requests by error code",
		},
		[]string{"code"},
	)

	// StaleEvents counts absorbed replies and timeouts.
	// Labels: kind (reply, timeout)
	StaleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamesession",
			Subsystem: "orchestrator",
			Name:      "stale_events_total",
			Help:      "Total number of stale engine replies and timeouts discarded",
		},
		[]string{"kind"},
	)
)
