package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gamesStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_games_started_total",
			Help: "Games started by room",
		},
		[]string{"room"},
	)

	gamesFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_games_finalized_total",
			Help: "Games reaching a terminal status",
		},
		[]string{"status"},
	)

	drawsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bingo_draws_total",
			Help: "Numbers drawn across all games",
		},
	)

	marksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_marks_total",
			Help: "Mark attempts by outcome",
		},
		[]string{"outcome"},
	)

	directorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_director_calls_total",
			Help: "Director invocations by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bingo_generation_duration_seconds",
			Help:    "Generation service latency including abandoned calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	rewardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingo_rewards_total",
			Help: "Reward decisions by outcome",
		},
		[]string{"outcome"},
	)

	remarkSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bingo_remark_subscribers",
			Help: "Open websocket subscribers waiting for remarks",
		},
	)
)
