// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catchphrase_sessions_active",
		Help: "Connected sessions currently registered",
	})
	GroupsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catchphrase_groups_active",
		Help: "Groups currently registered",
	})
	GamesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catchphrase_games_started_total",
		Help: "Games started",
	})
	GamesEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catchphrase_games_ended_total",
		Help: "Games that ran to completion",
	})
	RoundsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchphrase_rounds_ended_total",
			Help: "Rounds ended, by reason",
		},
		[]string{"reason"},
	)
	CorrectWords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catchphrase_correct_words_total",
		Help: "Secret words guessed by answerers",
	})
	ClientErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchphrase_client_errors_total",
			Help: "Client errors returned to connections, by code",
		},
		[]string{"code"},
	)
	ControllerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catchphrase_controller_panics_total",
		Help: "Panics recovered while advancing a game",
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catchphrase_sweep_duration_seconds",
		Help:    "Time spent on one controller sweep",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

// Round end reasons.
const (
	ReasonCompleted = "completed"
	ReasonTimeout   = "timeout"
	ReasonForfeit   = "forfeit"
)

func init() {
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(GroupsActive)
	prometheus.MustRegister(GamesStarted)
	prometheus.MustRegister(GamesEnded)
	prometheus.MustRegister(RoundsEnded)
	prometheus.MustRegister(CorrectWords)
	prometheus.MustRegister(ClientErrors)
	prometheus.MustRegister(ControllerPanics)
	prometheus.MustRegister(SweepDuration)
}
