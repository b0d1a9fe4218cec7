package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Manager struct {
	// counters
	CounterRequests          *prometheus.CounterVec
	CounterTelegramAuth      *prometheus.CounterVec
	CounterWorkoutsStarted   prometheus.Counter
	CounterWorkoutsCompleted prometheus.Counter
	CounterPointsAwarded     prometheus.Counter
	CounterAchievements      *prometheus.CounterVec

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

func NewTestManager() *Manager {
	return NewManager("fittrainer", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fittrainer", "test_server", reg), reg
}

// NewManager registers every collector on reg. When reg is also a Gatherer
// the Handler serves it; otherwise the default gatherer is used.
func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "route", "status"})
	counterTelegramAuth := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "telegram_auth",
		Help:      "Telegram init-data authentications by result",
	}, []string{"result"})
	counterWorkoutsStarted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_started",
		Help:      "The total number of workouts started",
	})
	counterWorkoutsCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_completed",
		Help:      "The total number of workouts completed",
	})
	counterPointsAwarded := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "points_awarded",
		Help:      "Points awarded for completed workouts",
	})
	counterAchievements := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "achievements_unlocked",
		Help:      "Milestone achievements unlocked on completion",
	}, []string{"achievement"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})

	histReqDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
				0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of requests in seconds",
		},
		[]string{"route"},
	)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Manager{
		CounterRequests:          counterRequests,
		CounterTelegramAuth:      counterTelegramAuth,
		CounterWorkoutsStarted:   counterWorkoutsStarted,
		CounterWorkoutsCompleted: counterWorkoutsCompleted,
		CounterPointsAwarded:     counterPointsAwarded,
		CounterAchievements:      counterAchievements,
		GaugeRequests:            gaugeRequests,
		HistRequestDuration:      histReqDuration,
		gatherer:                 gatherer,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
