package installer

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setupd",
			Subsystem: "installer",
			Name:      "runs_total",
			Help:      "Installation runs by final result",
		},
		[]string{"result"},
	)

	progressGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "setupd",
			Subsystem: "installer",
			Name:      "progress",
			Help:      "Advisory progress of the current run (0-100)",
		},
	)

	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "setupd",
			Subsystem: "installer",
			Name:      "subscribers",
			Help:      "Live event subscriptions",
		},
	)

	eventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "setupd",
			Subsystem: "installer",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber queue was full",
		},
	)

	logLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "setupd",
			Subsystem: "installer",
			Name:      "log_lines_total",
			Help:      "Lines recorded in the log sink",
		},
		[]string{"level"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, progressGauge, subscribersGauge, eventsDroppedTotal, logLinesTotal)
}
