package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful backend calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed backend calls, transport or backend-reported.
	OutcomeError = "error"
)

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ft_controller",
			Name:      "polls_total",
			Help:      "Poll cycles completed, partitioned by which halves succeeded.",
		},
		[]string{"outcome"},
	)

	experimentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ft_controller",
			Name:      "experiments_total",
			Help:      "Experiments finished, partitioned by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	experimentDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ft_controller",
			Name:      "experiment_seconds",
			Help:      "Wall-clock experiment duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	recoverySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ft_controller",
			Name:      "recovery_seconds",
			Help:      "Backend-reported recovery time per strategy.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"strategy"},
	)

	faultInjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ft_controller",
			Name:      "fault_injections_total",
			Help:      "Fault commands sent, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	experimentInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ft_controller",
			Name:      "experiment_in_flight",
			Help:      "1 while an experiment is pending or running.",
		},
	)
)

// Register attaches controller collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pollsTotal,
		experimentsTotal,
		experimentDurationSeconds,
		recoverySeconds,
		faultInjectionsTotal,
		experimentInFlight,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePoll records a poll cycle. The outcome is "ok", "health_error",
// "status_error" or "both_error".
func ObservePoll(healthOK, statusOK bool) {
	outcome := "ok"
	switch {
	case !healthOK && !statusOK:
		outcome = "both_error"
	case !healthOK:
		outcome = "health_error"
	case !statusOK:
		outcome = "status_error"
	}
	pollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExperiment records a finished experiment.
func ObserveExperiment(strategy string, duration time.Duration, outcome string, recovery *float64) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	experimentsTotal.WithLabelValues(strategy, label).Inc()
	if duration < 0 {
		duration = 0
	}
	experimentDurationSeconds.Observe(duration.Seconds())
	if recovery != nil {
		recoverySeconds.WithLabelValues(strategy).Observe(*recovery)
	}
}

// ObserveFault records a fault command outcome.
func ObserveFault(kind string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	faultInjectionsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetExperimentInFlight flips the in-flight gauge.
func SetExperimentInFlight(inFlight bool) {
	if inFlight {
		experimentInFlight.Set(1)
		return
	}
	experimentInFlight.Set(0)
}

// ExperimentInFlight returns the in-flight gauge as a collector, for reading its current value.
func ExperimentInFlight() prometheus.Collector {
	return experimentInFlight
}
