package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(pollsTotal.WithLabelValues("both_error"))
	ObservePoll(false, false)
	if got := testutil.ToFloat64(pollsTotal.WithLabelValues("both_error")); got != before+1 {
		t.Fatalf("expected both_error counter to increase, got %v", got)
	}

	recovery := 1.5
	before = testutil.ToFloat64(experimentsTotal.WithLabelValues("hybrid", OutcomeSuccess))
	ObserveExperiment("hybrid", 2*time.Second, "anything", &recovery)
	if got := testutil.ToFloat64(experimentsTotal.WithLabelValues("hybrid", OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected hybrid success counter to increase, got %v", got)
	}

	before = testutil.ToFloat64(faultInjectionsTotal.WithLabelValues("pod_kill", OutcomeError))
	ObserveFault("pod_kill", errors.New("boom"))
	if got := testutil.ToFloat64(faultInjectionsTotal.WithLabelValues("pod_kill", OutcomeError)); got != before+1 {
		t.Fatalf("expected fault error counter to increase, got %v", got)
	}

	SetExperimentInFlight(true)
	if got := testutil.ToFloat64(experimentInFlight); got != 1 {
		t.Fatalf("expected in-flight gauge 1, got %v", got)
	}
	SetExperimentInFlight(false)
	if got := testutil.ToFloat64(experimentInFlight); got != 0 {
		t.Fatalf("expected in-flight gauge 0, got %v", got)
	}
}
