package experiment

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

func validationField(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Kind == utils.KindValidation {
		return appErr.Field
	}
	return ""
}

func TestValidateCheckpointInterval(t *testing.T) {
	for _, interval := range []int{0, 10, 14, 16, 125, 130} {
		_, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyCheckpointing, CheckpointIntervalSeconds: interval, WorkloadSize: 100})
		if validationField(err) != "checkpointIntervalSeconds" {
			t.Fatalf("interval %d: expected checkpointIntervalSeconds error, got %v", interval, err)
		}
	}
	for interval := 15; interval <= 120; interval += 15 {
		cfg, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyHybrid, CheckpointIntervalSeconds: interval, ReplicationFactor: 3, WorkloadSize: 100})
		if err != nil {
			t.Fatalf("interval %d: unexpected error %v", interval, err)
		}
		if cfg.CheckpointIntervalSeconds != interval || !cfg.TriggerCheckpoint {
			t.Fatalf("interval %d: unexpected configuration %+v", interval, cfg)
		}
	}
}

func TestValidateReplicationFactor(t *testing.T) {
	for _, factor := range []int{0, 1, 4, 6} {
		_, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyReplication, ReplicationFactor: factor, WorkloadSize: 100})
		if validationField(err) != "replicationFactor" {
			t.Fatalf("factor %d: expected replicationFactor error, got %v", factor, err)
		}
	}
	for _, factor := range []int{2, 3, 5} {
		if _, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyReplication, ReplicationFactor: factor, WorkloadSize: 100}); err != nil {
			t.Fatalf("factor %d: unexpected error %v", factor, err)
		}
	}
}

func TestValidateInertFieldsAreCarried(t *testing.T) {
	cfg, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyBaseline, CheckpointIntervalSeconds: 7, ReplicationFactor: 4, WorkloadSize: 50})
	if err != nil {
		t.Fatalf("baseline should ignore inapplicable fields: %v", err)
	}
	if cfg.CheckpointIntervalSeconds != 7 || cfg.ReplicationFactor != 4 {
		t.Fatalf("inert fields not carried: %+v", cfg)
	}
	if !cfg.CheckpointInert() || !cfg.ReplicationInert() || cfg.TriggerCheckpoint {
		t.Fatalf("expected both fields inert for baseline: %+v", cfg)
	}
}

func TestValidateRejectsStrategyAndWorkload(t *testing.T) {
	if _, err := Validate(models.ConfigurationDraft{Strategy: "erasure", WorkloadSize: 1}); validationField(err) != "strategy" {
		t.Fatalf("expected strategy error, got %v", err)
	}
	if _, err := Validate(models.ConfigurationDraft{Strategy: models.StrategyBaseline, WorkloadSize: 0}); validationField(err) != "workloadSize" {
		t.Fatalf("expected workloadSize error, got %v", err)
	}
}

func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	strategies := gen.OneConstOf(models.StrategyBaseline, models.StrategyCheckpointing, models.StrategyReplication, models.StrategyHybrid)

	properties.Property("accepted configurations satisfy every rule for their strategy", prop.ForAll(
		func(strategy models.Strategy, interval, factor, workload int) bool {
			draft := models.ConfigurationDraft{Strategy: strategy, CheckpointIntervalSeconds: interval, ReplicationFactor: factor, WorkloadSize: workload}
			cfg, err := Validate(draft)
			if err != nil {
				return validationField(err) != ""
			}
			if workload <= 0 {
				return false
			}
			if strategy.UsesCheckpointing() && (interval < 15 || interval > 120 || interval%15 != 0) {
				return false
			}
			if strategy.UsesReplication() && !validFactor(factor) {
				return false
			}
			return cfg.Strategy == strategy && cfg.CheckpointIntervalSeconds == interval &&
				cfg.ReplicationFactor == factor && cfg.WorkloadSize == workload
		},
		strategies,
		gen.IntRange(-30, 150),
		gen.IntRange(0, 7),
		gen.IntRange(-5, 500),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(strategy models.Strategy, interval, factor, workload int) bool {
			draft := models.ConfigurationDraft{Strategy: strategy, CheckpointIntervalSeconds: interval, ReplicationFactor: factor, WorkloadSize: workload}
			a, errA := Validate(draft)
			b, errB := Validate(draft)
			return a == b && (errA == nil) == (errB == nil)
		},
		strategies,
		gen.IntRange(-30, 150),
		gen.IntRange(0, 7),
		gen.IntRange(-5, 500),
	))

	properties.TestingRun(t)
}
