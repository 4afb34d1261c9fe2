package experiment

import (
	"fmt"

	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

const (
	MinCheckpointIntervalSeconds  = 15
	MaxCheckpointIntervalSeconds  = 120
	CheckpointIntervalStepSeconds = 15
)

// ReplicationFactors lists the accepted replication factors.
var ReplicationFactors = []int{2, 3, 5}

// Validate turns a draft into an immutable configuration or returns a
// validation error naming the first offending field. Fields that do not apply
// to the selected strategy are carried unchecked.
func Validate(draft models.ConfigurationDraft) (models.ExperimentConfiguration, error) {
	if !draft.Strategy.Valid() {
		return models.ExperimentConfiguration{}, utils.NewValidationError("strategy",
			fmt.Sprintf("must be one of %v, got %q", models.Strategies, draft.Strategy))
	}

	if draft.Strategy.UsesCheckpointing() {
		interval := draft.CheckpointIntervalSeconds
		if interval < MinCheckpointIntervalSeconds || interval > MaxCheckpointIntervalSeconds {
			return models.ExperimentConfiguration{}, utils.NewValidationError("checkpointIntervalSeconds",
				fmt.Sprintf("must be within [%d,%d], got %d", MinCheckpointIntervalSeconds, MaxCheckpointIntervalSeconds, interval))
		}
		if interval%CheckpointIntervalStepSeconds != 0 {
			return models.ExperimentConfiguration{}, utils.NewValidationError("checkpointIntervalSeconds",
				fmt.Sprintf("must be a multiple of %d, got %d", CheckpointIntervalStepSeconds, interval))
		}
	}

	if draft.Strategy.UsesReplication() && !validFactor(draft.ReplicationFactor) {
		return models.ExperimentConfiguration{}, utils.NewValidationError("replicationFactor",
			fmt.Sprintf("must be one of %v, got %d", ReplicationFactors, draft.ReplicationFactor))
	}

	if draft.WorkloadSize <= 0 {
		return models.ExperimentConfiguration{}, utils.NewValidationError("workloadSize",
			fmt.Sprintf("must be > 0, got %d", draft.WorkloadSize))
	}

	return models.ExperimentConfiguration{
		Strategy:                  draft.Strategy,
		CheckpointIntervalSeconds: draft.CheckpointIntervalSeconds,
		ReplicationFactor:         draft.ReplicationFactor,
		WorkloadSize:              draft.WorkloadSize,
		TriggerCheckpoint:         draft.Strategy.UsesCheckpointing(),
	}, nil
}

func validFactor(factor int) bool {
	for _, f := range ReplicationFactors {
		if f == factor {
			return true
		}
	}
	return false
}
