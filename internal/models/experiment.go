package models

import (
	"fmt"
	"time"
)

// Strategy is the fault-tolerance technique configured on the backend.
type Strategy string

const (
	StrategyBaseline      Strategy = "baseline"
	StrategyCheckpointing Strategy = "checkpointing"
	StrategyReplication   Strategy = "replication"
	StrategyHybrid        Strategy = "hybrid"
)

// Strategies lists every supported strategy in display order.
var Strategies = []Strategy{StrategyBaseline, StrategyCheckpointing, StrategyReplication, StrategyHybrid}

// ParseStrategy validates a strategy name.
func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown strategy %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the supported strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBaseline, StrategyCheckpointing, StrategyReplication, StrategyHybrid:
		return true
	}
	return false
}

// UsesCheckpointing reports whether the checkpoint interval applies to s.
func (s Strategy) UsesCheckpointing() bool {
	return s == StrategyCheckpointing || s == StrategyHybrid
}

// UsesReplication reports whether the replication factor applies to s.
func (s Strategy) UsesReplication() bool {
	return s == StrategyReplication || s == StrategyHybrid
}

// ConfigurationDraft is the operator's editable, unvalidated configuration.
type ConfigurationDraft struct {
	Strategy                  Strategy
	CheckpointIntervalSeconds int
	ReplicationFactor         int
	WorkloadSize              int
}

// DraftUpdate is a partial edit; nil fields keep the current draft value.
type DraftUpdate struct {
	Strategy                  *Strategy
	CheckpointIntervalSeconds *int
	ReplicationFactor         *int
	WorkloadSize              *int
}

// Apply returns d with every non-nil field of u applied.
func (d ConfigurationDraft) Apply(u DraftUpdate) ConfigurationDraft {
	if u.Strategy != nil {
		d.Strategy = *u.Strategy
	}
	if u.CheckpointIntervalSeconds != nil {
		d.CheckpointIntervalSeconds = *u.CheckpointIntervalSeconds
	}
	if u.ReplicationFactor != nil {
		d.ReplicationFactor = *u.ReplicationFactor
	}
	if u.WorkloadSize != nil {
		d.WorkloadSize = *u.WorkloadSize
	}
	return d
}

// ExperimentConfiguration is a validated configuration. It is a value type: each run
// holds its own copy so later draft edits never reach an in-flight run.
type ExperimentConfiguration struct {
	Strategy                  Strategy
	CheckpointIntervalSeconds int
	ReplicationFactor         int
	WorkloadSize              int
	// TriggerCheckpoint forces a checkpoint before the simulated failure.
	TriggerCheckpoint bool
}

// CheckpointInert reports whether the checkpoint interval is carried for audit only.
func (c ExperimentConfiguration) CheckpointInert() bool {
	return !c.Strategy.UsesCheckpointing()
}

// ReplicationInert reports whether the replication factor is carried for audit only.
func (c ExperimentConfiguration) ReplicationInert() bool {
	return !c.Strategy.UsesReplication()
}

// RunState is the lifecycle state of an experiment run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Rank orders states along the lifecycle.
func (s RunState) Rank() int {
	switch s {
	case RunPending:
		return 1
	case RunRunning:
		return 2
	case RunSucceeded, RunFailed:
		return 3
	}
	return 0
}

// ExperimentOutcome is what the backend reports for a completed experiment.
type ExperimentOutcome struct {
	RecoveryTimeSeconds     float64
	DataRecoveryRatePercent *float64
	ItemsRecovered          *int
	StoreTimeSeconds        *float64
}

// ExperimentRun is one submitted experiment.
type ExperimentRun struct {
	ID            string
	Configuration ExperimentConfiguration
	State         RunState
	StartedAt     time.Time
	FinishedAt    time.Time

	RecoveryTimeSeconds     *float64
	DataRecoveryRatePercent *float64
	ItemsRecovered          *int
	StoreTimeSeconds        *float64

	Error     string
	ErrorKind string
	Retryable bool
}

// InFlight reports whether the run is pending or running.
func (r ExperimentRun) InFlight() bool {
	return r.State == RunPending || r.State == RunRunning
}

// Duration is the wall-clock time between submission and the terminal state.
func (r ExperimentRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
