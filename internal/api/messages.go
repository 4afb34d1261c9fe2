package api

import "time"

// Empty is the request or response of calls that carry no payload.
type Empty struct{}

// Snapshot is the wire form of the combined health and fault-tolerance status.
type Snapshot struct {
	Tick                    uint64            `json:"tick"`
	ObservedAt              time.Time         `json:"observed_at"`
	OverallStatus           string            `json:"overall_status"`
	Components              map[string]string `json:"components"`
	Strategy                string            `json:"strategy,omitempty"`
	StrategyDetails         string            `json:"strategy_details,omitempty"`
	IsHealthy               bool              `json:"is_healthy"`
	LastRecoveryTimeSeconds *float64          `json:"last_recovery_time_seconds,omitempty"`
	StatusStale             bool              `json:"status_stale,omitempty"`
	HealthError             string            `json:"health_error,omitempty"`
	StatusError             string            `json:"status_error,omitempty"`
	Degraded                bool              `json:"degraded"`
}

// Draft is the operator's unvalidated configuration.
type Draft struct {
	Strategy                  string `json:"strategy"`
	CheckpointIntervalSeconds int    `json:"checkpoint_interval_seconds"`
	ReplicationFactor         int    `json:"replication_factor"`
	WorkloadSize              int    `json:"workload_size"`
	// CheckpointInert and ReplicationInert flag fields the chosen strategy ignores.
	CheckpointInert  bool `json:"checkpoint_inert"`
	ReplicationInert bool `json:"replication_inert"`
}

// Run is one experiment run.
type Run struct {
	ID                        string     `json:"id"`
	Strategy                  string     `json:"strategy"`
	CheckpointIntervalSeconds int        `json:"checkpoint_interval_seconds"`
	ReplicationFactor         int        `json:"replication_factor"`
	WorkloadSize              int        `json:"workload_size"`
	TriggerCheckpoint         bool       `json:"trigger_checkpoint"`
	State                     string     `json:"state"`
	StartedAt                 time.Time  `json:"started_at"`
	FinishedAt                *time.Time `json:"finished_at,omitempty"`
	RecoveryTimeSeconds       *float64   `json:"recovery_time_seconds,omitempty"`
	DataRecoveryRatePercent   *float64   `json:"data_recovery_rate_percent,omitempty"`
	ItemsRecovered            *int       `json:"items_recovered,omitempty"`
	StoreTimeSeconds          *float64   `json:"store_time_seconds,omitempty"`
	Error                     string     `json:"error,omitempty"`
	ErrorKind                 string     `json:"error_kind,omitempty"`
	Retryable                 bool       `json:"retryable,omitempty"`
}

// Outlier is a flagged recovery time.
type Outlier struct {
	RunID               string  `json:"run_id"`
	RecoveryTimeSeconds float64 `json:"recovery_time_seconds"`
	Score               float64 `json:"score"`
}

// RecoverySummary aggregates recovery statistics for one strategy.
type RecoverySummary struct {
	Strategy                string    `json:"strategy"`
	Succeeded               int       `json:"succeeded"`
	Failed                  int       `json:"failed"`
	MeanSeconds             float64   `json:"mean_seconds"`
	StdDevSeconds           float64   `json:"stddev_seconds"`
	MinSeconds              float64   `json:"min_seconds"`
	MaxSeconds              float64   `json:"max_seconds"`
	P95Seconds              float64   `json:"p95_seconds"`
	RecentMeanSeconds       float64   `json:"recent_mean_seconds"`
	MeanDataRecoveryPercent *float64  `json:"mean_data_recovery_percent,omitempty"`
	Outliers                []Outlier `json:"outliers,omitempty"`
}

// FaultAck acknowledges a fault command.
type FaultAck struct {
	Kind                string    `json:"kind"`
	Message             string    `json:"message,omitempty"`
	IsHealthy           *bool     `json:"is_healthy,omitempty"`
	RecoveryTimeSeconds *float64  `json:"recovery_time_seconds,omitempty"`
	AcknowledgedAt      time.Time `json:"acknowledged_at"`
}

// View is the full controller read model.
type View struct {
	Snapshot  Snapshot          `json:"snapshot"`
	Draft     Draft             `json:"draft"`
	Current   *Run              `json:"current,omitempty"`
	History   []Run             `json:"history"`
	Recovery  []RecoverySummary `json:"recovery"`
	LastFault *FaultAck         `json:"last_fault,omitempty"`
}

// UpdateDraftRequest edits the draft. Omitted fields are left alone.
type UpdateDraftRequest struct {
	Strategy                  *string `json:"strategy,omitempty"`
	CheckpointIntervalSeconds *int    `json:"checkpoint_interval_seconds,omitempty"`
	ReplicationFactor         *int    `json:"replication_factor,omitempty"`
	WorkloadSize              *int    `json:"workload_size,omitempty"`
}

// RunExperimentResponse names the submitted run.
type RunExperimentResponse struct {
	RunID string `json:"run_id"`
}

// InjectFaultRequest is a disruptive command. Confirmed must be true.
type InjectFaultRequest struct {
	Kind        string `json:"kind"`
	TargetCount int    `json:"target_count"`
	Confirmed   bool   `json:"confirmed"`
}

// ConfigureResponse acknowledges a strategy switch.
type ConfigureResponse struct {
	Message         string `json:"message"`
	CurrentStrategy string `json:"current_strategy"`
}

// Preset is a named configuration.
type Preset struct {
	Name                      string `json:"name"`
	Description               string `json:"description,omitempty"`
	Strategy                  string `json:"strategy"`
	CheckpointIntervalSeconds int    `json:"checkpoint_interval_seconds,omitempty"`
	ReplicationFactor         int    `json:"replication_factor,omitempty"`
	WorkloadSize              int    `json:"workload_size,omitempty"`
}

// PresetsResponse lists presets.
type PresetsResponse struct {
	Presets []Preset `json:"presets"`
}

// ApplyPresetRequest names the preset to copy into the draft.
type ApplyPresetRequest struct {
	Name string `json:"name"`
}

// HistoryRequest bounds the number of runs returned. Zero means all retained runs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists completed runs, oldest first, and their recovery summaries.
type HistoryResponse struct {
	Runs     []Run             `json:"runs"`
	Recovery []RecoverySummary `json:"recovery"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
	Code      int    `json:"code"`
}
