package repo

import (
	"time"

	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

type healthPayload struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
	// Services is the older name of Components; still emitted by some backend builds.
	Services map[string]string `json:"services"`
}

// snapshot normalizes the payload. Only the components key reaches the core.
func (p healthPayload) snapshot(now time.Time) models.HealthSnapshot {
	source := p.Components
	if source == nil {
		source = p.Services
	}
	components := make(map[string]models.ComponentStatus, len(source))
	for name, status := range source {
		components[name] = models.ComponentStatus(status)
	}
	reportedAt := now
	if p.Timestamp != "" {
		if ts, err := utils.ParseBackendTime(p.Timestamp); err == nil {
			reportedAt = ts
		}
	}
	return models.HealthSnapshot{
		OverallStatus: models.ParseOverallStatus(p.Status),
		Components:    components,
		ReportedAt:    reportedAt,
	}
}

type statusPayload struct {
	Strategy        string         `json:"strategy"`
	StrategyDetails string         `json:"strategy_details"`
	IsHealthy       *bool          `json:"is_healthy"`
	Stats           map[string]any `json:"stats"`
}

// lastRecoveryTime reads the most recent recovery time from the status stats,
// accepting the older key names. A key holding null, a non-number or a negative
// value is skipped in favour of the next alias.
func lastRecoveryTime(stats map[string]any) *float64 {
	for _, key := range []string{"last_recovery_time_seconds", "last_recovery_time", "recovery_time_seconds"} {
		value, ok := stats[key].(float64)
		if !ok || value < 0 {
			continue
		}
		return &value
	}
	return nil
}

type experimentRequest struct {
	Strategy           string `json:"strategy"`
	DataItems          int    `json:"data_items"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	ReplicationFactor  int    `json:"replication_factor"`
	TriggerCheckpoint  bool   `json:"trigger_checkpoint"`
}

type experimentPayload struct {
	RecoveryTimeSeconds     *float64 `json:"recovery_time_seconds"`
	RecoveryTime            *float64 `json:"recovery_time"`
	DataRecoveryRatePercent *float64 `json:"data_recovery_rate_percent"`
	ItemsRecovered          *int     `json:"items_recovered"`
	StoreTimeSeconds        *float64 `json:"store_time_seconds"`
}

type failureRequest struct {
	FailureType string `json:"failure_type"`
	NodeCount   int    `json:"node_count"`
}

type failurePayload struct {
	Success   *bool  `json:"success"`
	Message   string `json:"message"`
	IsHealthy *bool  `json:"is_healthy"`
}

type recoverPayload struct {
	Success             *bool    `json:"success"`
	RecoveryTimeSeconds *float64 `json:"recovery_time_seconds"`
	RecoveryTime        *float64 `json:"recovery_time"`
	IsHealthy           *bool    `json:"is_healthy"`
	Strategy            string   `json:"strategy"`
}

type configureRequest struct {
	Strategy           string `json:"strategy"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	ReplicationFactor  int    `json:"replication_factor"`
}

type configurePayload struct {
	Success         *bool  `json:"success"`
	Message         string `json:"message"`
	CurrentStrategy string `json:"current_strategy"`
}

type presetsPayload struct {
	Presets []struct {
		Name               string `json:"name"`
		Strategy           string `json:"strategy"`
		Description        string `json:"description"`
		CheckpointInterval int    `json:"checkpoint_interval"`
		ReplicationFactor  int    `json:"replication_factor"`
		DataItems          int    `json:"data_items"`
	} `json:"presets"`
}
