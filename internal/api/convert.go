package api

import (
	"fmt"

	"github.com/MS-092/DS-RM-FP/internal/analysis"
	"github.com/MS-092/DS-RM-FP/internal/models"
)

// ToWireSnapshot converts a system snapshot into its wire form.
func ToWireSnapshot(s models.SystemSnapshot) Snapshot {
	components := make(map[string]string, len(s.Health.Components))
	for name, status := range s.Health.Components {
		components[name] = string(status)
	}
	return Snapshot{
		Tick:                    s.Tick,
		ObservedAt:              s.ObservedAt,
		OverallStatus:           string(s.Health.OverallStatus),
		Components:              components,
		Strategy:                string(s.FaultTolerance.Strategy),
		StrategyDetails:         s.FaultTolerance.StrategyDetails,
		IsHealthy:               s.FaultTolerance.IsHealthy,
		LastRecoveryTimeSeconds: s.FaultTolerance.LastRecoveryTimeSeconds,
		StatusStale:             s.FaultTolerance.Stale,
		HealthError:             s.HealthError,
		StatusError:             s.StatusError,
		Degraded:                s.Degraded(),
	}
}

// ToWireDraft converts a draft, flagging the fields its strategy ignores.
func ToWireDraft(d models.ConfigurationDraft) Draft {
	return Draft{
		Strategy:                  string(d.Strategy),
		CheckpointIntervalSeconds: d.CheckpointIntervalSeconds,
		ReplicationFactor:         d.ReplicationFactor,
		WorkloadSize:              d.WorkloadSize,
		CheckpointInert:           !d.Strategy.UsesCheckpointing(),
		ReplicationInert:          !d.Strategy.UsesReplication(),
	}
}

// ToWireRun converts an experiment run.
func ToWireRun(r models.ExperimentRun) Run {
	out := Run{
		ID:                        r.ID,
		Strategy:                  string(r.Configuration.Strategy),
		CheckpointIntervalSeconds: r.Configuration.CheckpointIntervalSeconds,
		ReplicationFactor:         r.Configuration.ReplicationFactor,
		WorkloadSize:              r.Configuration.WorkloadSize,
		TriggerCheckpoint:         r.Configuration.TriggerCheckpoint,
		State:                     string(r.State),
		StartedAt:                 r.StartedAt,
		RecoveryTimeSeconds:       r.RecoveryTimeSeconds,
		DataRecoveryRatePercent:   r.DataRecoveryRatePercent,
		ItemsRecovered:            r.ItemsRecovered,
		StoreTimeSeconds:          r.StoreTimeSeconds,
		Error:                     r.Error,
		ErrorKind:                 r.ErrorKind,
		Retryable:                 r.Retryable,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// ToWireRuns converts a run list, never returning nil.
func ToWireRuns(runs []models.ExperimentRun) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToWireRun(r))
	}
	return out
}

// ToWireRecovery converts recovery summaries.
func ToWireRecovery(summaries []analysis.StrategySummary) []RecoverySummary {
	out := make([]RecoverySummary, 0, len(summaries))
	for _, s := range summaries {
		summary := RecoverySummary{
			Strategy:                string(s.Strategy),
			Succeeded:               s.Succeeded,
			Failed:                  s.Failed,
			MeanSeconds:             s.MeanSeconds,
			StdDevSeconds:           s.StdDevSeconds,
			MinSeconds:              s.MinSeconds,
			MaxSeconds:              s.MaxSeconds,
			P95Seconds:              s.P95Seconds,
			RecentMeanSeconds:       s.RecentMeanSeconds,
			MeanDataRecoveryPercent: s.MeanDataRecoveryPercent,
		}
		for _, o := range s.Outliers {
			summary.Outliers = append(summary.Outliers, Outlier{RunID: o.RunID, RecoveryTimeSeconds: o.RecoveryTimeSeconds, Score: o.Score})
		}
		out = append(out, summary)
	}
	return out
}

// ToWireFaultAck converts a fault acknowledgement.
func ToWireFaultAck(ack models.FaultAck) FaultAck {
	return FaultAck{
		Kind:                string(ack.Kind),
		Message:             ack.Message,
		IsHealthy:           ack.IsHealthy,
		RecoveryTimeSeconds: ack.RecoveryTimeSeconds,
		AcknowledgedAt:      ack.AcknowledgedAt,
	}
}

// ToWirePresets converts presets.
func ToWirePresets(presets []models.Preset) []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, Preset{
			Name:                      p.Name,
			Description:               p.Description,
			Strategy:                  string(p.Strategy),
			CheckpointIntervalSeconds: p.CheckpointIntervalSeconds,
			ReplicationFactor:         p.ReplicationFactor,
			WorkloadSize:              p.WorkloadSize,
		})
	}
	return out
}

// FromWireDraftUpdate maps a draft edit, rejecting unknown strategy names.
func FromWireDraftUpdate(req *UpdateDraftRequest) (models.DraftUpdate, error) {
	if req == nil {
		return models.DraftUpdate{}, fmt.Errorf("request is nil")
	}
	update := models.DraftUpdate{
		CheckpointIntervalSeconds: req.CheckpointIntervalSeconds,
		ReplicationFactor:         req.ReplicationFactor,
		WorkloadSize:              req.WorkloadSize,
	}
	if req.Strategy != nil {
		strategy, err := models.ParseStrategy(*req.Strategy)
		if err != nil {
			return models.DraftUpdate{}, err
		}
		update.Strategy = &strategy
	}
	return update, nil
}

// FromWireFaultRequest maps a fault command. Confirmation is checked by the caller.
func FromWireFaultRequest(req *InjectFaultRequest) (models.FaultInjectionCommand, error) {
	if req == nil {
		return models.FaultInjectionCommand{}, fmt.Errorf("request is nil")
	}
	kind, err := models.ParseFaultKind(req.Kind)
	if err != nil {
		return models.FaultInjectionCommand{}, err
	}
	target := req.TargetCount
	if target == 0 {
		target = 1
	}
	return models.FaultInjectionCommand{Kind: kind, TargetCount: target}, nil
}
