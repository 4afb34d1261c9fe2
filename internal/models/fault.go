package models

import (
	"fmt"
	"time"
)

// FaultKind enumerates disruptive commands the chaos backend understands.
type FaultKind string

const (
	FaultPodKill   FaultKind = "pod_kill"
	FaultPartition FaultKind = "partition"
	FaultLatency   FaultKind = "latency"
	FaultRecover   FaultKind = "recover"
)

// ParseFaultKind validates a fault kind name.
func ParseFaultKind(raw string) (FaultKind, error) {
	k := FaultKind(raw)
	switch k {
	case FaultPodKill, FaultPartition, FaultLatency, FaultRecover:
		return k, nil
	}
	return "", fmt.Errorf("unknown fault kind %q", raw)
}

// FaultInjectionCommand is a one-shot disruptive command. It is not tracked after its ack.
type FaultInjectionCommand struct {
	Kind        FaultKind
	TargetCount int
}

// FaultAck is the backend's acknowledgement of a fault command.
type FaultAck struct {
	Kind                FaultKind
	Message             string
	IsHealthy           *bool
	RecoveryTimeSeconds *float64
	AcknowledgedAt      time.Time
}

// ConfigureAck is the backend's acknowledgement of a strategy reconfiguration.
type ConfigureAck struct {
	Message         string
	CurrentStrategy string
}

// Preset is a named experiment configuration offered to the operator.
type Preset struct {
	Name                      string
	Description               string
	Strategy                  Strategy
	CheckpointIntervalSeconds int
	ReplicationFactor         int
	WorkloadSize              int
}

// Draft converts the preset into a configuration draft.
func (p Preset) Draft() ConfigurationDraft {
	return ConfigurationDraft{
		Strategy:                  p.Strategy,
		CheckpointIntervalSeconds: p.CheckpointIntervalSeconds,
		ReplicationFactor:         p.ReplicationFactor,
		WorkloadSize:              p.WorkloadSize,
	}
}
