package models

import (
	"sort"
	"time"
)

// OverallStatus summarises the backend's health.
type OverallStatus string

const (
	OverallHealthy  OverallStatus = "healthy"
	OverallDegraded OverallStatus = "degraded"
	OverallError    OverallStatus = "error"
	OverallUnknown  OverallStatus = "unknown"
)

// ParseOverallStatus maps backend wording onto the four known values.
func ParseOverallStatus(raw string) OverallStatus {
	switch OverallStatus(raw) {
	case OverallHealthy, OverallDegraded, OverallError:
		return OverallStatus(raw)
	case "ok":
		return OverallHealthy
	case "unhealthy":
		return OverallError
	default:
		return OverallUnknown
	}
}

// ComponentStatus is the backend-reported state of a single dependency, e.g. "connected".
type ComponentStatus string

const (
	ComponentConnected    ComponentStatus = "connected"
	ComponentDisconnected ComponentStatus = "disconnected"
	ComponentUnknown      ComponentStatus = "unknown"
)

// HealthSnapshot is a point-in-time view of overall and per-component health.
// It is never mutated after construction; the next poll replaces it wholesale.
type HealthSnapshot struct {
	OverallStatus OverallStatus
	Components    map[string]ComponentStatus
	ReportedAt    time.Time
}

// UnknownHealth is the snapshot shown before the first poll completes.
func UnknownHealth() HealthSnapshot {
	return HealthSnapshot{OverallStatus: OverallUnknown, Components: map[string]ComponentStatus{}}
}

// Component returns the status of name, or unknown when it was never reported.
func (h HealthSnapshot) Component(name string) ComponentStatus {
	if status, ok := h.Components[name]; ok {
		return status
	}
	return ComponentUnknown
}

// ComponentNames returns component keys in sorted order.
func (h HealthSnapshot) ComponentNames() []string {
	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unreachable derives the snapshot published when health could not be fetched:
// overall error, every known component unknown.
func (h HealthSnapshot) Unreachable() HealthSnapshot {
	components := make(map[string]ComponentStatus, len(h.Components))
	for name := range h.Components {
		components[name] = ComponentUnknown
	}
	return HealthSnapshot{OverallStatus: OverallError, Components: components, ReportedAt: h.ReportedAt}
}

// Clone returns a deep copy so callers can never alias the published map.
func (h HealthSnapshot) Clone() HealthSnapshot {
	components := make(map[string]ComponentStatus, len(h.Components))
	for name, status := range h.Components {
		components[name] = status
	}
	h.Components = components
	return h
}

// FaultToleranceStatus is the backend's view of the active strategy.
type FaultToleranceStatus struct {
	Strategy                Strategy
	StrategyDetails         string
	IsHealthy               bool
	LastRecoveryTimeSeconds *float64
	// Stale marks a status carried over from an earlier poll because the latest fetch failed.
	Stale bool
}

// SystemSnapshot is the combined health + fault-tolerance pair published by one poll cycle.
type SystemSnapshot struct {
	Tick           uint64
	ObservedAt     time.Time
	Health         HealthSnapshot
	FaultTolerance FaultToleranceStatus
	HealthError    string
	StatusError    string
}

// Degraded reports whether either half of the snapshot failed to refresh.
func (s SystemSnapshot) Degraded() bool {
	return s.HealthError != "" || s.StatusError != ""
}
