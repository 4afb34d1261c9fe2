package poller

import "github.com/MS-092/DS-RM-FP/internal/models"

// Merge folds a poll result into the previously published snapshot.
//
// A failed health fetch yields overall error with every previously known component
// unknown. A failed status fetch keeps the previous status, marked stale and
// unhealthy, and also forces overall error. The result never aliases prev.
func Merge(prev models.SystemSnapshot, res Result) models.SystemSnapshot {
	next := models.SystemSnapshot{Tick: res.Tick, ObservedAt: res.StartedAt}

	if res.HealthErr == nil {
		next.Health = res.Health.Clone()
	} else {
		next.Health = prev.Health.Unreachable()
		next.HealthError = res.HealthErr.Error()
	}

	if res.StatusErr == nil {
		next.FaultTolerance = res.Status
		next.FaultTolerance.Stale = false
	} else {
		next.FaultTolerance = prev.FaultTolerance
		next.FaultTolerance.Stale = true
		next.FaultTolerance.IsHealthy = false
		next.StatusError = res.StatusErr.Error()
		next.Health.OverallStatus = models.OverallError
	}
	return next
}
