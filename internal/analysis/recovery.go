package analysis

import (
	"math"

	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// DefaultOutlierThreshold is the z-score above which a recovery time is flagged.
const DefaultOutlierThreshold = 2.0

// recentWindow matches the "last 5 runs" figure operators compare against.
const recentWindow = 5

// Sample is one successful run's recovery time.
type Sample struct {
	RunID               string
	RecoveryTimeSeconds float64
}

// Outlier is a recovery time unusually slow for its strategy.
type Outlier struct {
	RunID               string
	RecoveryTimeSeconds float64
	Score               float64
	Threshold           float64
}

// StrategySummary aggregates recovery times for one strategy.
type StrategySummary struct {
	Strategy          models.Strategy
	Succeeded         int
	Failed            int
	MeanSeconds       float64
	StdDevSeconds     float64
	MinSeconds        float64
	MaxSeconds        float64
	P95Seconds        float64
	RecentMeanSeconds float64
	// MeanDataRecoveryPercent is nil when no run reported a data recovery rate.
	MeanDataRecoveryPercent *float64
	Outliers                []Outlier
}

// Summarize groups history by strategy, in models.Strategies order, skipping
// strategies with no runs. Only succeeded runs contribute recovery statistics.
func Summarize(history []models.ExperimentRun, threshold float64) []StrategySummary {
	type bucket struct {
		window      *utils.SampleWindow
		samples     []Sample
		failed      int
		rateTotal   float64
		rateSamples int
	}
	buckets := make(map[models.Strategy]*bucket)
	for _, run := range history {
		if !run.State.Terminal() {
			continue
		}
		b, ok := buckets[run.Configuration.Strategy]
		if !ok {
			b = &bucket{window: utils.NewSampleWindow(len(history))}
			buckets[run.Configuration.Strategy] = b
		}
		if run.State == models.RunFailed || run.RecoveryTimeSeconds == nil {
			b.failed++
			continue
		}
		b.window.Observe(utils.SecondsToDuration(*run.RecoveryTimeSeconds))
		b.samples = append(b.samples, Sample{RunID: run.ID, RecoveryTimeSeconds: *run.RecoveryTimeSeconds})
		if run.DataRecoveryRatePercent != nil {
			b.rateTotal += *run.DataRecoveryRatePercent
			b.rateSamples++
		}
	}

	summaries := make([]StrategySummary, 0, len(buckets))
	for _, strategy := range models.Strategies {
		b, ok := buckets[strategy]
		if !ok {
			continue
		}
		summary := StrategySummary{
			Strategy:          strategy,
			Succeeded:         b.window.Count(),
			Failed:            b.failed,
			MeanSeconds:       b.window.Mean().Seconds(),
			StdDevSeconds:     b.window.StdDev().Seconds(),
			MinSeconds:        b.window.Min().Seconds(),
			MaxSeconds:        b.window.Max().Seconds(),
			P95Seconds:        b.window.Percentile(95).Seconds(),
			RecentMeanSeconds: b.window.RecentMean(recentWindow).Seconds(),
			Outliers:          DetectOutliers(b.samples, threshold),
		}
		if b.rateSamples > 0 {
			rate := b.rateTotal / float64(b.rateSamples)
			summary.MeanDataRecoveryPercent = &rate
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// DetectOutliers flags samples whose z-score meets the threshold.
func DetectOutliers(samples []Sample, threshold float64) []Outlier {
	if len(samples) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}

	mean := 0.0
	for _, s := range samples {
		mean += s.RecoveryTimeSeconds
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		variance += math.Pow(s.RecoveryTimeSeconds-mean, 2)
	}
	variance /= float64(len(samples))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		stdDev = 0.01
	}

	var outliers []Outlier
	for _, s := range samples {
		score := (s.RecoveryTimeSeconds - mean) / stdDev
		if score >= threshold {
			outliers = append(outliers, Outlier{
				RunID:               s.RunID,
				RecoveryTimeSeconds: s.RecoveryTimeSeconds,
				Score:               score,
				Threshold:           threshold,
			})
		}
	}
	return outliers
}
