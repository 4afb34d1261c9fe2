package utils

import (
	"math"
	"sort"
	"sync"
	"time"
)

// SampleWindow stores recent duration samples and computes summary statistics.
type SampleWindow struct {
	mu      sync.RWMutex
	samples []time.Duration
	maxSize int
}

// NewSampleWindow creates a window storing up to maxSize samples.
func NewSampleWindow(maxSize int) *SampleWindow {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &SampleWindow{maxSize: maxSize}
}

// Observe records a new duration.
func (w *SampleWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, d)
	if len(w.samples) > w.maxSize {
		// Drop oldest sample to bound memory.
		copy(w.samples[0:], w.samples[1:])
		w.samples = w.samples[:w.maxSize]
	}
}

// Percentile returns the percentile (0-100) duration. Returns zero if no samples.
func (w *SampleWindow) Percentile(p float64) time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.samples) == 0 {
		return 0
	}
	if p <= 0 {
		return w.min()
	}
	if p >= 100 {
		return w.max()
	}

	sorted := append([]time.Duration(nil), w.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(math.Ceil((p/100.0)*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Mean returns the arithmetic mean of all samples.
func (w *SampleWindow) Mean() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return mean(w.samples)
}

// RecentMean returns the mean of the newest n samples.
func (w *SampleWindow) RecentMean(n int) time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n <= 0 || n > len(w.samples) {
		n = len(w.samples)
	}
	return mean(w.samples[len(w.samples)-n:])
}

// StdDev returns the population standard deviation.
func (w *SampleWindow) StdDev() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.samples) == 0 {
		return 0
	}
	m := float64(mean(w.samples))
	variance := 0.0
	for _, s := range w.samples {
		variance += math.Pow(float64(s)-m, 2)
	}
	variance /= float64(len(w.samples))
	return time.Duration(math.Sqrt(variance))
}

// Min returns the smallest sample.
func (w *SampleWindow) Min() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.min()
}

// Max returns the largest sample.
func (w *SampleWindow) Max() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.max()
}

// Count returns number of samples recorded.
func (w *SampleWindow) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

func (w *SampleWindow) min() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	min := w.samples[0]
	for _, s := range w.samples[1:] {
		if s < min {
			min = s
		}
	}
	return min
}

func (w *SampleWindow) max() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	max := w.samples[0]
	for _, s := range w.samples[1:] {
		if s > max {
			max = s
		}
	}
	return max
}

func mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}
