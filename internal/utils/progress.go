package utils

import "sync"

// ErrorTracker stores the aggregate error values observed across optimization
// passes so the final report can show the improvement trajectory.
type ErrorTracker struct {
	mu      sync.RWMutex
	samples []float64
	maxSize int
}

// NewErrorTracker creates a tracker storing up to maxSize samples.
func NewErrorTracker(maxSize int) *ErrorTracker {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &ErrorTracker{maxSize: maxSize}
}

// Observe records a new error value.
func (t *ErrorTracker) Observe(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, v)
	if len(t.samples) > t.maxSize {
		// Drop oldest sample to bound memory.
		copy(t.samples[0:], t.samples[1:])
		t.samples = t.samples[:t.maxSize]
	}
}

// First returns the earliest retained sample, or zero when empty.
func (t *ErrorTracker) First() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[0]
}

// Last returns the most recent sample, or zero when empty.
func (t *ErrorTracker) Last() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1]
}

// Max returns the largest retained sample, or zero when empty.
func (t *ErrorTracker) Max() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	max := 0.0
	for i, v := range t.samples {
		if i == 0 || v > max {
			max = v
		}
	}
	return max
}

// Count returns the number of retained samples.
func (t *ErrorTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
