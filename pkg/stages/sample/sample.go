// Package sample decides which frames of a continuous stream enter the pipeline.
package sample

import (
	"time"
)

// DefaultInterval is the wall-clock gap between admitted frames.
const DefaultInterval = 1000 * time.Millisecond

// Stats counts sampler decisions since the last reset.
type Stats struct {
	Seen     int
	Accepted int
}

// Sampler admits the first frame after a reset and then at most one frame per
// interval. It keeps no frames; rejected frames are the caller's to release.
type Sampler struct {
	interval     time.Duration
	lastAccepted time.Time
	hasAccepted  bool
	stats        Stats
}

// New creates a Sampler. A non-positive interval selects DefaultInterval.
func New(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{interval: interval}
}

// Interval returns the configured sampling interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Accept reports whether a frame observed at now should be admitted.
func (s *Sampler) Accept(now time.Time) bool {
	s.stats.Seen++

	if s.hasAccepted && now.Sub(s.lastAccepted) < s.interval {
		return false
	}

	s.lastAccepted = now
	s.hasAccepted = true
	s.stats.Accepted++
	return true
}

// Reset forgets the last admitted frame so the next one is always accepted.
func (s *Sampler) Reset() {
	s.lastAccepted = time.Time{}
	s.hasAccepted = false
	s.stats = Stats{}
}

// Stats returns the decision counters since the last reset.
func (s *Sampler) Stats() Stats {
	return s.stats
}
