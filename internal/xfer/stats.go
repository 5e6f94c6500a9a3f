package xfer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates the run-wide counters reported in the periodic and
// final summary log lines. Every field is updated from multiple
// goroutines (the lister and every transfer worker), so all access goes
// through atomics or the mutex guarding firstXferTime.
type Stats struct {
	mu            sync.Mutex
	firstXferTime time.Time

	XferCount  atomic.Uint64
	DirsCheck  atomic.Uint64
	PathCheck  atomic.Uint64
	StatCheck  atomic.Uint64
	Never2Xfer atomic.Uint64
	TooYoung   atomic.Uint64
}

// NewStats returns a zeroed Stats ready to be shared across goroutines.
func NewStats() *Stats {
	return &Stats{}
}

// RecordFirstXfer records the instant the very first successful transfer
// completed, if it hasn't been recorded yet. Used to compute a transfer
// rate that excludes listing time.
func (s *Stats) RecordFirstXfer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstXferTime.IsZero() {
		s.firstXferTime = time.Now()
	}
}

// FirstXferTime returns the recorded instant and whether one was ever
// recorded (false when zero files were transferred).
func (s *Stats) FirstXferTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstXferTime, !s.firstXferTime.IsZero()
}
