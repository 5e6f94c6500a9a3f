// Package sema provides the admission-control semaphore that bounds
// concurrent SSH handshakes. It wraps golang.org/x/sync/semaphore the way
// restic and zrepl both do for connection-count limiting.
package sema

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Startup gates concurrent SSH/SFTP session construction.
type Startup struct {
	sem *semaphore.Weighted
}

// NewStartup creates a semaphore with the given capacity. A capacity of 0
// or less means unlimited concurrency (no gate).
func NewStartup(capacity int) *Startup {
	if capacity <= 0 {
		return &Startup{}
	}
	return &Startup{sem: semaphore.NewWeighted(int64(capacity))}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (s *Startup) Acquire(ctx context.Context) error {
	if s.sem == nil {
		return nil
	}
	return s.sem.Acquire(ctx, 1)
}

// Release returns a permit acquired via Acquire.
func (s *Startup) Release() {
	if s.sem == nil {
		return
	}
	s.sem.Release(1)
}
