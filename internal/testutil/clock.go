package testutil

import (
	"sync"
	"time"

	"github.com/roach88/rumscope/internal/rum"
)

// DefaultEpochMs is the wall clock start of every ManualClock: 2024-01-01T00:00:00Z.
const DefaultEpochMs int64 = 1_704_067_200_000

// ManualClock is a deterministic source of rum.Time for tests.
//
// Time only moves when Advance is called, so documents produced by the same
// script are byte-identical between runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now rum.Time
}

// NewManualClock creates a clock at DefaultEpochMs with a zero monotonic
// reading.
func NewManualClock() *ManualClock {
	return &ManualClock{now: rum.Time{TimestampMs: DefaultEpochMs}}
}

// Now returns the current time without advancing.
func (c *ManualClock) Now() rum.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves both clocks forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) rum.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps to an absolute offset from the epoch. Negative jumps are allowed
// to simulate clock skew.
func (c *ManualClock) Set(offset time.Duration) rum.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = rum.Time{TimestampMs: DefaultEpochMs}.Add(offset)
	return c.now
}

// Reset returns the clock to the epoch.
//
// Used for test reuse. After Reset(), Now() equals a fresh clock.
func (c *ManualClock) Reset() {
	c.Set(0)
}
