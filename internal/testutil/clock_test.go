package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	now := clock.Now()
	assert.Equal(t, DefaultEpochMs, now.TimestampMs)
	assert.Equal(t, int64(0), now.NanoTime)
}

func TestManualClock_AdvanceMovesBothClocks(t *testing.T) {
	clock := NewManualClock()

	now := clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, DefaultEpochMs+1500, now.TimestampMs)
	assert.Equal(t, int64(1_500_000_000), now.NanoTime)
	assert.Equal(t, now, clock.Now())
}

func TestManualClock_SetAllowsSkew(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Second)

	now := clock.Set(-time.Second)
	assert.Equal(t, int64(-1_000_000_000), now.NanoTime)
	assert.Equal(t, DefaultEpochMs-1000, now.TimestampMs)
}

func TestManualClock_Reset(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Minute)

	clock.Reset()
	assert.Equal(t, NewManualClock().Now(), clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(numGoroutines*callsPerGoroutine)*int64(time.Millisecond), clock.Now().NanoTime)
}
