package rum

import (
	"time"
)

// processStart anchors monotonic readings taken by Now.
var processStart = time.Now()

// Time pairs a wall clock timestamp with a monotonic reading.
type Time struct {
	// TimestampMs is the wall clock time in milliseconds since the Unix epoch.
	TimestampMs int64 `json:"timestamp_ms"`

	// NanoTime is a monotonic reading in nanoseconds. Only differences between
	// two NanoTime values are meaningful.
	NanoTime int64 `json:"nano_time"`
}

// Now returns the current Time.
func Now() Time {
	now := time.Now()
	return Time{
		TimestampMs: now.UnixMilli(),
		NanoTime:    int64(now.Sub(processStart)),
	}
}

// Add returns t shifted by d on both clocks.
func (t Time) Add(d time.Duration) Time {
	return Time{
		TimestampMs: t.TimestampMs + d.Milliseconds(),
		NanoTime:    t.NanoTime + int64(d),
	}
}

// Since returns the monotonic duration between start and t, in nanoseconds.
// The result may be zero or negative when inputs are skewed.
func (t Time) Since(start Time) int64 {
	return t.NanoTime - start.NanoTime
}
