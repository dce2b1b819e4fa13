package vitals

import "math"

// Info is an aggregation window over vital samples.
type Info struct {
	SampleCount int
	Min         float64
	Max         float64
	Mean        float64
}

// Empty is the window before any sample.
var Empty = Info{Min: math.MaxFloat64, Max: -math.MaxFloat64}

// Add returns the window extended with one sample.
func (i Info) Add(value float64) Info {
	count := i.SampleCount + 1
	return Info{
		SampleCount: count,
		Min:         math.Min(i.Min, value),
		Max:         math.Max(i.Max, value),
		Mean:        i.Mean + (value-i.Mean)/float64(count),
	}
}
