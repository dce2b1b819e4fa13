package scope

import (
	"sync"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/vitals"
)

// viewVitals caches vital windows reported by monitors while a view lives.
// Monitor callbacks arrive on other goroutines; every field is guarded by mu.
type viewVitals struct {
	env *Env

	mu sync.Mutex

	cpuInitial float64
	cpuTicks   float64
	cpuSamples int

	memory      vitals.Info
	refreshRate vitals.Info

	cpuListener         *cpuListener
	memoryListener      *memoryListener
	refreshRateListener *refreshRateListener
}

func newViewVitals(env *Env) *viewVitals {
	vv := &viewVitals{
		env:         env,
		memory:      vitals.Empty,
		refreshRate: vitals.Empty,
	}
	vv.cpuListener = &cpuListener{vv}
	vv.memoryListener = &memoryListener{vv}
	vv.refreshRateListener = &refreshRateListener{vv}

	if env.CPU != nil {
		env.CPU.Register(vv.cpuListener)
	}
	if env.Memory != nil {
		env.Memory.Register(vv.memoryListener)
	}
	if env.RefreshRate != nil {
		env.RefreshRate.Register(vv.refreshRateListener)
	}
	return vv
}

func (vv *viewVitals) unregister() {
	if vv.env.CPU != nil {
		vv.env.CPU.Unregister(vv.cpuListener)
	}
	if vv.env.Memory != nil {
		vv.env.Memory.Unregister(vv.memoryListener)
	}
	if vv.env.RefreshRate != nil {
		vv.env.RefreshRate.Unregister(vv.refreshRateListener)
	}
}

// fill copies the cached vitals into detail. durationNs is the view time
// spent, used to derive the per-second CPU rate.
func (vv *viewVitals) fill(detail *rum.ViewDetail, durationNs int64) {
	vv.mu.Lock()
	defer vv.mu.Unlock()

	// CPU ticks are cumulative; at least two samples are needed for a delta.
	if vv.cpuSamples >= 2 {
		ticks := vv.cpuTicks
		detail.CPUTicksCount = &ticks
		if durationNs >= 1_000_000_000 {
			perSecond := ticks / (float64(durationNs) / 1e9)
			detail.CPUTicksPerSecond = &perSecond
		}
	}
	if vv.memory.SampleCount > 0 {
		avg, peak := vv.memory.Mean, vv.memory.Max
		detail.MemoryAverage = &avg
		detail.MemoryMax = &peak
	}
	if vv.refreshRate.SampleCount > 0 {
		avg, low := vv.refreshRate.Mean, vv.refreshRate.Min
		detail.RefreshRateAverage = &avg
		detail.RefreshRateMin = &low
		detail.IsSlowRendered = boolPtr(avg < slowRenderedThreshold)
	}
}

type cpuListener struct{ vv *viewVitals }

func (l *cpuListener) OnVitalUpdate(info vitals.Info) {
	l.vv.mu.Lock()
	defer l.vv.mu.Unlock()

	l.vv.cpuSamples = info.SampleCount
	if info.SampleCount == 1 {
		l.vv.cpuInitial = info.Max
		return
	}
	l.vv.cpuTicks = info.Max - l.vv.cpuInitial
}

type memoryListener struct{ vv *viewVitals }

func (l *memoryListener) OnVitalUpdate(info vitals.Info) {
	l.vv.mu.Lock()
	defer l.vv.mu.Unlock()
	l.vv.memory = info
}

type refreshRateListener struct{ vv *viewVitals }

func (l *refreshRateListener) OnVitalUpdate(info vitals.Info) {
	l.vv.mu.Lock()
	defer l.vv.mu.Unlock()
	l.vv.refreshRate = info
}
