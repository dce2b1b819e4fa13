package vitals

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu      sync.Mutex
	updates []Info
}

func (l *recordingListener) OnVitalUpdate(info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, info)
}

func (l *recordingListener) last() Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates[len(l.updates)-1]
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

func TestMonitor_SampleFansOutWithOwnWindows(t *testing.T) {
	m := NewMonitor("cpu")
	early := &recordingListener{}
	late := &recordingListener{}

	m.Register(early)
	m.Sample(10)
	m.Register(late)
	m.Sample(20)

	assert.Equal(t, Info{SampleCount: 2, Min: 10, Max: 20, Mean: 15}, early.last())
	assert.Equal(t, Info{SampleCount: 1, Min: 20, Max: 20, Mean: 20}, late.last())
	assert.Equal(t, 2, m.ListenerCount())
}

func TestMonitor_RegisterTwiceResetsWindow(t *testing.T) {
	m := NewMonitor("memory")
	l := &recordingListener{}

	m.Register(l)
	m.Sample(100)
	m.Register(l)
	m.Sample(1)

	assert.Equal(t, 1, l.last().SampleCount)
	assert.Equal(t, 1.0, l.last().Max)
}

func TestMonitor_Unregister(t *testing.T) {
	m := NewMonitor("refresh_rate")
	l := &recordingListener{}

	m.Register(l)
	m.Unregister(l)
	m.Sample(60)

	assert.Zero(t, l.count())
	assert.Zero(t, m.ListenerCount())
}

func TestMonitor_Latest(t *testing.T) {
	m := NewMonitor("cpu")

	_, ok := m.Latest()
	assert.False(t, ok)

	m.Sample(3.5)
	v, ok := m.Latest()
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.Equal(t, "cpu", m.Name())
}

func TestMonitor_RunSamplesUntilCancelled(t *testing.T) {
	m := NewMonitor("cpu")
	l := &recordingListener{}
	m.Register(l)

	var reads atomic.Int32
	reader := ReaderFunc(func() (float64, bool) {
		n := reads.Add(1)
		// Every other tick is skipped.
		return float64(n), n%2 == 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(ctx, time.Millisecond, reader)
	}()

	require.Eventually(t, func() bool { return l.count() >= 2 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Zero(t, int(latest)%2, "skipped ticks never reach the monitor")
}

func TestMonitor_RunLogsThroughConfiguredLogger(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewMonitor("cpu", WithLogger(logger))
	m.Register(&recordingListener{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Run(ctx, time.Hour, ReaderFunc(func() (float64, bool) { return 0, false }))
	require.ErrorIs(t, err, context.Canceled)

	assert.Contains(t, logs.String(), "vital monitor starting")
	assert.Contains(t, logs.String(), "vital monitor stopping")
	assert.Contains(t, logs.String(), "vital=cpu")
	assert.Contains(t, logs.String(), "listeners=1")
}

func TestMonitor_WithNilLoggerKeepsDefault(t *testing.T) {
	m := NewMonitor("memory", WithLogger(nil))
	assert.Same(t, slog.Default(), m.logger)
}
