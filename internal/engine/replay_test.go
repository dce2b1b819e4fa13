package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/testutil"
)

func canonicalStream(t *testing.T, w *testutil.MemoryWriter) []string {
	t.Helper()
	var out []string
	for _, doc := range w.Documents() {
		b, err := rum.MarshalCanonical(doc)
		require.NoError(t, err)
		out = append(out, string(b))
	}
	return out
}

func TestReplay_ReproducesDocumentStream(t *testing.T) {
	s := setupTestStore(t)
	live := newTestEngine(t, WithEventLog(s))

	events := resourceScenario(live.clock)
	events = append(events,
		rum.StartView{Key: rum.ViewKey{ID: "cart", Name: "Cart"}, Time: live.clock.Now()},
		rum.StartAction{Type: rum.ActionTypeTap, Name: "checkout", Time: live.clock.Now()},
		rum.AddError{Message: "payment declined", Source: rum.ErrorSourceSource, Time: live.clock.Now()},
		rum.StopView{Key: rum.ViewKey{ID: "cart", Name: "Cart"}, Time: live.clock.Now()},
	)
	for _, ev := range events {
		live.Enqueue(ev)
	}
	live.ProcessPending(context.Background())
	want := canonicalStream(t, live.writer)
	require.NotEmpty(t, want)

	replay := newTestEngine(t)
	fed, err := replay.Replay(context.Background(), s, 0)
	require.NoError(t, err)

	logged, err := s.ReadEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, len(logged), fed)
	assert.Equal(t, want, canonicalStream(t, replay.writer))
	assert.Empty(t, replay.Session().Views())
}

func TestReplay_AfterSeq(t *testing.T) {
	s := setupTestStore(t)
	live := newTestEngine(t, WithEventLog(s))
	for _, ev := range resourceScenario(live.clock) {
		live.Enqueue(ev)
	}
	live.ProcessPending(context.Background())

	replay := newTestEngine(t)
	fed, err := replay.Replay(context.Background(), s, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, fed, "stop_view and resource_sent")
}

func TestReplay_RejectsEngineWithEventLog(t *testing.T) {
	s := setupTestStore(t)
	te := newTestEngine(t, WithEventLog(s))

	_, err := te.Replay(context.Background(), s, 0)
	assert.Error(t, err)
}
