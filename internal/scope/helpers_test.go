package scope

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/testutil"
)

// fixture wires a session scope to in-memory collaborators.
type fixture struct {
	t        *testing.T
	clock    *testutil.ManualClock
	writer   *testutil.MemoryWriter
	notifier *testutil.RecordingNotifier
	features *rum.FeatureContexts
	globals  *rum.GlobalAttributes
	logs     *bytes.Buffer
	env      *Env
	session  *SessionScope
}

func newFixture(t *testing.T, configure ...func(*Env)) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		clock:    testutil.NewManualClock(),
		writer:   testutil.NewMemoryWriter(rum.Snapshot{Service: "shop", Version: "1.2.3"}),
		notifier: testutil.NewRecordingNotifier(),
		features: rum.NewFeatureContexts(),
		globals:  rum.NewGlobalAttributes(nil),
		logs:     &bytes.Buffer{},
	}

	env := Env{
		ApplicationID: "app-1",
		SampleRate:    100,
		Sampler:       func() float64 { return 0 },
		IDs:           rum.NewSequenceGenerator("id"),
		WriteContext:  f.writer,
		Notifier:      f.notifier,
		Attributes:    f.globals,
		Features:      f.features,
		Logger: slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
	}
	for _, fn := range configure {
		fn(&env)
	}
	f.env = env.WithDefaults()
	f.session = NewSessionScope(f.env)
	return f
}

func (f *fixture) now() rum.Time { return f.clock.Now() }

func (f *fixture) advance(d time.Duration) rum.Time { return f.clock.Advance(d) }

func (f *fixture) send(ev rum.Event) {
	f.t.Helper()
	require.NotNil(f.t, f.session.Handle(ev, f.writer))
}

// ack feeds every recorded write outcome back as acknowledgement events,
// until no new outcome is produced.
func (f *fixture) ack() {
	f.t.Helper()
	for {
		events := f.notifier.Drain(f.now())
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			f.send(ev)
		}
	}
}

func (f *fixture) startView(name string) *ViewScope {
	f.t.Helper()
	f.send(rum.StartView{Key: rum.ViewKey{ID: name, Name: name}, Time: f.now()})
	v := f.session.ActiveView()
	require.NotNil(f.t, v)
	return v
}

func (f *fixture) stopView(name string) {
	f.send(rum.StopView{Key: rum.ViewKey{ID: name, Name: name}, Time: f.now()})
}

// stubParent is a minimal ParentScope for constructing views directly.
type stubParent struct{ ctx rum.Context }

func (p stubParent) RumContext() rum.Context { return p.ctx }

func int64Ptr(v int64) *int64 { return &v }
