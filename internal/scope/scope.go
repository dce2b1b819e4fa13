package scope

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/vitals"
)

// Scope is the contract shared by every node of the scope tree.
type Scope interface {
	// Handle consumes one raw event, writing zero or more documents through
	// w. It returns the scope itself while alive, or nil once dead.
	Handle(ev rum.Event, w rum.Writer) Scope

	// IsActive reports whether the scope still accepts new child work.
	IsActive() bool
}

// ParentScope is the non-owning view children keep of their parent.
type ParentScope interface {
	RumContext() rum.Context
}

// Defaults for action resolution.
const (
	DefaultActionMaxDuration = 10 * time.Second

	// FrozenFrameThresholdNs classifies a long task as a frozen frame.
	FrozenFrameThresholdNs int64 = 700_000_000

	// slowRenderedThreshold is the average refresh rate (fps) below which a
	// view is reported as slow rendered.
	slowRenderedThreshold = 55.0
)

// View types published in the feature context.
const (
	ViewTypeForeground        = "foreground"
	ViewTypeBackground        = "background"
	ViewTypeApplicationLaunch = "application_launch"
)

// Env bundles the collaborators every scope needs. It is built once and
// shared by the whole tree; scopes never look anything up globally.
type Env struct {
	ApplicationID string

	// SampleRate is the session sample rate in [0,100]. Every document a
	// view emits carries the rate fixed when the view was created.
	SampleRate float64

	// Sampler returns a value in [0,100); a session is kept when
	// Sampler() < SampleRate. Defaults to a uniform random draw.
	Sampler func() float64

	IDs          rum.IDGenerator
	WriteContext rum.WriteContextProvider
	Notifier     rum.Notifier
	FirstParty   rum.FirstPartyResolver
	Attributes   rum.AttributesProvider
	Features     *rum.FeatureContexts

	// Vital monitors. Nil monitors are skipped.
	CPU         *vitals.Monitor
	Memory      *vitals.Monitor
	RefreshRate *vitals.Monitor

	// ActionInactivity is how long a non-waiting action stays open after
	// its last interaction. Zero resolves it on the next handled event.
	ActionInactivity time.Duration

	// ActionMaxDuration caps any action. Defaults to DefaultActionMaxDuration.
	ActionMaxDuration time.Duration

	// BackgroundEvents creates a background view for interaction events
	// arriving while no view is active. When false they are dropped.
	BackgroundEvents bool

	// AnnounceViews writes an opening View document when a view starts, so
	// a view is stored as active before its first mutation.
	AnnounceViews bool

	Logger *slog.Logger
}

// WithDefaults returns a copy of e with every nil collaborator replaced by a
// no-op implementation.
func (e Env) WithDefaults() *Env {
	if e.Sampler == nil {
		e.Sampler = func() float64 { return rand.Float64() * 100 }
	}
	if e.IDs == nil {
		e.IDs = rum.UUIDGenerator{}
	}
	if e.WriteContext == nil {
		e.WriteContext = StaticWriteContext{}
	}
	if e.Notifier == nil {
		e.Notifier = noopNotifier{}
	}
	if e.FirstParty == nil {
		e.FirstParty = noFirstParty{}
	}
	if e.Attributes == nil {
		e.Attributes = rum.NewGlobalAttributes(nil)
	}
	if e.Features == nil {
		e.Features = rum.NewFeatureContexts()
	}
	if e.ActionMaxDuration <= 0 {
		e.ActionMaxDuration = DefaultActionMaxDuration
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return &e
}

// StaticWriteContext hands out a fixed snapshot with an in-process batch.
// Used when no storage layer is wired (tests, dry runs).
type StaticWriteContext struct {
	Source rum.SnapshotSource
}

// WithWriteContext implements rum.WriteContextProvider.
func (c StaticWriteContext) WithWriteContext(fn func(snap rum.Snapshot, batch rum.Batch)) {
	var snap rum.Snapshot
	if c.Source != nil {
		snap = c.Source.Snapshot()
	}
	fn(snap, staticBatch{})
}

type staticBatch struct{}

func (staticBatch) BatchID() string { return "static" }

type noopNotifier struct{}

func (noopNotifier) EventSent(string, rum.StorageEvent)    {}
func (noopNotifier) EventDropped(string, rum.StorageEvent) {}

type noFirstParty struct{}

func (noFirstParty) IsFirstPartyURL(string) bool { return false }

// discardWriter accepts and drops every document. Unsampled sessions write
// through it so their state machine still drains.
type discardWriter struct{}

func (discardWriter) Write(rum.Batch, rum.Document) bool { return true }

// write builds one document inside a write context and writes it.
// Writer failures and panics (including panics from the write context
// itself) are recovered and reported as false.
func (e *Env) write(w rum.Writer, build func(snap rum.Snapshot) rum.Document) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("document write panicked", "panic", r)
			ok = false
		}
	}()

	e.WriteContext.WithWriteContext(func(snap rum.Snapshot, batch rum.Batch) {
		doc := build(snap)
		if !w.Write(batch, doc) {
			e.Logger.Warn("document dropped by writer",
				"kind", doc.Kind(),
				"view_id", doc.OwnerViewID(),
			)
			return
		}
		ok = true
	})
	return ok
}

// notify reports a write outcome for a document that holds a pending unit.
func (e *Env) notify(ok bool, viewID string, ev rum.StorageEvent) {
	if ok {
		e.Notifier.EventSent(viewID, ev)
	} else {
		e.Notifier.EventDropped(viewID, ev)
	}
}

// durationGuard clamps non-positive durations to 1ns, warning once.
type durationGuard struct {
	warned bool
}

func (g *durationGuard) clamp(logger *slog.Logger, durationNs int64, subject, name string) int64 {
	if durationNs > 0 {
		return durationNs
	}
	if !g.warned {
		g.warned = true
		logger.Warn("non-positive duration clamped to 1ns",
			"subject", subject,
			"name", name,
			"computed_ns", durationNs,
		)
	}
	return 1
}
