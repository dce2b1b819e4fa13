package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/scope"
	"github.com/roach88/rumscope/internal/vitals"
)

// EventLog persists every event the loop handles, keyed by seq.
// Acknowledgements are logged too, so a replay reproduces their interleaving.
// Implemented by *store.Store.
type EventLog interface {
	AppendEvent(ctx context.Context, seq int64, ev rum.Event) error
}

// Engine is the single-writer dispatch point of the scope tree.
//
// The engine handles raw events in FIFO order and hands each one to the
// session scope. Write outcomes reported by the scope tree are turned into
// acknowledgement events and appended to the same queue, so they are handled
// after the event that produced them.
//
// CRITICAL: All scope mutations happen in the single-writer loop goroutine.
// External callers use Enqueue() to submit events for processing.
//
// Thread-safety model:
//   - Enqueue(), Stop(), QueueLen(): safe from any goroutine
//   - Run() or ProcessPending(): must be called from exactly one goroutine
//   - Session(): only from the loop goroutine or after the loop returned
type Engine struct {
	env    *scope.Env
	root   *scope.SessionScope
	writer rum.Writer
	clock  *Clock
	queue  *eventQueue
	now    func() rum.Time
	log    EventLog
	logger *slog.Logger

	// replaying suppresses acknowledgement re-injection; the logged
	// acknowledgements are fed instead.
	replaying bool

	// lastEventTime is the time of the latest event handled. Acknowledgements
	// are never stamped before it, even when event times run ahead of now.
	lastEventTime rum.Time

	samplers []sampler
}

// sampler drives one vital monitor from a platform reader.
type sampler struct {
	kind     VitalKind
	monitor  *vitals.Monitor
	interval time.Duration
	reader   vitals.Reader
}

// VitalKind selects which view vital a sampler feeds.
type VitalKind int

const (
	VitalCPU VitalKind = iota + 1
	VitalMemory
	VitalRefreshRate
)

// String returns the monitor name of the vital.
func (k VitalKind) String() string {
	switch k {
	case VitalCPU:
		return "cpu"
	case VitalMemory:
		return "memory"
	case VitalRefreshRate:
		return "refresh_rate"
	default:
		return "unknown"
	}
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the logical clock. Used to resume numbering after the last
// event already in the log.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNow sets the time source stamped on acknowledgement events.
//
// Default: rum.Now. Tests pass a manual clock so document streams are
// reproducible.
func WithNow(now func() rum.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEventLog persists every event before it is handled.
func WithEventLog(log EventLog) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithVitalReader samples r every interval while Run is active and feeds the
// samples to the matching view vital. The monitor replaces the one already
// set on the Env for that vital.
func WithVitalReader(kind VitalKind, interval time.Duration, r vitals.Reader) EngineOption {
	return func(e *Engine) {
		if kind.String() == "unknown" {
			return
		}
		e.samplers = append(e.samplers, sampler{kind: kind, interval: interval, reader: r})
	}
}

// installMonitors creates one monitor per sampler, logging through the
// resolved Env logger, and sets it on the Env.
func (e *Engine) installMonitors() {
	for i := range e.samplers {
		s := &e.samplers[i]
		s.monitor = vitals.NewMonitor(s.kind.String(), vitals.WithLogger(e.logger))
		switch s.kind {
		case VitalCPU:
			e.env.CPU = s.monitor
		case VitalMemory:
			e.env.Memory = s.monitor
		case VitalRefreshRate:
			e.env.RefreshRate = s.monitor
		}
	}
}

// New creates an Engine writing documents through w.
//
// The engine installs itself as env.Notifier: write outcomes always come
// back through the queue. Every other nil collaborator of env gets its
// default (see scope.Env.WithDefaults).
func New(env scope.Env, w rum.Writer, opts ...EngineOption) *Engine {
	e := &Engine{
		env:    &env,
		writer: w,
		clock:  NewClock(),
		queue:  newEventQueue(),
		now:    rum.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.env.Notifier = e
	e.env = e.env.WithDefaults()
	e.logger = e.env.Logger
	e.installMonitors()
	e.root = scope.NewSessionScope(e.env)

	return e
}

// Env returns the resolved dependency bundle shared by the scope tree.
func (e *Engine) Env() *scope.Env {
	return e.env
}

// Session returns the root scope.
func (e *Engine) Session() *scope.SessionScope {
	return e.root
}

// Clock returns the logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Enqueue submits a raw event for processing by the loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped or ev is nil.
func (e *Engine) Enqueue(ev rum.Event) bool {
	if ev == nil {
		return false
	}
	return e.queue.Enqueue(Event{Raw: ev})
}

// QueueLen returns the number of events waiting to be handled.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// EventSent implements rum.Notifier by queueing the matching acknowledgement.
func (e *Engine) EventSent(viewID string, ev rum.StorageEvent) {
	e.acknowledge(viewID, ev, true)
}

// EventDropped implements rum.Notifier by queueing the matching
// acknowledgement.
func (e *Engine) EventDropped(viewID string, ev rum.StorageEvent) {
	e.acknowledge(viewID, ev, false)
}

func (e *Engine) acknowledge(viewID string, ev rum.StorageEvent, sent bool) {
	if e.replaying {
		return
	}
	ack := rum.AckEvent(viewID, ev, sent, e.ackTime())
	if ack == nil {
		e.logger.Warn("acknowledgement for unknown document kind ignored",
			"kind", ev.Kind,
			"view_id", viewID,
		)
		return
	}
	e.queue.EnqueueInternal(Event{Raw: ack, Ack: true})
}

// ackTime returns now, or the time of the latest handled event when that is
// later. Event times come from the host and may be ahead of the engine clock.
func (e *Engine) ackTime() rum.Time {
	at := e.now()
	if at.NanoTime < e.lastEventTime.NanoTime {
		return e.lastEventTime
	}
	return at
}

// ProcessPending handles queued events synchronously until the queue is
// empty, including acknowledgements produced along the way. Returns the
// number of events handled.
//
// Must not be called while Run is active.
func (e *Engine) ProcessPending(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		event, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		if err := e.processEvent(ctx, event); err != nil {
			e.logEventError(event, err)
		}
		n++
	}
	return n
}

// Run starts the single-writer event loop together with one goroutine per
// configured vital reader. Blocks until ctx is cancelled or Stop() is called
// and the queue is drained.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: On event processing failure, the error is logged with the
// event context and processing continues. A failing event never blocks the
// events queued behind it.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	samplerCtx, stopSamplers := context.WithCancel(gctx)
	defer stopSamplers()

	for _, s := range e.samplers {
		g.Go(func() error {
			err := s.monitor.Run(samplerCtx, s.interval, s.reader)
			if latest, ok := s.monitor.Latest(); ok {
				e.logger.Debug("vital sampler stopped",
					"vital", s.kind.String(),
					"latest", latest,
				)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		defer stopSamplers()
		return e.loop(gctx)
	})

	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	e.logger.Info("engine starting", "session_id", e.root.SessionID())

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				e.logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this case fires
			// immediately once stopped.
			if e.queue.IsClosed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue; Run() returns once queued events and their
// acknowledgements are handled.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent logs and dispatches one event.
// CRITICAL: Called only from the loop goroutine - single-writer guarantee.
func (e *Engine) processEvent(ctx context.Context, event Event) (err error) {
	seq := e.clock.Next()

	if event.Raw == nil {
		return &RuntimeError{
			Code:    ErrCodeInvalidEvent,
			Message: "queued event has no payload",
			Seq:     seq,
		}
	}
	name := rum.EventName(event.Raw)
	if t := event.Raw.EventTime(); t.NanoTime > e.lastEventTime.NanoTime {
		e.lastEventTime = t
	}

	if e.log != nil {
		if logErr := e.log.AppendEvent(ctx, seq, event.Raw); logErr != nil {
			// The event is still handled; only its durable copy is lost.
			e.logEventError(event, &RuntimeError{
				Code:    ErrCodeEventLog,
				Message: logErr.Error(),
				Seq:     seq,
				Event:   name,
			})
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(seq, name, r)
		}
	}()

	e.logger.Debug("processing event",
		"event", name,
		"seq", seq,
		"ack", event.Ack,
	)
	e.root.Handle(event.Raw, e.writer)
	return nil
}

// logEventError logs an event processing failure with full context.
func (e *Engine) logEventError(event Event, err error) {
	if event.Raw == nil {
		e.logger.Error("event processing failed",
			"error", err,
			"note", "event payload was nil",
		)
		return
	}
	e.logger.Error("event processing failed",
		"error", err,
		"event", rum.EventName(event.Raw),
		"ack", event.Ack,
		"timestamp_ms", event.Raw.EventTime().TimestampMs,
	)
}

// isAck reports whether ev is a write acknowledgement.
func isAck(ev rum.Event) bool {
	switch ev.(type) {
	case rum.ResourceSent, rum.ResourceDropped,
		rum.ActionSent, rum.ActionDropped,
		rum.ErrorSent, rum.ErrorDropped,
		rum.LongTaskSent, rum.LongTaskDropped:
		return true
	default:
		return false
	}
}
