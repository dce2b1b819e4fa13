package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rumscope/internal/engine"
	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/scope"
	"github.com/roach88/rumscope/internal/testutil"
)

// Defaults for scenario settings.
const (
	DefaultApplicationID = "app-harness"
	DefaultSampleRate    = 100.0
)

// Harness is the scenario execution engine.
// It runs scenarios with a manual clock and sequential ids.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.ManualClock
	writer *testutil.MemoryWriter
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine and scope logs to logger. By default they are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds a harness for the settings of scenario.
func New(settings Settings, opts ...Option) *Harness {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	clock := testutil.NewManualClock()
	writer := testutil.NewMemoryWriter(rum.Snapshot{
		Service: settings.Service,
		Version: settings.Version,
	})
	for _, kind := range settings.FailKinds {
		writer.FailKind(kind, true)
	}

	appID := settings.ApplicationID
	if appID == "" {
		appID = DefaultApplicationID
	}
	rate := DefaultSampleRate
	if settings.SampleRate != nil {
		rate = *settings.SampleRate
	}

	env := scope.Env{
		ApplicationID: appID,
		SampleRate:    rate,
		// Every session with a positive rate is kept.
		Sampler:          func() float64 { return 0 },
		IDs:              rum.NewSequenceGenerator("id"),
		WriteContext:     writer,
		FirstParty:       scope.NewHostResolver(settings.FirstPartyHosts...),
		Attributes:       rum.NewGlobalAttributes(settings.GlobalAttributes),
		ActionInactivity: settings.ActionInactivity,
		BackgroundEvents: settings.BackgroundEvents,
		Logger:           o.logger,
	}

	return &Harness{
		engine: engine.New(env, writer, engine.WithNow(clock.Now)),
		clock:  clock,
		writer: writer,
		logger: o.logger,
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine and in-memory writer.
//
// Execution flow:
// 1. Build the engine from the scenario settings
// 2. For each step: advance the clock, enqueue the event, drain the queue
// 3. Collect the written documents
// 4. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := New(scenario.Settings, opts...)

	result, err := h.Execute(context.Background(), scenario.Steps)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// Execute feeds steps through the engine and returns the written documents.
// Assertions are not evaluated.
func (h *Harness) Execute(ctx context.Context, steps []Step) (*Result, error) {
	result := NewResult()

	for i, step := range steps {
		ev, err := step.Build(h.clock.Advance(step.After))
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if !h.engine.Enqueue(ev) {
			return nil, fmt.Errorf("step %d: engine stopped", i)
		}
		handled := h.engine.ProcessPending(ctx)
		result.Handled += handled

		h.logger.Debug("scenario step handled",
			"step", i,
			"event", step.Event,
			"handled", handled,
		)
	}

	docs, err := Records(h.writer.Documents())
	if err != nil {
		return nil, err
	}
	result.Documents = docs
	return result, nil
}

// Engine returns the engine the harness drives.
func (h *Harness) Engine() *engine.Engine {
	return h.engine
}

// Records converts documents into their canonical generic form.
func Records(docs []rum.Document) ([]DocumentRecord, error) {
	records := make([]DocumentRecord, 0, len(docs))
	for i, doc := range docs {
		body, err := canonicalBody(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		records = append(records, DocumentRecord{
			Seq:  i + 1,
			Kind: doc.Kind(),
			Body: body,
		})
	}
	return records, nil
}

func canonicalBody(v any) (map[string]any, error) {
	raw, err := rum.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode canonical document: %w", err)
	}
	return body, nil
}
