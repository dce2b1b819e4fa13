package engine

import (
	"context"
	"fmt"

	"github.com/roach88/rumscope/internal/store"
)

// # Replay
//
// The event log holds every event the loop handled, acknowledgements
// included, numbered by the logical clock. Replay feeds them back in seq
// order with acknowledgement re-injection switched off, so each logged
// acknowledgement lands exactly where it did in the live run.
//
// View, action and resource ids come from the Env's IDGenerator. A replay
// reproduces the live document stream when the replaying engine draws the
// same ids and sampling decisions, e.g. rum.NewSequenceGenerator and a fixed
// Sampler in tests, since acknowledgements refer to views by id.
//
// A replaying engine must not carry an event log of its own, otherwise the
// replayed events would be appended a second time.

// EventSource is the read side of an event log.
// Implemented by *store.Store.
type EventSource interface {
	ReadEvents(ctx context.Context, afterSeq int64) ([]store.LoggedEvent, error)
}

// Replay handles every event of src with seq > afterSeq and returns the
// number of logged events fed.
//
// Must not be called while Run is active.
func (e *Engine) Replay(ctx context.Context, src EventSource, afterSeq int64) (int, error) {
	if e.log != nil {
		return 0, fmt.Errorf("replay: engine has an event log attached")
	}

	events, err := src.ReadEvents(ctx, afterSeq)
	if err != nil {
		return 0, fmt.Errorf("replay: read events: %w", err)
	}

	e.logger.Info("replay starting",
		"events", len(events),
		"after_seq", afterSeq,
	)

	e.replaying = true
	defer func() { e.replaying = false }()

	fed := 0
	for _, logged := range events {
		if err := ctx.Err(); err != nil {
			return fed, err
		}
		if !e.queue.Enqueue(Event{Raw: logged.Event, Ack: isAck(logged.Event)}) {
			return fed, fmt.Errorf("replay: engine stopped at seq %d", logged.Seq)
		}
		e.ProcessPending(ctx)
		fed++
	}

	e.logger.Info("replay finished", "events", fed)
	return fed, nil
}
