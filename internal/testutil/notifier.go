package testutil

import (
	"sync"

	"github.com/roach88/rumscope/internal/rum"
)

// Outcome is one write outcome recorded by RecordingNotifier.
type Outcome struct {
	ViewID string
	Event  rum.StorageEvent
	Sent   bool
}

// RecordingNotifier records write outcomes so tests can replay them into a
// scope as acknowledgement events.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewRecordingNotifier creates an empty notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// EventSent implements rum.Notifier.
func (n *RecordingNotifier) EventSent(viewID string, ev rum.StorageEvent) {
	n.record(Outcome{ViewID: viewID, Event: ev, Sent: true})
}

// EventDropped implements rum.Notifier.
func (n *RecordingNotifier) EventDropped(viewID string, ev rum.StorageEvent) {
	n.record(Outcome{ViewID: viewID, Event: ev, Sent: false})
}

func (n *RecordingNotifier) record(o Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

// Outcomes returns every recorded outcome without clearing.
func (n *RecordingNotifier) Outcomes() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Outcome(nil), n.outcomes...)
}

// Drain converts recorded outcomes into acknowledgement events stamped at,
// in record order, and clears them.
func (n *RecordingNotifier) Drain(at rum.Time) []rum.Event {
	n.mu.Lock()
	outcomes := n.outcomes
	n.outcomes = nil
	n.mu.Unlock()

	events := make([]rum.Event, 0, len(outcomes))
	for _, o := range outcomes {
		if ev := rum.AckEvent(o.ViewID, o.Event, o.Sent, at); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}
