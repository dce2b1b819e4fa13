package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/rumscope/internal/rum"
)

// MemoryWriter is an in-memory document sink implementing both rum.Writer
// and rum.WriteContextProvider.
//
// Failures can be injected per document kind: FailKind makes Write return
// false, PanicOnKind makes it panic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryWriter struct {
	mu       sync.Mutex
	snapshot rum.Snapshot
	docs     []rum.Document
	batches  int
	fail     map[rum.DocumentKind]bool
	panics   map[rum.DocumentKind]bool
}

// NewMemoryWriter creates a writer handing out snap with every batch.
func NewMemoryWriter(snap rum.Snapshot) *MemoryWriter {
	return &MemoryWriter{
		snapshot: snap,
		fail:     make(map[rum.DocumentKind]bool),
		panics:   make(map[rum.DocumentKind]bool),
	}
}

type memoryBatch int

func (b memoryBatch) BatchID() string { return fmt.Sprintf("memory-%d", int(b)) }

// WithWriteContext implements rum.WriteContextProvider.
func (m *MemoryWriter) WithWriteContext(fn func(snap rum.Snapshot, batch rum.Batch)) {
	m.mu.Lock()
	m.batches++
	snap := m.snapshot
	batch := memoryBatch(m.batches)
	m.mu.Unlock()

	fn(snap, batch)
}

// Write implements rum.Writer.
func (m *MemoryWriter) Write(_ rum.Batch, doc rum.Document) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panics[doc.Kind()] {
		panic(fmt.Sprintf("memory writer: injected panic for %s", doc.Kind()))
	}
	if m.fail[doc.Kind()] {
		return false
	}
	m.docs = append(m.docs, doc)
	return true
}

// SetSnapshot replaces the snapshot handed out with future batches.
func (m *MemoryWriter) SetSnapshot(snap rum.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
}

// FailKind makes writes of kind return false (or succeed again with fail=false).
func (m *MemoryWriter) FailKind(kind rum.DocumentKind, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[kind] = fail
}

// PanicOnKind makes writes of kind panic.
func (m *MemoryWriter) PanicOnKind(kind rum.DocumentKind, panics bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[kind] = panics
}

// Documents returns every persisted document in write order.
func (m *MemoryWriter) Documents() []rum.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rum.Document(nil), m.docs...)
}

// Count returns how many documents of kind were persisted.
func (m *MemoryWriter) Count(kind rum.DocumentKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.Kind() == kind {
			n++
		}
	}
	return n
}

// Views returns every persisted view document in write order.
func (m *MemoryWriter) Views() []*rum.ViewDocument {
	return documentsOf[*rum.ViewDocument](m)
}

// Resources returns every persisted resource document in write order.
func (m *MemoryWriter) Resources() []*rum.ResourceDocument {
	return documentsOf[*rum.ResourceDocument](m)
}

// Actions returns every persisted action document in write order.
func (m *MemoryWriter) Actions() []*rum.ActionDocument {
	return documentsOf[*rum.ActionDocument](m)
}

// Errors returns every persisted error document in write order.
func (m *MemoryWriter) Errors() []*rum.ErrorDocument {
	return documentsOf[*rum.ErrorDocument](m)
}

// LongTasks returns every persisted long task document in write order.
func (m *MemoryWriter) LongTasks() []*rum.LongTaskDocument {
	return documentsOf[*rum.LongTaskDocument](m)
}

// LastView returns the latest view document written for viewID, or nil.
func (m *MemoryWriter) LastView(viewID string) *rum.ViewDocument {
	views := m.Views()
	for i := len(views) - 1; i >= 0; i-- {
		if views[i].View.ID == viewID {
			return views[i]
		}
	}
	return nil
}

// Reset forgets every persisted document.
func (m *MemoryWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
}

func documentsOf[T rum.Document](m *MemoryWriter) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []T
	for _, d := range m.docs {
		if typed, ok := d.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
