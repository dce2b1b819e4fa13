package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/rumscope/internal/rum"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestView creates a view document with minimal required fields.
func createTestView(viewID string, version int64, active bool) *rum.ViewDocument {
	return &rum.ViewDocument{
		Envelope: rum.Envelope{
			Date:        1_704_067_200_000,
			Application: rum.Application{ID: "app-1"},
			Session:     rum.Session{ID: "session-1", Type: "user"},
			View:        rum.ViewRef{ID: viewID, Name: "Home", URL: "app://home"},
			DD: rum.DDMeta{
				FormatVersion:   rum.FormatVersion,
				DocumentVersion: version,
				SampleRate:      100,
			},
		},
		Type: "view",
		ViewDetail: rum.ViewDetail{
			TimeSpent: 1_000_000,
			IsActive:  active,
		},
	}
}

// createTestError creates an error document owned by viewID.
func createTestError(viewID, message string) *rum.ErrorDocument {
	return &rum.ErrorDocument{
		Envelope: rum.Envelope{
			Date:        1_704_067_200_500,
			Application: rum.Application{ID: "app-1"},
			Session:     rum.Session{ID: "session-1", Type: "user"},
			View:        rum.ViewRef{ID: viewID, URL: "app://home"},
			DD:          rum.DDMeta{FormatVersion: rum.FormatVersion, SampleRate: 100},
		},
		Type: "error",
		Error: rum.ErrorDetail{
			ID:      "error-1",
			Message: message,
			Source:  rum.ErrorSourceSource,
		},
	}
}

// writeInBatch writes docs through sink inside one write context and
// returns the outcome of each write.
func writeInBatch(sink *Sink, docs ...rum.Document) []bool {
	var results []bool
	sink.WithWriteContext(func(_ rum.Snapshot, b rum.Batch) {
		for _, doc := range docs {
			results = append(results, sink.Write(b, doc))
		}
	})
	return results
}

// verifyPragma checks that a pragma reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
