package store

import (
	"context"
	"fmt"

	"github.com/roach88/rumscope/internal/rum"
)

// LoggedEvent is one external raw event read back from the log.
type LoggedEvent struct {
	Seq   int64
	Event rum.Event
}

// AppendEvent records ev under the engine's logical clock value seq.
// Appending the same seq twice is a no-op, so a crashed run can be resumed
// from GetLastSeq without duplicating rows.
func (s *Store) AppendEvent(ctx context.Context, seq int64, ev rum.Event) error {
	name, payload, err := rum.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (seq, name, payload, engine_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, seq, name, string(payload), rum.EngineVersion)
	if err != nil {
		return fmt.Errorf("append event %s: %w", name, err)
	}
	return nil
}

// ReadEvents returns every logged event with seq > afterSeq, in seq order.
func (s *Store) ReadEvents(ctx context.Context, afterSeq int64) ([]LoggedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, payload FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var out []LoggedEvent
	for rows.Next() {
		var (
			seq     int64
			name    string
			payload string
		)
		if err := rows.Scan(&seq, &name, &payload); err != nil {
			return nil, fmt.Errorf("read events: scan: %w", err)
		}
		ev, err := rum.DecodeEventJSON(name, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("read events: seq %d: %w", seq, err)
		}
		out = append(out, LoggedEvent{Seq: seq, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return out, nil
}

// GetLastSeq returns the highest seq in the event log, or 0 when empty.
// Used to resume the engine's logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
