package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roach88/rumscope/internal/config"
	"github.com/roach88/rumscope/internal/harness"
	"github.com/roach88/rumscope/internal/rum"
)

// maxEventLine bounds one line of an events file.
const maxEventLine = 1 << 20

// eventLine is one line of an events file.
//
//	{"event": "start_view", "offset": "10ms", "fields": {"key": {"id": "home"}}}
//
// offset is added to the time the command started; fields.time, when set,
// wins over it.
type eventLine struct {
	Event  string         `json:"event"`
	Offset string         `json:"offset,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// ReadEventsFile parses a JSON Lines events file. Blank lines are skipped.
func ReadEventsFile(path string, base rum.Time) ([]rum.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return ParseEvents(data, base)
}

// ParseEvents parses JSON Lines event data.
func ParseEvents(data []byte, base rum.Time) ([]rum.Event, error) {
	var events []rum.Event

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line eventLine
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		at := base
		if line.Offset != "" {
			d, err := time.ParseDuration(line.Offset)
			if err != nil {
				return nil, fmt.Errorf("line %d: offset: %w", lineNo, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("line %d: offset must be non-negative", lineNo)
			}
			at = base.Add(d)
		}

		ev, err := harness.Step{Event: line.Event, Fields: line.Fields}.Build(at)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// loadConfig reads and validates the config at path. An empty path yields
// the defaults under fallbackApp.
func loadConfig(path, fallbackApp string) (*config.Config, error) {
	cfg := config.Default()
	cfg.ApplicationID = fallbackApp
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.Check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
