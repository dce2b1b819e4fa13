package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rumscope/internal/rum"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
settings:
  sample_rate: 42.5
  fail_kinds: [error]
  action_inactivity: 250ms
steps:
  - event: start_view
    fields:
      key: { id: home, name: Home }
  - after: 10ms
    event: add_custom_timing
    fields:
      name: first_paint
assertions:
  - type: view_field
    view: Home
    path: view_detail.custom_timings.first_paint
    expect: 10000000
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, validScenario))
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.NotNil(t, scenario.Settings.SampleRate)
	assert.Equal(t, 42.5, *scenario.Settings.SampleRate)
	assert.Equal(t, []rum.DocumentKind{rum.KindError}, scenario.Settings.FailKinds)
	assert.Equal(t, 250*time.Millisecond, scenario.Settings.ActionInactivity)

	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "start_view", scenario.Steps[0].Event)
	assert.Equal(t, 10*time.Millisecond, scenario.Steps[1].After)
	assert.Equal(t, "first_paint", scenario.Steps[1].Fields["name"])

	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertViewField, scenario.Assertions[0].Type)
	assert.Equal(t, 10000000, scenario.Assertions[0].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "assertion instead of assertions"
steps:
  - event: keep_alive
assertion:
  - type: document_count
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
steps: [{ event: keep_alive }]
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
steps: [{ event: keep_alive }]
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown event",
			content: `
name: n
description: d
steps: [{ event: start_viewing }]
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: `steps[0]: unknown event "start_viewing"`,
		},
		{
			name: "missing event",
			content: `
name: n
description: d
steps: [{ after: 1s }]
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: "steps[0]: event is required",
		},
		{
			name: "sample rate out of range",
			content: `
name: n
description: d
settings: { sample_rate: 120 }
steps: [{ event: keep_alive }]
assertions: [{ type: document_count, count: 0 }]
`,
			wantErr: "settings.sample_rate",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
assertions: [{ type: trace_contains }]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "document_order without kinds",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
assertions: [{ type: document_order }]
`,
			wantErr: "kinds list is required",
		},
		{
			name: "field assertion without path",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
assertions: [{ type: document_field, kind: view, expect: 1 }]
`,
			wantErr: "path is required for document_field",
		},
		{
			name: "field assertion without expect",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
assertions: [{ type: document_field, kind: view, path: date }]
`,
			wantErr: "expect is required for document_field",
		},
		{
			name: "view_field without view",
			content: `
name: n
description: d
steps: [{ event: keep_alive }]
assertions: [{ type: view_field, path: date, expect: 1 }]
`,
			wantErr: "view is required for view_field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStep_Build_StampsClockTime(t *testing.T) {
	at := rum.Time{TimestampMs: 1000, NanoTime: 5}
	step := Step{
		Event: "stop_resource",
		Fields: map[string]any{
			"key":         "r1",
			"status_code": 404,
			"kind":        "fetch",
		},
	}

	ev, err := step.Build(at)
	require.NoError(t, err)

	stop, ok := ev.(rum.StopResource)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "r1", stop.Key)
	require.NotNil(t, stop.StatusCode)
	assert.Equal(t, int64(404), *stop.StatusCode)
	assert.Equal(t, rum.ResourceKindFetch, stop.Kind)
	assert.Equal(t, at, stop.Time)

	_, present := step.Fields["time"]
	assert.False(t, present, "building must not mutate the step")
}

func TestStep_Build_ExplicitTimeWins(t *testing.T) {
	step := Step{
		Event: "keep_alive",
		Fields: map[string]any{
			"time": map[string]any{"timestamp_ms": 7, "nano_time": 9},
		},
	}

	ev, err := step.Build(rum.Time{TimestampMs: 1000})
	require.NoError(t, err)
	assert.Equal(t, rum.Time{TimestampMs: 7, NanoTime: 9}, ev.EventTime())
}

func TestStep_Build_RejectsUnknownField(t *testing.T) {
	step := Step{
		Event:  "start_resource",
		Fields: map[string]any{"key": "r1", "uri": "https://example.com"},
	}

	_, err := step.Build(rum.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode start_resource")
}

func TestStep_Build_NoFields(t *testing.T) {
	ev, err := Step{Event: "keep_alive"}.Build(rum.Time{TimestampMs: 3})
	require.NoError(t, err)
	assert.Equal(t, rum.KeepAlive{Time: rum.Time{TimestampMs: 3}}, ev)
}
