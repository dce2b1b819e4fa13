package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rumscope/internal/rum"
)

func float64Ptr(v float64) *float64 { return &v }

func homeSteps() []Step {
	home := map[string]any{"id": "home", "name": "Home"}
	return []Step{
		{Event: "start_view", Fields: map[string]any{"key": home}},
		{Event: "start_resource", Fields: map[string]any{"key": "r1", "url": "https://api.example.com/cart"}},
		{After: 40 * time.Millisecond, Event: "stop_resource", Fields: map[string]any{"key": "r1", "status_code": 200}},
		{After: 10 * time.Millisecond, Event: "stop_view", Fields: map[string]any{"key": home}},
	}
}

func TestRun_Pass(t *testing.T) {
	scenario, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Handled)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, rum.KindView, result.Documents[0].Kind)
	assert.Equal(t, "Home", result.Documents[0].ViewName())
}

func TestRun_Fail(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "expects a resource that is never written",
		Steps:       homeSteps()[:1],
		Assertions: []Assertion{
			{Type: AssertDocumentCount, Kind: rum.KindResource, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: document_count")
}

func TestRun_BuildError(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_fields",
		Description: "unknown field in a step",
		Steps: []Step{
			{Event: "start_view", Fields: map[string]any{"key": map[string]any{"id": "a"}, "colour": "red"}},
		},
		Assertions: []Assertion{{Type: AssertDocumentCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario bad_fields: step 0")
}

func TestHarness_Execute_DrainsAcknowledgements(t *testing.T) {
	h := New(Settings{Service: "shop"})

	result, err := h.Execute(context.Background(), homeSteps())
	require.NoError(t, err)

	// 4 steps plus the resource acknowledgement.
	assert.Equal(t, 5, result.Handled)

	kinds := make([]rum.DocumentKind, len(result.Documents))
	for i, d := range result.Documents {
		kinds[i] = d.Kind
		assert.Equal(t, i+1, d.Seq)
	}
	assert.Equal(t, []rum.DocumentKind{rum.KindResource, rum.KindView, rum.KindView}, kinds)

	last := result.Documents[2]
	active, _ := lookupPath(last.Body, "view_detail.is_active")
	assert.Equal(t, false, active)
	service, _ := lookupPath(last.Body, "service")
	assert.Equal(t, "shop", service)
	app, _ := lookupPath(last.Body, "application.id")
	assert.Equal(t, DefaultApplicationID, app)

	assert.Empty(t, h.Engine().Session().Views(), "view terminated")
}

func TestHarness_UnsampledScenarioWritesNothing(t *testing.T) {
	h := New(Settings{SampleRate: float64Ptr(0)})

	result, err := h.Execute(context.Background(), homeSteps())
	require.NoError(t, err)

	assert.Empty(t, result.Documents)
	assert.Equal(t, 5, result.Handled, "unsampled sessions still drain")
}

func TestHarness_FailKinds(t *testing.T) {
	h := New(Settings{FailKinds: []rum.DocumentKind{rum.KindResource}})

	result, err := h.Execute(context.Background(), homeSteps())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Count(rum.KindResource))
	assert.Equal(t, 2, result.Count(rum.KindView))
	count, _ := lookupPath(result.Documents[1].Body, "view_detail.resource.count")
	assert.Equal(t, json.Number("0"), count)
}

func TestHarness_FirstPartyHosts(t *testing.T) {
	h := New(Settings{FirstPartyHosts: []string{"example.com"}})

	result, err := h.Execute(context.Background(), homeSteps())
	require.NoError(t, err)

	provider, ok := lookupPath(result.Documents[0].Body, "resource.provider.type")
	require.True(t, ok)
	assert.Equal(t, "first_party", provider)
}

func TestHarness_WithLogger(t *testing.T) {
	var logs bytes.Buffer
	h := New(Settings{}, WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))))

	_, err := h.Execute(context.Background(), homeSteps()[:1])
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "scenario step handled")
}

func TestRecords_AreDeterministic(t *testing.T) {
	first, err := New(Settings{}).Execute(context.Background(), homeSteps())
	require.NoError(t, err)
	second, err := New(Settings{}).Execute(context.Background(), homeSteps())
	require.NoError(t, err)

	a, err := Snapshot("home", first)
	require.NoError(t, err)
	b, err := Snapshot("home", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
