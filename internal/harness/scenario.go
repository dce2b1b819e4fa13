package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rumscope/internal/rum"
)

// Scenario is a scripted sequence of raw events plus the checks applied to
// the documents they produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Settings configures the engine the scenario runs against.
	Settings Settings `yaml:"settings,omitempty"`

	// Steps are enqueued one at a time, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the written documents.
	// Supported types: document_count, document_order, document_field, view_field
	Assertions []Assertion `yaml:"assertions"`
}

// Settings configures the scope environment of a scenario.
type Settings struct {
	ApplicationID string `yaml:"application_id,omitempty"`
	Service       string `yaml:"service,omitempty"`
	Version       string `yaml:"version,omitempty"`

	// SampleRate defaults to 100. A rate of 0 runs the scenario unsampled.
	SampleRate *float64 `yaml:"sample_rate,omitempty"`

	FirstPartyHosts  []string       `yaml:"first_party_hosts,omitempty"`
	BackgroundEvents bool           `yaml:"background_events,omitempty"`
	ActionInactivity time.Duration  `yaml:"action_inactivity,omitempty"`
	GlobalAttributes map[string]any `yaml:"global_attributes,omitempty"`

	// FailKinds makes the writer reject every document of these kinds.
	FailKinds []rum.DocumentKind `yaml:"fail_kinds,omitempty"`
}

// Step is one raw event of a scenario.
type Step struct {
	// After advances the clock before the event is built.
	After time.Duration `yaml:"after,omitempty"`

	// Event is the event name (e.g. "start_view"); see rum.EventNames.
	Event string `yaml:"event"`

	// Fields holds the event payload in its JSON field names.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Build decodes the step into its event. The event is stamped with at unless
// Fields sets time explicitly.
func (s Step) Build(at rum.Time) (rum.Event, error) {
	fields := make(map[string]any, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	if _, ok := fields["time"]; !ok {
		fields["time"] = at
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields of %s: %w", s.Event, err)
	}
	return rum.DecodeEvent(s.Event, func(target any) error {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		return dec.Decode(target)
	})
}

// Assertion validates the written documents.
type Assertion struct {
	// Type specifies the assertion type:
	// - "document_count": Check exactly Count documents match Kind and View
	// - "document_order": Check Kinds appear in order
	// - "document_field": Check Path of the Index-th document matching Kind and View
	// - "view_field": Check Path of the Index-th view document of View
	Type string `yaml:"type"`

	// Kind filters documents by kind. Empty matches all kinds.
	Kind rum.DocumentKind `yaml:"kind,omitempty"`

	// View filters documents by view.name. Empty matches every view.
	View string `yaml:"view,omitempty"`

	// Count is the expected number of matching documents (document_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected kind order (document_order).
	Kinds []rum.DocumentKind `yaml:"kinds,omitempty"`

	// Index picks one matching document. Negative values count from the
	// end. Defaults to 0 for document_field and -1 for view_field.
	Index *int `yaml:"index,omitempty"`

	// Path is a dotted path into the document body (document_field, view_field).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value at Path.
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertDocumentCount = "document_count"
	AssertDocumentOrder = "document_order"
	AssertDocumentField = "document_field"
	AssertViewField     = "view_field"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if rate := s.Settings.SampleRate; rate != nil && (*rate < 0 || *rate > 100) {
		return fmt.Errorf("settings.sample_rate must be within [0,100], got %v", *rate)
	}

	for i, step := range s.Steps {
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required", i)
		}
		if !rum.IsEventName(step.Event) {
			return fmt.Errorf("steps[%d]: unknown event %q", i, step.Event)
		}
		if step.After < 0 {
			return fmt.Errorf("steps[%d]: after must be non-negative", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDocumentCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for document_count", index)
		}
	case AssertDocumentOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for document_order", index)
		}
	case AssertDocumentField, AssertViewField:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
		if a.Type == AssertViewField && a.View == "" {
			return fmt.Errorf("assertions[%d]: view is required for view_field", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
