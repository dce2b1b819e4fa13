package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rumscope/internal/rum"
)

// GoldenDir is where golden document streams live, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// DocumentSnapshot captures the complete document stream of a scenario.
// It is serialized with canonical JSON for deterministic comparison.
type DocumentSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	Documents    []DocumentRecord `json:"documents"`
}

// Snapshot returns the canonical JSON golden form of result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return rum.MarshalCanonical(DocumentSnapshot{
		ScenarioName: scenarioName,
		Documents:    result.Documents,
	})
}

// RunWithGolden executes a scenario and compares the document stream
// against a golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden unless opts override it.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the stream doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's documents against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, goldieOptions(opts)...)
	g.Assert(t, scenarioName, data)
	return nil
}

// UpdateGolden writes the golden file of result, replacing any existing one.
func UpdateGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, goldieOptions(opts)...)
	return g.Update(t, scenarioName, data)
}

func goldieOptions(extra []goldie.Option) []goldie.Option {
	return append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, extra...)
}
