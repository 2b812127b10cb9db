package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Render writes the snapshot as plain text: a header line, then one block
// per evaluation holding its outcome and full explanation.
func (s *TraceSnapshot) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", s.ScenarioName)
	for _, ev := range s.Trace {
		fmt.Fprintf(&buf, "\n[%d] %s %s (state %d)\n", ev.Seq, ev.EvaluationID, ev.State, ev.StateID)
		fmt.Fprintf(&buf, "input: %s\n", ev.Input)
		if ev.Fired {
			fmt.Fprintf(&buf, "fired: %s\n", ev.Action)
		} else {
			buf.WriteString("fired: no\n")
		}
		if ev.Error != "" {
			fmt.Fprintf(&buf, "error: %s\n", ev.Error)
		}
		buf.WriteString(ev.Explain)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot.Render())
}
