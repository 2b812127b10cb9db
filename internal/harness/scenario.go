package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the CUE model file or directory.
	// Relative paths are resolved against the scenario file's directory.
	Model string `yaml:"model"`

	// Evaluations run in order, one CSM evaluation each.
	Evaluations []EvaluationStep `yaml:"evaluations"`

	// Assertions validate the trace and audit store after all evaluations.
	Assertions []Assertion `yaml:"assertions"`
}

// EvaluationStep evaluates one state.
type EvaluationStep struct {
	// State is the state's name in the model.
	State string `yaml:"state"`

	// Value is the input. Scalars and maps follow effect.FromAny; omitting
	// it evaluates the state against its own data.
	Value any `yaml:"value,omitempty"`

	// Expect optionally checks the outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one evaluation.
type ExpectClause struct {
	// Fired is the expected firing decision.
	Fired *bool `yaml:"fired,omitempty"`

	// Value is the expected resolved value, compared with effect.Equal.
	Value any `yaml:"value,omitempty"`

	// Error is a substring the evaluation error must contain.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the audit store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// State names the state (fired_count, explain_contains, audit_count).
	State string `yaml:"state,omitempty"`

	// States is the expected firing order (fire_order).
	States []string `yaml:"states,omitempty"`

	// Count is the expected number (fired_count, audit_count).
	Count int `yaml:"count,omitempty"`

	// Text must appear in an explanation (explain_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertFiredCount      = "fired_count"
	AssertFireOrder       = "fire_order"
	AssertExplainContains = "explain_contains"
	AssertAuditCount      = "audit_count"
	AssertReplayClean     = "replay_clean"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the model path BEFORE validation so existence is checked
	// where the scenario actually points.
	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
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

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model not found: %s", s.Model)
	}

	if len(s.Evaluations) == 0 {
		return fmt.Errorf("evaluations list is required and must be non-empty")
	}

	for i, step := range s.Evaluations {
		if step.State == "" {
			return fmt.Errorf("evaluations[%d]: state is required", i)
		}
		if step.Expect != nil && step.Expect.Fired == nil && step.Expect.Value == nil && step.Expect.Error == "" {
			return fmt.Errorf("evaluations[%d].expect: at least one of fired, value, error is required", i)
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
	case AssertFiredCount, AssertAuditCount:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertFireOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for fire_order", index)
		}
	case AssertExplainContains:
		if a.State == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: state and text are required for explain_contains", index)
		}
	case AssertReplayClean:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
