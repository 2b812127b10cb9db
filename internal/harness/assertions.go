package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s fired=%t\n", event.Seq, event.State, event.Input, event.Fired)
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the scenario's runtime.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Machine *csm.CSM
	Model   *compiler.Model
}

// assertFiredCount checks how many times the state's action fired.
func assertFiredCount(result *Result, assertion Assertion) error {
	count := 0
	for _, name := range result.Fired {
		if name == assertion.State {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertFiredCount,
			Expected: fmt.Sprintf("%d firings of %s", assertion.Count, assertion.State),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFireOrder checks that the listed states first fired in order.
// Other firings may be interleaved.
func assertFireOrder(result *Result, assertion Assertion) error {
	positions := make(map[string]int)
	for i, name := range result.Fired {
		if _, seen := positions[name]; !seen {
			positions[name] = i + 1 // 1-indexed for readability
		}
	}

	for _, state := range assertion.States {
		if positions[state] == 0 {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("all states fired: %v", assertion.States),
				Actual:   fmt.Sprintf("%s never fired", state),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(assertion.States); i++ {
		prev, curr := assertion.States[i-1], assertion.States[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("firing order: %v", assertion.States),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}

// assertExplainContains checks that some evaluation of the state explains
// itself with the given text.
func assertExplainContains(result *Result, assertion Assertion) error {
	for _, event := range result.Trace {
		if event.State == assertion.State && strings.Contains(event.Explain, assertion.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertExplainContains,
		Expected: fmt.Sprintf("an explanation of %s containing %q", assertion.State, assertion.Text),
		Actual:   "not found",
		Trace:    result.Trace,
	}
}

// assertAuditCount checks the number of audit records persisted for the state.
func assertAuditCount(actx *AssertionContext, assertion Assertion) error {
	s, ok := actx.Model.State(assertion.State)
	if !ok {
		return fmt.Errorf("audit_count: unknown state %q", assertion.State)
	}

	records, err := actx.Store.ReadEvaluations(actx.Ctx, s.ID)
	if err != nil {
		return fmt.Errorf("audit_count: %w", err)
	}
	if len(records) != assertion.Count {
		return &AssertionError{
			Type:     AssertAuditCount,
			Expected: fmt.Sprintf("%d audit records for %s", assertion.Count, assertion.State),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// assertReplayClean replays the audit store against the scenario's CSM.
func assertReplayClean(actx *AssertionContext) error {
	divs, err := actx.Store.Replay(actx.Ctx, actx.Machine)
	if err != nil {
		return fmt.Errorf("replay_clean: %w", err)
	}
	if len(divs) == 0 {
		return nil
	}

	parts := make([]string, len(divs))
	for i, d := range divs {
		parts[i] = fmt.Sprintf("%s (state %d): recorded fired=%t, replayed fired=%t",
			d.EvaluationID, d.StateID, d.RecordedFired, d.ReplayedFired)
	}
	return &AssertionError{
		Type:     AssertReplayClean,
		Expected: "no divergence on replay",
		Actual:   strings.Join(parts, "; "),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFiredCount:
			err = assertFiredCount(result, assertion)
		case AssertFireOrder:
			err = assertFireOrder(result, assertion)
		case AssertExplainContains:
			err = assertExplainContains(result, assertion)
		case AssertAuditCount, AssertReplayClean:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires an audit store", i, assertion.Type)
			} else if assertion.Type == AssertAuditCount {
				err = assertAuditCount(actx, assertion)
			} else {
				err = assertReplayClean(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
