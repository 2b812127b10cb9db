package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/store"
	"github.com/roach88/causaloid/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and evaluation ids.
type Harness struct {
	model   *compiler.Model
	store   *store.Store
	machine *csm.CSM
	clock   *testutil.DeterministicClock
	logger  *slog.Logger

	mu    sync.Mutex
	fired []string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load and compile the CUE model
// 2. Register every state in a CSM auditing into the store
// 3. Execute evaluations with expect validation
// 4. Evaluate assertions against the trace and store
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	model, err := compiler.Load(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		model:  model,
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		logger: testutil.DiscardLogger(),
	}

	h.machine, err = csm.New(model.Pairs(h.action),
		csm.WithLogger(h.logger),
		csm.WithAuditSink(st),
		csm.WithIDGenerator(csm.NewSequenceGenerator(scenario.Name)),
		csm.WithClock(h.clock),
		csm.WithParallelism(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register states: %w", err)
	}

	result := NewResult()
	if err := h.executeEvaluations(ctx, scenario.Evaluations, result); err != nil {
		return nil, fmt.Errorf("failed to execute evaluations: %w", err)
	}
	result.Fired = h.firedStates()

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Machine: h.machine,
		Model:   model,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// action records which state fired. The state name is recorded, not the
// action name, so fire_order assertions read like the scenario.
func (h *Harness) action(s compiler.StateSpec) *csm.CausalAction {
	return csm.NewAction(s.Action, func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.fired = append(h.fired, s.Name)
		return nil
	})
}

func (h *Harness) firedStates() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.fired))
	copy(out, h.fired)
	return out
}

// executeEvaluations runs every step in order and checks expect clauses.
// Evaluation failures are outcomes, not harness errors: they land in the
// trace and are matched by expect.error.
func (h *Harness) executeEvaluations(ctx context.Context, steps []EvaluationStep, result *Result) error {
	for i, step := range steps {
		s, ok := h.model.State(step.State)
		if !ok {
			return fmt.Errorf("evaluation %d: unknown state %q", i, step.State)
		}

		input := s.Data
		if step.Value != nil {
			v, err := effect.FromAny(step.Value)
			if err != nil {
				return fmt.Errorf("evaluation %d: value: %w", i, err)
			}
			input = v
		}

		res, err := h.machine.EvaluateSingleResult(ctx, s.ID, input)
		if csm.IsNotFound(err) {
			return fmt.Errorf("evaluation %d: %w", i, err)
		}

		event := TraceEvent{
			Seq:          res.Seq,
			EvaluationID: res.EvaluationID,
			State:        s.Name,
			StateID:      s.ID,
			Input:        effect.Format(input),
			Fired:        res.Fired,
			Explain:      res.Effect.Explain(),
		}
		if res.Fired {
			event.Action = s.Action
		}
		if err != nil {
			event.Error = err.Error()
		}
		result.Trace = append(result.Trace, event)

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, res, event) {
				result.AddError(msg)
			}
		}

		h.logger.Info("evaluation completed",
			"step", i,
			"state", s.Name,
			"evaluation_id", res.EvaluationID,
			"fired", res.Fired,
		)
	}
	return nil
}

func checkExpect(i int, expect *ExpectClause, res csm.Result, event TraceEvent) []string {
	var errs []string

	if expect.Fired != nil && *expect.Fired != res.Fired {
		errs = append(errs, fmt.Sprintf("evaluation %d (%s): expected fired=%t, got %t\n%s",
			i, event.State, *expect.Fired, res.Fired, event.Explain))
	}

	if expect.Value != nil {
		want, err := effect.FromAny(expect.Value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("evaluation %d (%s): expect.value: %v", i, event.State, err))
		case !effect.Equal(want, res.Effect.Value):
			errs = append(errs, fmt.Sprintf("evaluation %d (%s): expected value %s, got %s",
				i, event.State, effect.Format(want), effect.Format(res.Effect.Value)))
		}
	}

	if expect.Error != "" && !strings.Contains(event.Error, expect.Error) {
		actual := event.Error
		if actual == "" {
			actual = "no error"
		}
		errs = append(errs, fmt.Sprintf("evaluation %d (%s): expected error containing %q, got %s",
			i, event.State, expect.Error, actual))
	}

	return errs
}
