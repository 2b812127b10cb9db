package csm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/causaloid/internal/effect"
)

// Result is the outcome of evaluating one state.
type Result struct {
	StateID      uint64
	Version      uint32
	EvaluationID string
	Seq          int64

	// Fired is true when the action was invoked, even if it then failed.
	Fired bool

	// Effect is the causaloid's resolved effect; Effect.Explain() says why.
	Effect effect.Propagating

	// Err is nil, *EvaluationError, *ActionError, or a context error.
	Err error
}

// EvaluateSingle evaluates the state registered under id against data and
// fires its action if the causaloid resolves to true with no error.
//
// Returns whether the action fired. A NOT_FOUND error means nothing was
// evaluated. An *ActionError comes with fired == true.
func (c *CSM) EvaluateSingle(ctx context.Context, id uint64, data effect.Value) (bool, error) {
	e, ok := c.lookup(id)
	if !ok {
		return false, newRegistryError(ErrCodeNotFound, id)
	}
	res := c.run(ctx, e, data)
	return res.Fired, res.Err
}

// EvaluateSingleResult is EvaluateSingle returning the full Result.
func (c *CSM) EvaluateSingleResult(ctx context.Context, id uint64, data effect.Value) (Result, error) {
	e, ok := c.lookup(id)
	if !ok {
		return Result{StateID: id}, newRegistryError(ErrCodeNotFound, id)
	}
	res := c.run(ctx, e, data)
	return res, res.Err
}

// EvaluateAll evaluates every registered state. A state with an entry in
// data is evaluated against it; any other state is evaluated against its
// own Data snapshot.
//
// States are isolated: a failing state never prevents the others from
// being evaluated. Results are sorted by ascending state id. The returned
// error joins every per-state failure plus a NOT_FOUND error for each id
// in data that is not registered.
func (c *CSM) EvaluateAll(ctx context.Context, data map[uint64]effect.Value) ([]Result, error) {
	entries := c.snapshot()

	ctx, span := tracer.Start(ctx, "csm.EvaluateAll",
		trace.WithAttributes(
			attribute.Int("csm.states", len(entries)),
			attribute.Int("csm.inputs", len(data)),
		),
	)
	defer span.End()

	var errs []error
	registered := make(map[uint64]struct{}, len(entries))
	for _, e := range entries {
		registered[e.state.ID] = struct{}{}
	}
	unknown := make([]uint64, 0)
	for id := range data {
		if _, ok := registered[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	slices.Sort(unknown)
	for _, id := range unknown {
		errs = append(errs, newRegistryError(ErrCodeNotFound, id))
	}

	results := make([]Result, len(entries))
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, e := range entries {
		input, ok := data[e.state.ID]
		if !ok {
			input = e.state.Data
		}
		g.Go(func() error {
			results[i] = c.run(ctx, e, input)
			return nil // isolation: failures are carried in the Result
		})
	}
	_ = g.Wait()

	fired := 0
	for _, r := range results {
		if r.Fired {
			fired++
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	span.SetAttributes(attribute.Int("csm.fired", fired))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d evaluations failed", len(errs), len(entries)+len(unknown)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	c.logger.Info("evaluated all states",
		slog.Int("states", len(entries)),
		slog.Int("fired", fired),
		slog.Int("errors", len(errs)),
	)
	return results, err
}

// Explain evaluates the state registered under id against data without
// firing its action.
func (c *CSM) Explain(id uint64, data effect.Value) (effect.Propagating, error) {
	e, ok := c.lookup(id)
	if !ok {
		return effect.Propagating{}, newRegistryError(ErrCodeNotFound, id)
	}
	return e.state.Evaluate(data), nil
}

// run evaluates one copied entry. No lock is held here.
func (c *CSM) run(ctx context.Context, e entry, data effect.Value) Result {
	res := Result{
		StateID:      e.state.ID,
		Version:      e.state.Version,
		EvaluationID: c.ids.Generate(),
		Seq:          c.clock.Next(),
	}

	ctx, span := tracer.Start(ctx, "csm.EvaluateSingle",
		trace.WithAttributes(
			attribute.Int64("csm.state_id", int64(e.state.ID)),
			attribute.Int64("csm.state_version", int64(e.state.Version)),
			attribute.String("csm.evaluation_id", res.EvaluationID),
		),
	)
	defer span.End()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		res.Effect = effect.Fail(err)
		res.Err = fmt.Errorf("state %d: %w", e.state.ID, err)
	} else {
		res.Effect = e.state.Evaluate(data)
		c.decide(&res, e)
	}

	span.SetAttributes(attribute.Bool("csm.fired", res.Fired))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	c.audit(ctx, res, data)
	c.metrics.record(ctx, res, time.Since(start).Seconds())
	return res
}

// decide fires the action when the effect resolved to true with no error.
func (c *CSM) decide(res *Result, e entry) {
	if res.Effect.Err != nil {
		res.Err = &EvaluationError{StateID: e.state.ID, Err: res.Effect.Err, Trace: res.Effect.Explain()}
		c.logger.Warn("state evaluation failed",
			slog.Uint64("state_id", e.state.ID),
			slog.String("error", res.Effect.Err.Error()),
		)
		return
	}

	active, isBool := res.Effect.Bool()
	if !isBool {
		c.logger.Debug("state resolved to non-boolean, action not fired",
			slog.Uint64("state_id", e.state.ID),
			slog.String("value", effect.Format(res.Effect.Value)),
		)
		return
	}
	if !active {
		return
	}

	res.Fired = true
	if err := e.action.Fire(); err != nil {
		res.Err = &ActionError{StateID: e.state.ID, Action: e.action.Name(), Err: err}
		c.logger.Warn("action failed",
			slog.Uint64("state_id", e.state.ID),
			slog.String("action", e.action.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Debug("action fired",
		slog.Uint64("state_id", e.state.ID),
		slog.String("action", e.action.Name()),
	)
}

// audit hands the record to the sink. Sink failures are logged and never
// change the evaluation outcome.
func (c *CSM) audit(ctx context.Context, res Result, input effect.Value) {
	if c.sink == nil {
		return
	}
	// Context errors must not drop the audit trail of a cancelled run.
	if err := c.sink.RecordEvaluation(context.WithoutCancel(ctx), newAuditRecord(res, input)); err != nil {
		c.logger.Error("failed to record evaluation",
			slog.Uint64("state_id", res.StateID),
			slog.String("evaluation_id", res.EvaluationID),
			slog.String("error", err.Error()),
		)
	}
}
