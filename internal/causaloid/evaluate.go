package causaloid

import (
	"fmt"

	"github.com/roach88/causaloid/internal/effect"
)

// Evaluate runs the causaloid against e and returns the resulting effect.
//
// If e already carries an error, the causaloid is not evaluated and the
// error propagates unchanged. Evaluation never mutates the causaloid and
// never panics: a panic inside a causal function is recovered and returned
// in the error channel. Every evaluated node appends one log entry.
func (c *Causaloid) Evaluate(e effect.Propagating) effect.Propagating {
	return c.evaluate(nil, e)
}

// EvaluateWith is Evaluate with ctx replacing the context bound to every
// context-aware singleton reached during evaluation. A nil ctx keeps the
// bound contexts.
func (c *Causaloid) EvaluateWith(ctx Context, e effect.Propagating) effect.Propagating {
	return c.evaluate(ctx, e)
}

func (c *Causaloid) evaluate(override Context, e effect.Propagating) effect.Propagating {
	return effect.Bind(e, func(in effect.Value) effect.Propagating {
		switch {
		case c.kind == KindSingleton:
			return c.evalSingleton(override, in)
		case c.policy.Boolean():
			return c.evalPolicy(override, in)
		default:
			return c.evalChain(override, in)
		}
	})
}

func (c *Causaloid) evalSingleton(override Context, in effect.Value) effect.Propagating {
	out, err := c.call(override, in)
	if err != nil {
		return effect.Fail(
			&FunctionError{CausaloidID: c.id, Err: err},
			c.entry(effect.KindError, fmt.Sprintf("%s: %s failed: %v", c.label(), effect.Format(in), err)),
		)
	}
	out = effect.OrNone(out)
	return effect.Propagating{
		Value: out,
		Logs: effect.Log{c.entry(effect.KindObservation,
			fmt.Sprintf("%s: %s → %s", c.label(), effect.Format(in), effect.Format(out)))},
	}
}

// call invokes the causal function, converting a panic into an error.
func (c *Causaloid) call(override Context, in effect.Value) (out effect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if c.ctxFn != nil {
		ctx := c.ctx
		if override != nil {
			ctx = override
		}
		return c.ctxFn(in, ctx)
	}
	return c.fn(in)
}

// evalChain folds members in order, each receiving the previous output.
// A RelayTo output jumps forward to its target with the boxed value.
func (c *Causaloid) evalChain(override Context, in effect.Value) effect.Propagating {
	var logs effect.Log
	cur := in
	evaluated := 0

	for i := 0; i < len(c.members); i++ {
		m, ok := c.arena.Get(c.members[i])
		if !ok {
			return c.abort(logs, ErrCodeMissingMember, fmt.Sprintf("member %d vanished from arena", c.members[i]))
		}

		r := m.evaluate(override, effect.Pure(cur))
		logs = logs.Append(r.Logs...)
		evaluated++
		if r.Err != nil {
			return effect.Propagating{Value: effect.None{}, Err: r.Err, Logs: logs}
		}

		relay, isRelay := r.Value.(effect.RelayTo)
		if !isRelay {
			cur = r.Value
			continue
		}

		pos, known := c.positions[relay.Target]
		if !known || pos <= i {
			return c.abort(logs, ErrCodeInvalidRelay,
				fmt.Sprintf("node %d relayed to %d, which is not later in the evaluation order", m.id, relay.Target))
		}
		for _, skipped := range c.members[i+1 : pos] {
			logs = logs.Append(c.entry(effect.KindRelay,
				fmt.Sprintf("skipped node %d (relay %d → %d)", skipped, m.id, relay.Target)))
		}
		logs = logs.Append(c.entry(effect.KindRelay,
			fmt.Sprintf("node %d relayed %s to node %d", m.id, effect.Format(relay.Value), relay.Target)))

		cur = effect.OrNone(relay.Value)
		i = pos - 1
	}

	logs = logs.Append(c.entry(effect.KindAggregate,
		fmt.Sprintf("%s: chain → %s (%d of %d members evaluated)", c.label(), effect.Format(cur), evaluated, len(c.members))))
	return effect.Propagating{Value: cur, Logs: logs}
}

// evalPolicy evaluates each member against the same input and combines the
// boolean outputs. Evaluation stops once the outcome no longer depends on
// the remaining members.
func (c *Causaloid) evalPolicy(override Context, in effect.Value) effect.Propagating {
	var logs effect.Log
	n := len(c.members)
	trues := 0

	for i, id := range c.members {
		m, ok := c.arena.Get(id)
		if !ok {
			return c.abort(logs, ErrCodeMissingMember, fmt.Sprintf("member %d vanished from arena", id))
		}

		r := m.evaluate(override, effect.Pure(in))
		logs = logs.Append(r.Logs...)
		if r.Err != nil {
			return effect.Propagating{Value: effect.None{}, Err: r.Err, Logs: logs}
		}

		b, isBool := effect.AsBool(r.Value)
		if !isBool {
			return c.abort(logs, ErrCodeNonBoolean,
				fmt.Sprintf("member %d produced %s under policy %s", id, effect.Format(r.Value), c.policy))
		}
		if b {
			trues++
		}

		if outcome, decided := c.policy.decide(trues, i+1, n); decided {
			logs = logs.Append(c.entry(effect.KindAggregate,
				fmt.Sprintf("%s: %s → %t (%d true, %d of %d members evaluated)", c.label(), c.policy, outcome, trues, i+1, n)))
			return effect.Propagating{Value: effect.Boolean(outcome), Logs: logs}
		}
	}

	// decide always settles once every member has been evaluated.
	return c.abort(logs, ErrCodeNonBoolean, fmt.Sprintf("policy %s left undecided", c.policy))
}

// abort returns an errored effect carrying logs plus one error entry.
func (c *Causaloid) abort(logs effect.Log, code EvalErrorCode, msg string) effect.Propagating {
	err := &EvalError{Code: code, CausaloidID: c.id, Message: msg}
	return effect.Propagating{
		Value: effect.None{},
		Err:   err,
		Logs:  logs.Append(c.entry(effect.KindError, msg)),
	}
}

func (c *Causaloid) entry(kind effect.EntryKind, msg string) effect.Entry {
	return effect.Entry{Source: effect.CausaloidSource(c.id), Kind: kind, Message: msg}
}

func (c *Causaloid) label() string {
	if c.description != "" {
		return c.description
	}
	return c.kind.String()
}
