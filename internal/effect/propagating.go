package effect

import (
	"fmt"
	"strings"
)

// Propagating is the effect monad: a value, an optional fatal error, and the
// ordered log of diagnostic entries accumulated on the way.
//
// INVARIANTS:
//   - If Err is set, Value is the None placeholder (except after Intervene,
//     which forces a value while keeping the error)
//   - Logs only grow as an effect is bound through successive steps
type Propagating struct {
	Value Value
	Err   error
	Logs  Log
}

// Pure lifts a raw value into a clean effect: no error, empty log.
func Pure(v Value) Propagating {
	return Propagating{Value: OrNone(v)}
}

// Fail creates an errored effect carrying the None placeholder.
func Fail(err error, logs ...Entry) Propagating {
	return Propagating{Value: None{}, Err: err, Logs: Log(nil).Append(logs...)}
}

// Bind sequences f after e.
//
// Short-circuit law: if e carries an error, f is NOT invoked and the result is
// {None, e.Err, e.Logs}. Otherwise the result takes f's value and error, and
// its logs are e.Logs followed by f's logs, preserving temporal order.
func Bind(e Propagating, f func(Value) Propagating) Propagating {
	if e.Err != nil {
		return Propagating{Value: None{}, Err: e.Err, Logs: e.Logs}
	}
	next := f(OrNone(e.Value))
	return Propagating{
		Value: OrNone(next.Value),
		Err:   next.Err,
		Logs:  e.Logs.Append(next.Logs...),
	}
}

// Intervene forces the carried value to v, breaking the causal link to the
// prior step. This is the do() operator.
//
// Unlike Bind, Intervene applies even when e carries an error: it models an
// external action taken regardless of what was observed. The error is kept
// so the failure remains visible, and one intervention entry recording the
// discarded and the forced value is appended.
func Intervene(e Propagating, v Value) Propagating {
	v = OrNone(v)
	msg := fmt.Sprintf("discarded %s, forced %s", Format(e.Value), Format(v))
	if e.Err != nil {
		msg += fmt.Sprintf(" (upstream error kept: %v)", e.Err)
	}
	return Propagating{
		Value: v,
		Err:   e.Err,
		Logs: e.Logs.Append(Entry{
			Source:  SourceMonad,
			Kind:    KindIntervention,
			Message: msg,
		}),
	}
}

// WithEntry returns e with one more log entry appended.
func (e Propagating) WithEntry(entry Entry) Propagating {
	e.Logs = e.Logs.Append(entry)
	return e
}

// OK reports whether the effect carries no error.
func (e Propagating) OK() bool {
	return e.Err == nil
}

// Bool reports the carried truth value. The second result is false when the
// effect errored or does not carry a Boolean.
func (e Propagating) Bool() (bool, bool) {
	if e.Err != nil {
		return false, false
	}
	return AsBool(e.Value)
}

// Explain renders the accumulated log, one line per entry, in append order,
// followed by the final value or error.
func (e Propagating) Explain() string {
	var b strings.Builder
	for _, line := range e.Logs.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if e.Err != nil {
		fmt.Fprintf(&b, "=> error: %v", e.Err)
	} else {
		fmt.Fprintf(&b, "=> %s", Format(e.Value))
	}
	return b.String()
}
