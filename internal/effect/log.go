package effect

import (
	"fmt"
	"strings"
)

// EntryKind categorizes a log entry.
type EntryKind string

const (
	// KindObservation records a value produced by a causal function.
	KindObservation EntryKind = "observation"

	// KindIntervention records a forced override of the carried value.
	KindIntervention EntryKind = "intervention"

	// KindError records a causal-function failure.
	KindError EntryKind = "error"

	// KindRelay records a graph relay jump or a node skipped by one.
	KindRelay EntryKind = "relay"

	// KindAggregate records the outcome of a collection or graph policy.
	KindAggregate EntryKind = "aggregate"
)

// SourceMonad labels entries written by the composition layer itself.
const SourceMonad = "monad"

// Entry is a single diagnostic log line.
type Entry struct {
	Source  string    `json:"source"` // "causaloid/<id>" or "monad"
	Kind    EntryKind `json:"kind"`
	Message string    `json:"message"`
}

// CausaloidSource returns the Source label for a causaloid id.
func CausaloidSource(id uint64) string {
	return fmt.Sprintf("causaloid/%d", id)
}

// String renders the entry as a single explain line.
func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Source, e.Kind, e.Message)
}

// Log is an ordered, append-only sequence of entries.
type Log []Entry

// Append returns a new Log with entries added after the receiver's entries.
// The receiver's backing array is never written to, so a Log shared by two
// effects cannot be corrupted by appends on either of them.
func (l Log) Append(entries ...Entry) Log {
	out := make(Log, 0, len(l)+len(entries))
	out = append(out, l...)
	return append(out, entries...)
}

// Len returns the number of entries.
func (l Log) Len() int {
	return len(l)
}

// Lines renders every entry, in append order, one line per entry.
func (l Log) Lines() []string {
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = fmt.Sprintf("%d. %s", i+1, e)
	}
	return lines
}

// String joins Lines with newlines.
func (l Log) String() string {
	return strings.Join(l.Lines(), "\n")
}
