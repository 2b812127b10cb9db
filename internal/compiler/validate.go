package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/topology"
)

// Validation error codes (E200-E299)
const (
	// Causaloid errors (E201-E210)
	ErrDuplicateCausaloidID = "E201" // two causaloids share an id
	ErrUnknownKind          = "E202" // kind is not threshold, range, collection, or graph
	ErrInvalidOperator      = "E203" // threshold op is not a comparison
	ErrUnknownReference     = "E204" // member, node, or edge names an undefined causaloid
	ErrInvalidPolicy        = "E205" // unknown policy or k out of range
	ErrEmptyMembers         = "E206" // collection or graph without members
	ErrInvalidRange         = "E207" // range min > max
	ErrReferenceCycle       = "E208" // causaloids reference each other in a loop
	ErrSelfReference        = "E209" // causaloid lists itself
	ErrDuplicateMember      = "E210" // member listed twice

	// State errors (E211-E219)
	ErrDuplicateStateID = "E211" // two states share an id
	ErrUnknownCausaloid = "E212" // state names an undefined causaloid
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors aggregates every problem Validate found.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

var operators = []string{">", ">=", "<", "<=", "=="}

// Validate checks a parsed model for semantic errors.
// Returns all errors found (does not fail-fast).
func Validate(spec *ModelSpec) []ValidationError {
	var errs []ValidationError

	index := make(map[string]int, len(spec.Causaloids))
	for i, c := range spec.Causaloids {
		index[c.Name] = i
	}

	seenIDs := make(map[uint64]string)
	for _, c := range spec.Causaloids {
		field := "causaloid." + c.Name
		line := c.Pos.Line()

		if prev, dup := seenIDs[c.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("id %d already used by %q", c.ID, prev),
				Code:    ErrDuplicateCausaloidID,
				Line:    line,
			})
		} else {
			seenIDs[c.ID] = c.Name
		}

		switch c.Kind {
		case KindThreshold:
			if !slices.Contains(operators, c.Op) {
				errs = append(errs, ValidationError{
					Field:   field + ".op",
					Message: fmt.Sprintf("invalid operator %q (want one of %s)", c.Op, strings.Join(operators, " ")),
					Code:    ErrInvalidOperator,
					Line:    line,
				})
			}
		case KindRange:
			if c.Min > c.Max {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("min %g is greater than max %g", c.Min, c.Max),
					Code:    ErrInvalidRange,
					Line:    line,
				})
			}
		case KindCollection:
			errs = append(errs, validateRefs(field+".members", line, c.Name, c.Members, index)...)
			errs = append(errs, validatePolicy(field, line, c.Policy, c.K, len(c.Members))...)
		case KindGraph:
			errs = append(errs, validateRefs(field+".nodes", line, c.Name, c.Nodes, index)...)
			errs = append(errs, validateEdges(field+".edges", line, c)...)
			errs = append(errs, validatePolicy(field, line, c.Policy, c.K, len(c.Nodes))...)
		default:
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown kind %q", c.Kind),
				Code:    ErrUnknownKind,
				Line:    line,
			})
		}
	}

	errs = append(errs, validateReferenceCycles(spec, index)...)

	seenStates := make(map[uint64]string)
	for _, s := range spec.States {
		field := "state." + s.Name
		line := s.Pos.Line()

		if prev, dup := seenStates[s.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("id %d already used by %q", s.ID, prev),
				Code:    ErrDuplicateStateID,
				Line:    line,
			})
		} else {
			seenStates[s.ID] = s.Name
		}

		if _, ok := index[s.Causaloid]; !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".causaloid",
				Message: fmt.Sprintf("undefined causaloid %q", s.Causaloid),
				Code:    ErrUnknownCausaloid,
				Line:    line,
			})
		}
	}

	return errs
}

func validateRefs(field string, line int, self string, refs []string, index map[string]int) []ValidationError {
	var errs []ValidationError
	if len(refs) == 0 {
		return []ValidationError{{
			Field:   field,
			Message: "at least one member is required",
			Code:    ErrEmptyMembers,
			Line:    line,
		}}
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		switch {
		case ref == self:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q lists itself", ref),
				Code:    ErrSelfReference,
				Line:    line,
			})
		case seen[ref]:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q listed more than once", ref),
				Code:    ErrDuplicateMember,
				Line:    line,
			})
		default:
			if _, ok := index[ref]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("undefined causaloid %q", ref),
					Code:    ErrUnknownReference,
					Line:    line,
				})
			}
		}
		seen[ref] = true
	}
	return errs
}

func validateEdges(field string, line int, c CausaloidSpec) []ValidationError {
	var errs []ValidationError
	for _, e := range c.Edges {
		for _, end := range e {
			if !slices.Contains(c.Nodes, end) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("edge %s -> %s: %q is not a node of this graph", e[0], e[1], end),
					Code:    ErrUnknownReference,
					Line:    line,
				})
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// Node positions stand in for ids so duplicate ids cannot mask a cycle.
	edges := make([][2]uint64, len(c.Edges))
	for i, e := range c.Edges {
		edges[i] = [2]uint64{
			uint64(slices.Index(c.Nodes, e[0])),
			uint64(slices.Index(c.Nodes, e[1])),
		}
	}
	for _, report := range topology.AnalyzeEdges(edges) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "edge cycle: " + namePath(report.Path, c.Nodes),
			Code:    ErrReferenceCycle,
			Line:    line,
		})
	}
	return errs
}

func validatePolicy(field string, line int, name string, k, n int) []ValidationError {
	p, err := parsePolicyName(name, k)
	if err == nil && p.Mode == causaloid.ModeAtLeast && (k < 1 || k > n) {
		err = fmt.Errorf("at_least needs 1 <= k <= %d, got %d", n, k)
	}
	if err != nil {
		return []ValidationError{{
			Field:   field + ".policy",
			Message: err.Error(),
			Code:    ErrInvalidPolicy,
			Line:    line,
		}}
	}
	return nil
}

// validateReferenceCycles rejects composites that contain themselves
// through other composites. Member → composite edges are checked with the
// same cycle analysis used for graphs.
func validateReferenceCycles(spec *ModelSpec, index map[string]int) []ValidationError {
	names := make([]string, len(spec.Causaloids))
	var edges [][2]uint64
	for i, c := range spec.Causaloids {
		names[i] = c.Name
		for _, ref := range references(c) {
			j, ok := index[ref]
			if !ok || ref == c.Name {
				continue // reported as E204 / E209
			}
			edges = append(edges, [2]uint64{uint64(j), uint64(i)})
		}
	}

	var errs []ValidationError
	for _, report := range topology.AnalyzeEdges(edges) {
		first := spec.Causaloids[report.Nodes[0]]
		errs = append(errs, ValidationError{
			Field:   "causaloid." + first.Name,
			Message: "reference cycle: " + namePath(report.Path, names),
			Code:    ErrReferenceCycle,
			Line:    first.Pos.Line(),
		})
	}
	return errs
}

// references lists the causaloids a composite is built from.
func references(c CausaloidSpec) []string {
	switch c.Kind {
	case KindCollection:
		return c.Members
	case KindGraph:
		return c.Nodes
	default:
		return nil
	}
}

func namePath(path []uint64, names []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = names[p]
	}
	return strings.Join(parts, " -> ")
}

func parsePolicyName(name string, k int) (causaloid.Policy, error) {
	switch name {
	case "", "chain":
		return causaloid.Chain(), nil
	case "all":
		return causaloid.All(), nil
	case "any":
		return causaloid.Any(), nil
	case "none":
		return causaloid.NoneOf(), nil
	case "at_least":
		return causaloid.AtLeast(k), nil
	default:
		return causaloid.Policy{}, fmt.Errorf("unknown policy %q (want chain, all, any, none, or at_least)", name)
	}
}
