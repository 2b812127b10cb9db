package causaloid

import "fmt"

// Mode selects how a collection or graph combines its members.
type Mode int

const (
	// ModeChain folds members in order: each receives the previous output.
	ModeChain Mode = iota
	// ModeAll is true when every member is true.
	ModeAll
	// ModeAny is true when at least one member is true.
	ModeAny
	// ModeAtLeast is true when at least K members are true.
	ModeAtLeast
	// ModeNone is true when no member is true.
	ModeNone
)

// Policy is an aggregation rule for collections and graphs.
type Policy struct {
	Mode Mode
	K    int // quorum for ModeAtLeast
}

// Chain returns the pure-fold policy.
func Chain() Policy { return Policy{Mode: ModeChain} }

// All returns the conjunction policy.
func All() Policy { return Policy{Mode: ModeAll} }

// Any returns the disjunction policy.
func Any() Policy { return Policy{Mode: ModeAny} }

// AtLeast returns the quorum policy.
func AtLeast(k int) Policy { return Policy{Mode: ModeAtLeast, K: k} }

// NoneOf returns the "no member true" policy.
func NoneOf() Policy { return Policy{Mode: ModeNone} }

// Boolean reports whether the policy aggregates boolean member outputs.
func (p Policy) Boolean() bool {
	return p.Mode != ModeChain
}

// String renders the policy for log lines.
func (p Policy) String() string {
	switch p.Mode {
	case ModeChain:
		return "chain"
	case ModeAll:
		return "all"
	case ModeAny:
		return "any"
	case ModeAtLeast:
		return fmt.Sprintf("at_least(%d)", p.K)
	case ModeNone:
		return "none"
	default:
		return fmt.Sprintf("mode(%d)", int(p.Mode))
	}
}

// validate checks the policy against a member count.
func (p Policy) validate(n int) error {
	switch p.Mode {
	case ModeChain, ModeAll, ModeAny, ModeNone:
		return nil
	case ModeAtLeast:
		if p.K < 1 || p.K > n {
			return fmt.Errorf("at_least(%d) needs 1 <= k <= %d", p.K, n)
		}
		return nil
	default:
		return fmt.Errorf("unknown policy mode %d", int(p.Mode))
	}
}

// decide reports the policy outcome once it no longer depends on the
// members not yet evaluated. trues counts true members among the evaluated
// ones; n is the total member count.
//
// Stopping as soon as decided is true yields the same outcome as
// evaluating every member.
func (p Policy) decide(trues, evaluated, n int) (outcome, decided bool) {
	falses := evaluated - trues
	remaining := n - evaluated
	switch p.Mode {
	case ModeAll:
		if falses > 0 {
			return false, true
		}
		return true, remaining == 0
	case ModeAny:
		if trues > 0 {
			return true, true
		}
		return false, remaining == 0
	case ModeAtLeast:
		if trues >= p.K {
			return true, true
		}
		if trues+remaining < p.K {
			return false, true
		}
		return false, false
	case ModeNone:
		if trues > 0 {
			return false, true
		}
		return true, remaining == 0
	default:
		return false, false
	}
}
