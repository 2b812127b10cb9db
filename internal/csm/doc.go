// Package csm implements the Causal State Machine: a concurrent registry
// mapping state ids to (causal state, action) pairs.
//
// Evaluating a state runs its causaloid against fresh data; when the result
// is a true Boolean with no error, the paired action fires. Firing is the
// only externally observable side effect of evaluation.
//
// CONCURRENCY MODEL:
//
// One sync.RWMutex guards the registry.
// - Every mutation (Add, Update, UpdateAll, Remove) is a single exclusive
// critical section: the existence check and the write never separate.
// - Evaluation copies the pair under the read lock, then evaluates the
// causaloid and fires the action with no lock held. Actions may call
// back into the CSM.
// - EvaluateAll evaluates states in parallel with a bounded worker count.
// Each state is isolated: one failure never stops the others.
//
// ORDERING:
//
// Every evaluation is stamped with a sequence number from a logical Clock
// and an evaluation id from an IDGenerator. Results of EvaluateAll are
// sorted by ascending state id regardless of completion order.
package csm
