// Package effect provides the closed effect value union and the propagating
// effect monad threaded through every causal computation.
//
// This package imports nothing internal. Every other internal package builds
// on it, so it stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: only the variants declared in value.go implement it
//   - Propagating effects are values, never shared between evaluations
//   - Logs are append-only; Bind and Intervene never drop entries
//   - After an error, the carried value is the None placeholder
//   - Intervene overrides the value even when an error is present
package effect
