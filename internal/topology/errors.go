package topology

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// StructuralErrorCode categorizes graph construction errors.
type StructuralErrorCode string

const (
	// ErrCodeCycle indicates the edges contain a cycle or a self loop.
	ErrCodeCycle StructuralErrorCode = "CYCLE"

	// ErrCodeUnknownNode indicates an edge references a node that was never added.
	ErrCodeUnknownNode StructuralErrorCode = "UNKNOWN_NODE"

	// ErrCodeDuplicateNode indicates the same node id was added twice.
	ErrCodeDuplicateNode StructuralErrorCode = "DUPLICATE_NODE"

	// ErrCodeEmptyGraph indicates Build was called without nodes.
	ErrCodeEmptyGraph StructuralErrorCode = "EMPTY_GRAPH"
)

// StructuralError is a construction-time rejection of a graph.
// It is never produced during evaluation.
type StructuralError struct {
	Code    StructuralErrorCode
	NodeID  uint64
	Path    []uint64 // cycle path in edge direction, first == last
	Message string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s at node %d (%s)", e.Code, e.Message, e.NodeID, formatPath(e.Path))
	}
	if e.Code == ErrCodeEmptyGraph {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (node=%d)", e.Code, e.Message, e.NodeID)
}

// IsCycleError returns true if err is a cycle rejection.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var se *StructuralError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCycle
	}
	return false
}

func newStructuralError(code StructuralErrorCode, id uint64, msg string) *StructuralError {
	return &StructuralError{Code: code, NodeID: id, Message: msg}
}

// newCycleError builds a cycle error from the DFS path. The DFS walks
// predecessor links, so the loop is reversed to read in edge direction.
func newCycleError(id uint64, path []uint64) *StructuralError {
	start := slices.Index(path, id)
	loop := slices.Clone(path[start:])
	loop = append(loop, id)
	slices.Reverse(loop)
	return &StructuralError{
		Code:    ErrCodeCycle,
		NodeID:  id,
		Path:    loop,
		Message: "cycle detected",
	}
}

func formatPath(path []uint64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, " → ")
}
