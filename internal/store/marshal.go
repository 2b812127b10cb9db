package store

import (
	"fmt"

	"github.com/roach88/causaloid/internal/effect"
)

// marshalInput serializes an input value to tagged JSON. The form is
// lossless so Replay sees exactly the value that was evaluated; the
// input_hash column carries the canonical identity.
func marshalInput(v effect.Value) (string, error) {
	data, err := effect.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}
	return string(data), nil
}

// unmarshalInput decodes a stored input value.
func unmarshalInput(data string) (effect.Value, error) {
	v, err := effect.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
