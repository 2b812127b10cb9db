package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/effect"
)

// Error codes reported by the CLI before any evaluation happens.
// Model validation problems keep the compiler's E2xx codes in Details.
const (
	ErrCodePathNotFound = "E001" // model, input, or scenario path does not exist
	ErrCodeCUE          = "E002" // CUE failed to load or evaluate
	ErrCodeParse        = "E003" // model structure is malformed
	ErrCodeValidation   = "E004" // model failed semantic validation
	ErrCodeBuild        = "E005" // causaloids could not be constructed
	ErrCodeInput        = "E006" // evaluation input could not be decoded
	ErrCodeDatabase     = "E007" // audit database could not be opened or read
	ErrCodeUnknownState = "E008" // named state is not declared by the model
	ErrCodeInternal     = "E009" // anything else
)

// LoadError is a coded failure from loading a model or its inputs.
type LoadError struct {
	Code    string
	Message string
	Details []string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadModel reads, validates, and builds the model at path. Each stage maps
// to its own error code.
func loadModel(path string) (*compiler.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodePathNotFound, Message: "model not found: " + path, Err: err}
	}

	v, err := compiler.LoadValue(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCUE, Message: "failed to load CUE", Err: err}
	}

	spec, err := compiler.Parse(v)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "malformed model", Err: err}
	}

	if errs := compiler.Validate(spec); len(errs) > 0 {
		details := make([]string, len(errs))
		for i, e := range errs {
			details[i] = e.Error()
		}
		return nil, &LoadError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("model has %d validation error(s)", len(errs)),
			Details: details,
			Err:     compiler.ValidationErrors(errs),
		}
	}

	model, err := compiler.Build(spec)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBuild, Message: "failed to build model", Err: err}
	}
	return model, nil
}

// lookupState finds a declared state by name.
func lookupState(model *compiler.Model, name string) (compiler.StateSpec, error) {
	s, ok := model.State(name)
	if !ok {
		return compiler.StateSpec{}, &LoadError{Code: ErrCodeUnknownState, Message: fmt.Sprintf("unknown state %q", name)}
	}
	return s, nil
}

// parseValue decodes a YAML literal given on the command line, e.g. "70",
// "true", or "{temperature: 70}".
func parseValue(flag, text string) (effect.Value, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("--%s is not valid YAML", flag), Err: err}
	}
	v, err := effect.FromAny(raw)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("--%s", flag), Err: err}
	}
	return v, nil
}

// loadInputs reads a YAML document mapping state names to input values and
// resolves it to state ids. States not listed keep their declared data.
func loadInputs(model *compiler.Model, path string) (map[uint64]effect.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodePathNotFound, Message: "input not found: " + path, Err: err}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeInput, Message: "input is not a YAML mapping", Err: err}
	}

	inputs := make(map[uint64]effect.Value, len(raw))
	for name, value := range raw {
		s, err := lookupState(model, name)
		if err != nil {
			return nil, err
		}
		v, err := effect.FromAny(value)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("input for %q", name), Err: err}
		}
		inputs[s.ID] = v
	}
	return inputs, nil
}

// reportError writes err through the formatter and converts it into the
// ExitError the command returns. A broken model always exits with
// ExitFailure; other errors exit with code.
func reportError(f *OutputFormatter, code int, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		msg := le.Message
		if le.Err != nil && le.Details == nil {
			msg = fmt.Sprintf("%s: %v", le.Message, le.Err)
		}
		var details any
		if le.Details != nil {
			details = le.Details
		}
		if ferr := f.Error(le.Code, msg, details); ferr != nil {
			return WrapExitError(ExitCommandError, "failed to write output", ferr)
		}
		switch le.Code {
		case ErrCodeCUE, ErrCodeParse, ErrCodeValidation, ErrCodeBuild:
			// The model itself is wrong, not the invocation.
			code = ExitFailure
		}
		return WrapExitError(code, le.Message, le)
	}
	if ferr := f.Error(ErrCodeInternal, err.Error(), nil); ferr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", ferr)
	}
	return WrapExitError(code, "command failed", err)
}
