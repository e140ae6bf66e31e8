package prompt

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput means the stage input did not match its schema. The model was not called.
	ErrInvalidInput = errors.New("invalid stage input")
	// ErrInvalidOutput means the model answered with something that does not match the output schema
	ErrInvalidOutput = errors.New("invalid model output")
	// ErrModel means the model call itself failed
	ErrModel = errors.New("model invocation failed")
)

// Kind classifies where a stage failed
type Kind string

const (
	KindInput  Kind = "input"
	KindModel  Kind = "model"
	KindOutput Kind = "output"
)

// Error is returned by Stage.Invoke for every failure
type Error struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage name carried by err, or "" when err is not a stage error
func StageOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Stage
	}
	return ""
}

// IsValidation reports whether err is a caller-side input validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
