package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind   = errors.New("unknown modifier kind")
	ErrUnknownOption = errors.New("unknown modifier option")
	ErrInvalidOption = errors.New("invalid modifier option value")

	// ErrNoActions is reported when a modifier would leave the script empty.
	ErrNoActions = errors.New("modifier produced no actions")

	ErrCustomSyntax  = errors.New("custom function does not compile")
	ErrCustomRuntime = errors.New("custom function failed")
	ErrCustomTimeout = errors.New("custom function timed out")
	ErrCustomResult  = errors.New("custom function must return a list of {at, pos}")
)

// ModifierError reports which modifier of a pipeline failed.
type ModifierError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *ModifierError) Error() string {
	return fmt.Sprintf("modifier %s (%s): %v", e.Kind, e.ID, e.Err)
}

func (e *ModifierError) Unwrap() error {
	return e.Err
}
