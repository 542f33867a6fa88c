package script

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyScript is returned for scripts without any action.
	ErrEmptyScript = errors.New("script has no actions")

	// ErrMalformedAction is returned when an action lacks at or pos.
	ErrMalformedAction = errors.New("action must have numeric at and pos")
)

// ParseError describes a script that could not be decoded.
type ParseError struct {
	Format string // json or csv
	Line   int    // 1-based line for csv, 0 when unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
