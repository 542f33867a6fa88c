package transform

import "errors"

var (
	// ErrFlatRange is returned by Remap when every action has the same position.
	ErrFlatRange = errors.New("cannot remap a script with a single observed position")

	// ErrInvalidSpeed is returned by Limit for a non-positive cap.
	ErrInvalidSpeed = errors.New("speed cap must be positive")

	// ErrUnknownPreset is returned for a device preset that has no speed.
	ErrUnknownPreset = errors.New("unknown device preset")
)
