package pipeline

import (
	"time"

	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/transform"
)

// Kind names a modifier's transform.
type Kind string

const (
	KindDouble Kind = "double"
	KindHalve  Kind = "halve"
	KindOffset Kind = "offset"
	KindRemap  Kind = "remap"
	KindLimit  Kind = "limit"
	KindCustom Kind = "custom"
)

// Option keys.
const (
	OptRemoveShortPauses     = "removeShortPauses"
	OptShortPauseDuration    = "shortPauseDuration"
	OptMatchFirstDownstroke  = "matchFirstDownstroke"
	OptMatchGroupEndPosition = "matchGroupEndPosition"
	OptResetAfterPause       = "resetAfterPause"
	OptOffset                = "offset"
	OptMin                   = "min"
	OptMax                   = "max"
	OptDevicePreset          = "devicePreset"
	OptCustomSpeed           = "customSpeed"
	OptCode                  = "code"
	OptTimeoutMs             = "timeoutMs"
)

type kindSpec struct {
	// defaults builds a new map on every call so modifiers never share one.
	defaults func() Options
	apply    func(actions []script.Action, opts Options) ([]script.Action, error)
}

var kinds = map[Kind]kindSpec{
	KindDouble: {defaults: cadenceDefaults, apply: applyCadence(transform.Double)},
	KindHalve:  {defaults: cadenceDefaults, apply: applyCadence(transform.Halve)},
	KindOffset: {
		defaults: func() Options { return Options{OptOffset: 0.0} },
		apply: func(actions []script.Action, opts Options) ([]script.Action, error) {
			return transform.Offset(actions, opts.Float(OptOffset)), nil
		},
	},
	KindRemap: {
		defaults: func() Options { return Options{OptMin: 0.0, OptMax: 100.0} },
		apply: func(actions []script.Action, opts Options) ([]script.Action, error) {
			return transform.Remap(actions, opts.Float(OptMin), opts.Float(OptMax))
		},
	},
	KindLimit: {
		defaults: func() Options {
			return Options{OptDevicePreset: string(transform.PresetHandy), OptCustomSpeed: 400.0}
		},
		apply: func(actions []script.Action, opts Options) ([]script.Action, error) {
			maxSpeed, err := transform.PresetSpeed(transform.DevicePreset(opts.String(OptDevicePreset)), opts.Float(OptCustomSpeed))
			if err != nil {
				return nil, err
			}
			return transform.Limit(actions, maxSpeed)
		},
	},
	KindCustom: {
		defaults: func() Options {
			return Options{
				OptCode:      "map(actions, ({at: .at, pos: .pos}))",
				OptTimeoutMs: float64(DefaultCustomTimeout / time.Millisecond),
			}
		},
		apply: func(actions []script.Action, opts Options) ([]script.Action, error) {
			timeout := time.Duration(opts.Float(OptTimeoutMs)) * time.Millisecond
			return RunCustom(opts.String(OptCode), actions, timeout)
		},
	},
}

// Kinds lists every modifier kind.
func Kinds() []Kind {
	return []Kind{KindDouble, KindHalve, KindOffset, KindRemap, KindLimit, KindCustom}
}

// DefaultOptions returns a fresh copy of kind's defaults.
func DefaultOptions(kind Kind) (Options, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return spec.defaults(), nil
}

func cadenceDefaults() Options {
	return Options{
		OptRemoveShortPauses:     false,
		OptShortPauseDuration:    transform.DefaultShortPauseDuration,
		OptMatchFirstDownstroke:  false,
		OptMatchGroupEndPosition: false,
		OptResetAfterPause:       false,
	}
}

func cadenceOptions(opts Options) transform.CadenceOptions {
	return transform.CadenceOptions{
		RemoveShortPauses:     opts.Bool(OptRemoveShortPauses),
		ShortPauseDuration:    opts.Float(OptShortPauseDuration),
		MatchFirstDownstroke:  opts.Bool(OptMatchFirstDownstroke),
		MatchGroupEndPosition: opts.Bool(OptMatchGroupEndPosition),
		ResetAfterPause:       opts.Bool(OptResetAfterPause),
	}
}

func applyCadence(fn func([]script.Action, transform.CadenceOptions) ([]script.Action, error)) func([]script.Action, Options) ([]script.Action, error) {
	return func(actions []script.Action, opts Options) ([]script.Action, error) {
		return fn(actions, cadenceOptions(opts))
	}
}
