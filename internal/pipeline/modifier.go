package pipeline

import (
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
)

// Options holds a modifier's configuration. Values are bool, float64 or string.
type Options map[string]interface{}

// Clone returns a copy of o.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Bool returns the option as a bool, false when missing or of another type.
func (o Options) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}

// Float returns the option as a float64, 0 when missing or not numeric.
func (o Options) Float(key string) float64 {
	v, _ := normalizeValue(o[key])
	f, _ := v.(float64)
	return f
}

// String returns the option as a string, "" when missing or of another type.
func (o Options) String(key string) string {
	v, _ := o[key].(string)
	return v
}

// Modifier is one configured step of a pipeline. It is a value: every update
// returns a new Modifier and never touches the original's options.
type Modifier struct {
	Kind           Kind    `json:"kind"`
	ID             string  `json:"id"`
	Options        Options `json:"options"`
	DefaultOptions Options `json:"defaultOptions"`
}

// New creates a modifier of kind with a fresh id and its kind's defaults.
func New(kind Kind) (Modifier, error) {
	spec, ok := kinds[kind]
	if !ok {
		return Modifier{}, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	defaults := spec.defaults()
	return Modifier{
		Kind:           kind,
		ID:             uuid.NewString(),
		Options:        defaults.Clone(),
		DefaultOptions: defaults,
	}, nil
}

// SetOption returns a copy of m with key set to value. Only keys known to the
// kind's defaults are accepted, and the value must match the default's type.
func SetOption(m Modifier, key string, value interface{}) (Modifier, error) {
	def, ok := m.DefaultOptions[key]
	if !ok {
		return m, fmt.Errorf("%s option %q: %w", m.Kind, key, ErrUnknownOption)
	}
	v, ok := normalizeValue(value)
	if !ok {
		return m, fmt.Errorf("%s option %q: unsupported value %T: %w", m.Kind, key, value, ErrInvalidOption)
	}
	if reflect.TypeOf(v) != reflect.TypeOf(def) {
		return m, fmt.Errorf("%s option %q: expected %T, got %T: %w", m.Kind, key, def, v, ErrInvalidOption)
	}

	out := m
	out.Options = m.Options.Clone()
	out.Options[key] = v
	out.DefaultOptions = m.DefaultOptions.Clone()
	return out, nil
}

// Reset returns a copy of m whose options equal its defaults.
func Reset(m Modifier) Modifier {
	out := m
	out.Options = m.DefaultOptions.Clone()
	out.DefaultOptions = m.DefaultOptions.Clone()
	return out
}

// Reorder swaps the modifier at index with its neighbour at index+direction.
// Out-of-range swaps return an unchanged copy.
func Reorder(mods []Modifier, index, direction int) []Modifier {
	out := append([]Modifier(nil), mods...)
	if direction != 1 && direction != -1 {
		return out
	}
	other := index + direction
	if index < 0 || index >= len(out) || other < 0 || other >= len(out) {
		return out
	}
	out[index], out[other] = out[other], out[index]
	return out
}

// Delete returns mods without the modifier with id.
func Delete(mods []Modifier, id string) []Modifier {
	out := make([]Modifier, 0, len(mods))
	for _, m := range mods {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// IndexOf returns the position of the modifier with id, or -1.
func IndexOf(mods []Modifier, id string) int {
	for i, m := range mods {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// normalizeValue maps numeric types onto float64 and rejects anything that is
// not a bool, number or string.
func normalizeValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case bool, string:
		return t, true
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return normalizeValue(float64(t))
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return nil, false
}
