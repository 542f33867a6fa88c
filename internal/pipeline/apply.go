package pipeline

import (
	"sort"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/script"
)

// ErrorFunc receives the failure of a single modifier. The pipeline keeps going
// with that modifier's input.
type ErrorFunc func(m Modifier, err error)

// Apply folds s through mods in order and stamps the result once at the end.
// A failing modifier is reported through onError and a modifier.failed event and
// passes its input through untouched. An empty script is rejected.
func Apply(s script.Script, mods []Modifier, onError ErrorFunc) (script.Script, error) {
	if len(s.Actions) == 0 {
		return script.Script{}, script.ErrEmptyScript
	}

	current := normalize(s.Actions)
	for _, m := range mods {
		next, err := applyOne(m, current)
		if err != nil {
			merr := &ModifierError{Kind: m.Kind, ID: m.ID, Err: err}
			events.Emit("warn", "modifier.failed", merr.Error(), map[string]interface{}{
				"modifier_id": m.ID,
				"kind":        string(m.Kind),
				"error":       err.Error(),
			})
			if onError != nil {
				onError(m, merr)
			}
			continue
		}
		current = next
	}

	return script.Stamp(s.WithActions(current))
}

func applyOne(m Modifier, actions []script.Action) ([]script.Action, error) {
	spec, ok := kinds[m.Kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	out, err := spec.apply(actions, m.Options)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoActions
	}
	return normalize(out), nil
}

// normalize returns sorted, rounded copies without transform bookkeeping.
func normalize(actions []script.Action) []script.Action {
	out := script.RoundActions(script.Strip(actions))
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}
