package transform

import (
	"fmt"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

// Remap rescales positions linearly from the observed [min, max] onto [lo, hi].
// lo may exceed hi, which inverts the script.
func Remap(actions []script.Action, lo, hi float64) ([]script.Action, error) {
	if len(actions) == 0 {
		return nil, script.ErrEmptyScript
	}

	observedMin, observedMax := actions[0].Pos, actions[0].Pos
	for _, a := range actions[1:] {
		if a.Pos < observedMin {
			observedMin = a.Pos
		}
		if a.Pos > observedMax {
			observedMax = a.Pos
		}
	}
	if observedMin == observedMax {
		return nil, fmt.Errorf("remap to [%v, %v]: %w", lo, hi, ErrFlatRange)
	}

	scale := (hi - lo) / (observedMax - observedMin)
	out := make([]script.Action, len(actions))
	for i, a := range actions {
		out[i] = script.RoundAction(script.Action{
			At:  a.At,
			Pos: lo + (a.Pos-observedMin)*scale,
		})
	}
	return out, nil
}
