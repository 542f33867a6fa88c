package transform

import "github.com/AaronLay10/StrokeForge/internal/script"

// Offset shifts every action by ms and drops actions that end up before zero.
// If nothing would survive, the input is returned unchanged.
func Offset(actions []script.Action, ms float64) []script.Action {
	out := make([]script.Action, 0, len(actions))
	for _, a := range actions {
		shifted := script.Action{At: a.At + ms, Pos: a.Pos}
		if shifted.At < 0 {
			continue
		}
		out = append(out, script.RoundAction(shifted))
	}
	if len(out) == 0 {
		return script.RoundActions(script.Strip(actions))
	}
	return out
}
