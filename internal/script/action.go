package script

import "math"

// Tag marks why an action was kept as a key-point by a transform.
// It is debug information only and never serialized.
type Tag string

const (
	TagNone     Tag = ""
	TagFirst    Tag = "first"
	TagLast     Tag = "last"
	TagPause    Tag = "pause"
	TagPrepause Tag = "prepause"
	TagApex     Tag = "apex"
)

// Action is one timestamped position sample.
// At is milliseconds from script start, Pos is in [0,100].
type Action struct {
	At  float64 `json:"at"`
	Pos float64 `json:"pos"`

	// SubActions holds samples absorbed between two retained key-points.
	SubActions []Action `json:"-"`
	Tag        Tag      `json:"-"`
}

// RoundAction normalizes an action to integer time and clamped integer position.
func RoundAction(a Action) Action {
	out := Action{
		At:  math.Max(0, math.Round(a.At)),
		Pos: math.Max(0, math.Min(100, math.Round(a.Pos))),
		Tag: a.Tag,
	}
	if len(a.SubActions) > 0 {
		out.SubActions = RoundActions(a.SubActions)
	}
	return out
}

// RoundActions returns a rounded copy of actions.
func RoundActions(actions []Action) []Action {
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = RoundAction(a)
	}
	return out
}

// Strip returns a copy of actions without sub-actions or tags.
func Strip(actions []Action) []Action {
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = Action{At: a.At, Pos: a.Pos}
	}
	return out
}
