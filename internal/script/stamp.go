package script

import (
	"math"
	"sort"
)

// Stamp sorts and rounds the actions, recomputes duration and average speed,
// keeps descriptive metadata and drops the legacy rawActions field.
// It is meant to run once after a full pipeline fold.
func Stamp(s Script) (Script, error) {
	if len(s.Actions) == 0 {
		return Script{}, ErrEmptyScript
	}

	out := s.Clone()
	out.RawActions = nil

	actions := Strip(out.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].At < actions[j].At
	})
	actions = RoundActions(actions)
	out.Actions = actions

	md := Metadata{}
	if out.Metadata != nil {
		md = *out.Metadata
	}
	md.Duration = int64(actions[len(actions)-1].At)
	md.AverageSpeed = AverageSpeed(actions)
	if math.IsNaN(md.AverageSpeed) || math.IsInf(md.AverageSpeed, 0) {
		md.AverageSpeed = 0
	}
	md.Performers = cloneStrings(md.Performers)
	md.Tags = cloneStrings(md.Tags)
	out.Metadata = &md

	return out, nil
}
