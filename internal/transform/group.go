package transform

import (
	"math"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

const (
	// minGroupInterval floors the running expected interval between actions.
	minGroupInterval = 250.0

	// pauseFactor is how many expected intervals a gap must exceed to start a new group.
	pauseFactor = 5.0
)

// groupState is the fold carried across actions by GroupActions.
type groupState struct {
	groups   [][]script.Action
	interval float64
}

// GroupActions splits actions into runs separated by pauses.
// Actions are assumed to be sorted by At. The second action always joins the first
// group and seeds the running interval; every later gap larger than pauseFactor times
// the running interval opens a new group.
func GroupActions(actions []script.Action) [][]script.Action {
	state := groupState{}
	for i := range actions {
		state = foldGroup(state, actions, i)
	}
	return state.groups
}

func foldGroup(state groupState, actions []script.Action, i int) groupState {
	a := actions[i]
	if i == 0 {
		state.groups = append(state.groups, []script.Action{a})
		return state
	}

	gap := a.At - actions[i-1].At
	last := len(state.groups) - 1

	switch {
	case i == 1:
		state.groups[last] = append(state.groups[last], a)
	case gap > pauseFactor*state.interval:
		state.groups = append(state.groups, []script.Action{a})
	default:
		state.groups[last] = append(state.groups[last], a)
	}

	state.interval = math.Max(minGroupInterval, gap)
	return state
}
