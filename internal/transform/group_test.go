package transform

import (
	"reflect"
	"testing"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

func actionsOf(pairs ...float64) []script.Action {
	out := make([]script.Action, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, script.Action{At: pairs[i], Pos: pairs[i+1]})
	}
	return out
}

func TestGroupActions_SingleGroup(t *testing.T) {
	groups := GroupActions(actionsOf(0, 0, 500, 100, 1000, 0))
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 3 {
		t.Errorf("expected 3 actions in group, got %d", len(groups[0]))
	}
}

func TestGroupActions_SplitsOnPause(t *testing.T) {
	groups := GroupActions(actionsOf(0, 0, 500, 100, 1000, 0, 5000, 100, 5500, 0))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 3 || len(groups[1]) != 2 {
		t.Errorf("unexpected group sizes %d and %d", len(groups[0]), len(groups[1]))
	}
	if groups[1][0].At != 5000 {
		t.Errorf("expected second group to start at 5000, got %v", groups[1][0].At)
	}
}

func TestGroupActions_IntervalFloor(t *testing.T) {
	// 100ms spacing is floored to 250ms, so gaps up to 1250ms stay in the group
	groups := GroupActions(actionsOf(0, 0, 100, 10, 200, 20, 1450, 30))
	if len(groups) != 1 {
		t.Errorf("expected 1 group, got %d", len(groups))
	}

	groups = GroupActions(actionsOf(0, 0, 100, 10, 200, 20, 1500, 30))
	if len(groups) != 2 {
		t.Errorf("expected 2 groups, got %d", len(groups))
	}
}

func TestGroupActions_SecondActionAlwaysJoins(t *testing.T) {
	groups := GroupActions(actionsOf(0, 0, 60000, 100, 60100, 0))
	if len(groups) != 1 {
		t.Errorf("expected 1 group, got %d", len(groups))
	}
}

func TestGroupActions_SingleAction(t *testing.T) {
	groups := GroupActions(actionsOf(250, 40))
	if len(groups) != 1 || len(groups[0]) != 1 {
		t.Fatalf("expected one group with one action, got %+v", groups)
	}
	if GroupActions(nil) != nil {
		t.Error("expected no groups for empty input")
	}
}

func TestGroupActions_ConcatenationReproducesInput(t *testing.T) {
	in := actionsOf(0, 0, 300, 90, 600, 10, 4000, 50, 4200, 60, 4400, 10, 20000, 100, 20300, 0)

	first := GroupActions(in)
	second := GroupActions(in)
	if !reflect.DeepEqual(first, second) {
		t.Error("grouping is not deterministic")
	}

	var joined []script.Action
	for _, g := range first {
		joined = append(joined, g...)
	}
	if !reflect.DeepEqual(joined, in) {
		t.Errorf("concatenated groups differ from input:\n got  %+v\n want %+v", joined, in)
	}
}
