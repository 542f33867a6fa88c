package pipeline

import (
	"errors"
	"testing"
)

func mustNew(t *testing.T, kind Kind) Modifier {
	t.Helper()
	m, err := New(kind)
	if err != nil {
		t.Fatalf("failed to create %s modifier: %v", kind, err)
	}
	return m
}

func TestNew_Defaults(t *testing.T) {
	for _, kind := range Kinds() {
		m := mustNew(t, kind)
		if m.ID == "" {
			t.Errorf("%s: expected an id", kind)
		}
		if len(m.Options) == 0 || len(m.Options) != len(m.DefaultOptions) {
			t.Errorf("%s: options %v do not match defaults %v", kind, m.Options, m.DefaultOptions)
		}
	}

	if _, err := New("reverse"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestNew_DefaultsNotShared(t *testing.T) {
	a := mustNew(t, KindDouble)
	b := mustNew(t, KindDouble)
	if a.ID == b.ID {
		t.Error("expected distinct ids")
	}

	a.DefaultOptions[OptResetAfterPause] = true
	if b.DefaultOptions.Bool(OptResetAfterPause) {
		t.Error("defaults are shared between modifiers")
	}
	fresh, _ := DefaultOptions(KindDouble)
	if fresh.Bool(OptResetAfterPause) {
		t.Error("kind defaults changed through a modifier")
	}
}

func TestSetOption(t *testing.T) {
	m := mustNew(t, KindOffset)

	updated, err := SetOption(m, OptOffset, 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Options.Float(OptOffset) != 250 {
		t.Errorf("expected offset 250, got %v", updated.Options[OptOffset])
	}
	if m.Options.Float(OptOffset) != 0 {
		t.Error("SetOption mutated the original modifier")
	}
	if updated.ID != m.ID || updated.Kind != m.Kind {
		t.Error("SetOption changed identity")
	}
}

func TestSetOption_Rejects(t *testing.T) {
	m := mustNew(t, KindDouble)

	if _, err := SetOption(m, "speed", 2.0); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}
	if _, err := SetOption(m, OptRemoveShortPauses, "yes"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for wrong type, got %v", err)
	}
	if _, err := SetOption(m, OptShortPauseDuration, []int{1}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for unsupported type, got %v", err)
	}
}

func TestReset(t *testing.T) {
	m := mustNew(t, KindRemap)
	m, _ = SetOption(m, OptMin, 20.0)
	m, _ = SetOption(m, OptMax, 80.0)

	reset := Reset(m)
	if reset.Options.Float(OptMin) != 0 || reset.Options.Float(OptMax) != 100 {
		t.Errorf("expected defaults after reset, got %v", reset.Options)
	}
	if reset.ID != m.ID || reset.Kind != KindRemap {
		t.Error("reset changed identity")
	}
	if m.Options.Float(OptMin) != 20 {
		t.Error("reset mutated the original modifier")
	}

	reset.Options[OptMin] = 5.0
	if reset.DefaultOptions.Float(OptMin) != 0 {
		t.Error("reset options alias the defaults")
	}
}

func TestReorder(t *testing.T) {
	a, b, c := mustNew(t, KindDouble), mustNew(t, KindOffset), mustNew(t, KindLimit)
	mods := []Modifier{a, b, c}

	moved := Reorder(mods, 0, 1)
	if moved[0].ID != b.ID || moved[1].ID != a.ID || moved[2].ID != c.ID {
		t.Error("expected first two modifiers swapped")
	}
	if mods[0].ID != a.ID {
		t.Error("reorder mutated its input")
	}

	moved = Reorder(mods, 2, -1)
	if moved[1].ID != c.ID || moved[2].ID != b.ID {
		t.Error("expected last two modifiers swapped")
	}

	for _, tc := range []struct{ index, dir int }{{0, -1}, {2, 1}, {5, 1}, {1, 2}} {
		same := Reorder(mods, tc.index, tc.dir)
		for i := range mods {
			if same[i].ID != mods[i].ID {
				t.Errorf("reorder(%d, %d) should be a no-op", tc.index, tc.dir)
			}
		}
	}
}

func TestDeleteAndIndexOf(t *testing.T) {
	a, b := mustNew(t, KindDouble), mustNew(t, KindHalve)
	mods := []Modifier{a, b}

	if IndexOf(mods, b.ID) != 1 || IndexOf(mods, "missing") != -1 {
		t.Error("unexpected IndexOf result")
	}

	left := Delete(mods, a.ID)
	if len(left) != 1 || left[0].ID != b.ID {
		t.Errorf("unexpected result after delete: %+v", left)
	}
	if len(mods) != 2 {
		t.Error("delete mutated its input")
	}
}
