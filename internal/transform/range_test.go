package transform

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

func TestOffset_DropsNegative(t *testing.T) {
	out := Offset(actionsOf(0, 0, 500, 100, 1000, 0), -600)
	expectActions(t, out, 400, 0)
}

func TestOffset_AllRemovedIsNoop(t *testing.T) {
	in := actionsOf(0, 0, 500, 100.4, 1000, 0)
	out := Offset(in, -5000)
	expectActions(t, out, 0, 0, 500, 100, 1000, 0)
}

func TestOffset_Zero(t *testing.T) {
	out := Offset(actionsOf(0.4, 10.6, 500, 90), 0)
	expectActions(t, out, 0, 11, 500, 90)
}

func TestOffset_Positive(t *testing.T) {
	out := Offset(actionsOf(0, 10, 500, 90), 250.5)
	expectActions(t, out, 251, 10, 751, 90)
}

func TestRemap(t *testing.T) {
	out, err := Remap(actionsOf(0, 20, 500, 80, 1000, 50), 0, 100)
	if err != nil {
		t.Fatalf("remap failed: %v", err)
	}
	expectActions(t, out, 0, 0, 500, 100, 1000, 50)

	inverted, err := Remap(out, 100, 0)
	if err != nil {
		t.Fatalf("remap failed: %v", err)
	}
	expectActions(t, inverted, 0, 100, 500, 0, 1000, 50)
}

func TestRemap_Involution(t *testing.T) {
	in := actionsOf(0, 13, 300, 77, 600, 41, 900, 62, 1200, 13)

	full, err := Remap(in, 0, 100)
	if err != nil {
		t.Fatalf("remap failed: %v", err)
	}
	back, err := Remap(full, 13, 77)
	if err != nil {
		t.Fatalf("remap failed: %v", err)
	}
	for i := range in {
		if math.Abs(back[i].Pos-in[i].Pos) > 1 {
			t.Errorf("action %d: expected ~%v, got %v", i, in[i].Pos, back[i].Pos)
		}
	}
}

func TestRemap_FlatRange(t *testing.T) {
	_, err := Remap(actionsOf(0, 50, 500, 50), 0, 100)
	if !errors.Is(err, ErrFlatRange) {
		t.Errorf("expected ErrFlatRange, got %v", err)
	}
}

func TestPresetSpeed(t *testing.T) {
	if v, _ := PresetSpeed(PresetHandy, 0); v != 432 {
		t.Errorf("expected handy 432, got %v", v)
	}
	if v, _ := PresetSpeed(PresetLaunch, 0); v != 377 {
		t.Errorf("expected launch 377, got %v", v)
	}
	if v, _ := PresetSpeed(PresetCustom, 250); v != 250 {
		t.Errorf("expected custom 250, got %v", v)
	}
	if _, err := PresetSpeed(PresetCustom, 0); !errors.Is(err, ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}
	if _, err := PresetSpeed("vibe", 0); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestLimit_ClampsTowardsReference(t *testing.T) {
	out, err := Limit(actionsOf(0, 0, 100, 100, 200, 0, 300, 0), HandyMaxSpeed)
	if err != nil {
		t.Fatalf("limit failed: %v", err)
	}
	// 43.2 reachable units floored to 43, then 0 is reachable from 43 in 100ms
	expectActions(t, out, 0, 0, 100, 43, 200, 0, 300, 0)
}

func TestLimit_CompoundsOnCorrectedTrajectory(t *testing.T) {
	out, err := Limit(actionsOf(0, 100, 100, 0, 200, 0), 200)
	if err != nil {
		t.Fatalf("limit failed: %v", err)
	}
	// second action compares against the corrected 80, not the original 0
	expectActions(t, out, 0, 100, 100, 80, 200, 60)
}

func TestLimit_InvalidSpeed(t *testing.T) {
	if _, err := Limit(actionsOf(0, 0), 0); !errors.Is(err, ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}
}

func TestLimit_Converges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	in := make([]script.Action, 0, 400)
	at := 0.0
	for i := 0; i < 400; i++ {
		at += float64(20 + rng.Intn(400))
		in = append(in, script.Action{At: at, Pos: float64(rng.Intn(101))})
	}

	for _, maxSpeed := range []float64{LaunchMaxSpeed, HandyMaxSpeed, 90, 1000} {
		out, err := Limit(in, maxSpeed)
		if err != nil {
			t.Fatalf("limit failed: %v", err)
		}
		if len(out) != len(in) {
			t.Fatalf("expected %d actions, got %d", len(in), len(out))
		}
		for i := 1; i < len(out); i++ {
			if s := script.Speed(out[i-1], out[i]); s > maxSpeed+1 {
				t.Errorf("cap %v: speed %v between %d and %d", maxSpeed, s, i-1, i)
			}
			if out[i].At != in[i].At {
				t.Errorf("cap %v: timestamp %d moved", maxSpeed, i)
			}
		}
	}
}
