package transform

import (
	"fmt"
	"math"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

// DevicePreset names a device whose maximum speed is known.
type DevicePreset string

const (
	PresetHandy  DevicePreset = "handy"
	PresetLaunch DevicePreset = "launch"
	PresetCustom DevicePreset = "custom"
)

// Maximum achievable speeds in position units per second.
const (
	HandyMaxSpeed  = 432.0
	LaunchMaxSpeed = 377.0
)

// PresetSpeed resolves a preset to its speed cap. custom is used for PresetCustom.
func PresetSpeed(preset DevicePreset, custom float64) (float64, error) {
	switch preset {
	case PresetHandy:
		return HandyMaxSpeed, nil
	case PresetLaunch:
		return LaunchMaxSpeed, nil
	case PresetCustom:
		if custom <= 0 {
			return 0, fmt.Errorf("custom preset speed %v: %w", custom, ErrInvalidSpeed)
		}
		return custom, nil
	}
	return 0, fmt.Errorf("%q: %w", preset, ErrUnknownPreset)
}

// Limit caps the speed between consecutive actions in one causal pass.
// The first action is kept; each later action is compared against the previous
// output action and, when too fast, pulled towards it to the farthest position
// reachable at maxSpeed. The reachable distance is floored to whole units so the
// rounded output never exceeds the cap.
func Limit(actions []script.Action, maxSpeed float64) ([]script.Action, error) {
	if maxSpeed <= 0 {
		return nil, fmt.Errorf("limit %v: %w", maxSpeed, ErrInvalidSpeed)
	}
	if len(actions) == 0 {
		return nil, script.ErrEmptyScript
	}

	in := script.RoundActions(script.Strip(actions))
	out := make([]script.Action, len(in))
	out[0] = in[0]
	ref := in[0]

	for i := 1; i < len(in); i++ {
		a := in[i]
		if script.Speed(ref, a) <= maxSpeed {
			out[i] = a
			ref = a
			continue
		}

		reach := math.Floor(maxSpeed * (a.At - ref.At) / 1000)
		pos := ref.Pos + reach
		if a.Pos < ref.Pos {
			pos = ref.Pos - reach
		}
		clamped := script.RoundAction(script.Action{At: a.At, Pos: pos})
		out[i] = clamped
		ref = clamped
	}
	return out, nil
}
