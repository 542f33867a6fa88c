package script

import "math"

// Speed returns position units travelled per second between a and b.
// Operand order does not matter. Equal timestamps yield 0.
func Speed(a, b Action) float64 {
	if b.At < a.At {
		a, b = b, a
	}
	if a.At == b.At {
		return 0
	}
	return 1000 * math.Abs(b.Pos-a.Pos) / (b.At - a.At)
}

// AverageSpeed is the mean Speed over every consecutive pair.
// Fewer than two actions yield 0.
func AverageSpeed(actions []Action) float64 {
	if len(actions) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(actions); i++ {
		total += Speed(actions[i-1], actions[i])
	}
	return total / float64(len(actions)-1)
}
