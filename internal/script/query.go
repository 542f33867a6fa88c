package script

import "sort"

// Segment returns the actions whose connecting lines are visible in [t0, t1]:
// from the last action at or before t0 through the first action at or after t1.
// Actions must be sorted by At.
func Segment(actions []Action, t0, t1 float64) []Action {
	if len(actions) == 0 {
		return nil
	}
	if t1 < t0 {
		t0, t1 = t1, t0
	}
	if t0 > actions[len(actions)-1].At || t1 < actions[0].At {
		return nil
	}

	// first index with At > t0, step back one to include the line entering the window
	start := sort.Search(len(actions), func(i int) bool { return actions[i].At > t0 }) - 1
	if start < 0 {
		start = 0
	}
	end := sort.Search(len(actions), func(i int) bool { return actions[i].At >= t1 })
	if end >= len(actions) {
		end = len(actions) - 1
	}
	if end < start {
		return nil
	}
	return cloneActions(actions[start : end+1])
}

// Pairs flattens a script into rounded (at, pos) integer pairs for upload.
func Pairs(s Script) [][2]int64 {
	rounded := RoundActions(s.Actions)
	out := make([][2]int64, len(rounded))
	for i, a := range rounded {
		out[i] = [2]int64{int64(a.At), int64(a.Pos)}
	}
	return out
}
