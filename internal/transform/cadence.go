package transform

import (
	"math"
	"sort"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

// DefaultShortPauseDuration is the hold length in ms below which RemoveShortPauses merges a hold.
const DefaultShortPauseDuration = 2000.0

// CadenceOptions configures Double and Halve. Options apply to every group independently.
type CadenceOptions struct {
	// RemoveShortPauses merges holds shorter than ShortPauseDuration into one sample.
	RemoveShortPauses  bool
	ShortPauseDuration float64

	// MatchFirstDownstroke treats a group-opening downstroke as an already consumed
	// reversal: Double shifts its apex parity, Halve leaves that stroke unsplit.
	MatchFirstDownstroke bool

	// MatchGroupEndPosition forces each group to end where the original group ended.
	MatchGroupEndPosition bool

	// ResetAfterPause restarts the extreme tracker from 100 after every hold.
	ResetAfterPause bool
}

// DefaultCadenceOptions returns the options used when nothing is configured.
func DefaultCadenceOptions() CadenceOptions {
	return CadenceOptions{ShortPauseDuration: DefaultShortPauseDuration}
}

type cadenceMode int

const (
	modeDouble cadenceMode = iota
	modeHalve
)

// Double rewrites actions so each output stroke spans two input strokes.
// Only every second direction reversal becomes an output sample, and the position
// written there is whichever extreme of the absorbed strokes lies farther from the
// previous output. No timestamp moves and total duration is unchanged.
func Double(actions []script.Action, opts CadenceOptions) ([]script.Action, error) {
	return cadence(actions, opts, modeDouble)
}

// Halve is the tempo inverse of Double: every stroke is split into two half-strokes
// by inserting a reversal at its time midpoint, and positions alternate between
// the stroke's extremes so the travelled range is kept. Halve does not merge
// strokes; halving the number of reversals is what Double does.
// Total duration is unchanged.
func Halve(actions []script.Action, opts CadenceOptions) ([]script.Action, error) {
	return cadence(actions, opts, modeHalve)
}

func cadence(actions []script.Action, opts CadenceOptions, mode cadenceMode) ([]script.Action, error) {
	if len(actions) == 0 {
		return nil, script.ErrEmptyScript
	}
	if opts.ShortPauseDuration <= 0 {
		opts.ShortPauseDuration = DefaultShortPauseDuration
	}

	sorted := script.RoundActions(script.Strip(actions))
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	groups := GroupActions(sorted)
	out := make([]script.Action, 0, len(sorted))

	for gi, group := range groups {
		if opts.RemoveShortPauses {
			group = removeShortPauses(group, opts.ShortPauseDuration)
		}

		var keys []script.Action
		if mode == modeDouble {
			keys = doubleKeyPoints(group, opts)
		} else {
			keys = halveKeyPoints(group, opts.MatchFirstDownstroke && opensWithDownstroke(group))
		}

		cursor := keys[0].Pos
		if opts.ResetAfterPause {
			cursor = 100
		}
		emitted := reconstruct(keys, cursor, opts)

		if opts.MatchGroupEndPosition {
			nextStart := math.Inf(1)
			hasNext := gi+1 < len(groups)
			if hasNext {
				nextStart = groups[gi+1][0].At
			}
			emitted = matchGroupEnd(emitted, group[len(group)-1], nextStart, hasNext)
		}

		out = append(out, emitted...)
	}

	end := sorted[len(sorted)-1]
	if last := out[len(out)-1]; last.At < end.At {
		out = append(out, script.Action{At: end.At, Pos: last.Pos, Tag: script.TagLast})
	}

	for i := range out {
		out[i] = script.RoundAction(script.Action{At: out[i].At, Pos: out[i].Pos, Tag: out[i].Tag})
	}
	return out, nil
}

// classify tags the sample at i within group.
func classify(group []script.Action, i int) script.Tag {
	if i == 0 {
		return script.TagFirst
	}
	if i == len(group)-1 {
		return script.TagLast
	}

	prev, cur, next := group[i-1].Pos, group[i].Pos, group[i+1].Pos
	switch {
	case cur == prev:
		return script.TagPause
	case cur == next:
		return script.TagPrepause
	case sign(cur-prev) != sign(next-cur):
		return script.TagApex
	}
	return script.TagNone
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func keyPoint(a script.Action, tag script.Tag, bucket []script.Action) script.Action {
	return script.Action{At: a.At, Pos: a.Pos, Tag: tag, SubActions: bucket}
}

// doubleKeyPoints keeps first, last, holds and every second apex. Everything else
// lands in the sub-action bucket of the next key-point.
func doubleKeyPoints(group []script.Action, opts CadenceOptions) []script.Action {
	keys := make([]script.Action, 0, len(group)/2+2)
	var bucket []script.Action

	apexCount := 0
	if opts.MatchFirstDownstroke && opensWithDownstroke(group) {
		apexCount = 1
	}

	for i, a := range group {
		tag := classify(group, i)
		switch tag {
		case script.TagFirst:
			keys = append(keys, keyPoint(a, tag, nil))
		case script.TagLast:
			keys = append(keys, keyPoint(a, tag, bucket))
			bucket = nil
		case script.TagPause, script.TagPrepause:
			keys = append(keys, keyPoint(a, tag, bucket))
			bucket = nil
			apexCount = 0
		case script.TagApex:
			if apexCount == 0 {
				bucket = append(bucket, a)
				apexCount = 1
				continue
			}
			keys = append(keys, keyPoint(a, tag, bucket))
			bucket = nil
			apexCount = 0
		default:
			bucket = append(bucket, a)
		}
	}
	return keys
}

// halveKeyPoints keeps every apex and hold, then inserts a reversal at the time
// midpoint of every stroke. Each stroke's key-points carry the stroke envelope.
func halveKeyPoints(group []script.Action, skipFirst bool) []script.Action {
	base := make([]script.Action, 0, len(group))
	var bucket []script.Action
	for i, a := range group {
		tag := classify(group, i)
		if tag == script.TagNone {
			bucket = append(bucket, a)
			continue
		}
		base = append(base, keyPoint(a, tag, bucket))
		bucket = nil
	}

	keys := make([]script.Action, 0, 2*len(base))
	keys = append(keys, base[0])
	for i := 1; i < len(base); i++ {
		prev, k := base[i-1], base[i]
		if k.Tag == script.TagPause {
			keys = append(keys, k)
			continue
		}

		stroke := append([]script.Action{{At: prev.At, Pos: prev.Pos}}, k.SubActions...)
		k.SubActions = stroke
		lo, hi := envelope(k)
		mid := math.Round((prev.At + k.At) / 2)
		if lo != hi && mid > prev.At && mid < k.At && !(skipFirst && i == 1) {
			keys = append(keys, script.Action{At: mid, Pos: k.Pos, Tag: script.TagApex, SubActions: stroke})
		}
		keys = append(keys, k)
	}
	return keys
}

func opensWithDownstroke(group []script.Action) bool {
	return len(group) > 1 && group[1].Pos < group[0].Pos
}

// reconstruct walks the key-points, moving to whichever extreme of each key's
// envelope lies farther from the current position. Holds are emitted verbatim.
func reconstruct(keys []script.Action, cursor float64, opts CadenceOptions) []script.Action {
	out := make([]script.Action, 0, len(keys)+1)
	out = append(out, script.Action{At: keys[0].At, Pos: keys[0].Pos, Tag: keys[0].Tag})

	for _, k := range keys[1:] {
		if k.Tag == script.TagPause {
			out = append(out, script.Action{At: k.At, Pos: k.Pos, Tag: k.Tag})
			cursor = k.Pos
			if opts.ResetAfterPause {
				cursor = 100
			}
			continue
		}

		lo, hi := envelope(k)
		pos := hi
		if math.Abs(lo-cursor) > math.Abs(hi-cursor) {
			pos = lo
		}
		out = append(out, script.Action{At: k.At, Pos: pos, Tag: k.Tag})
		cursor = pos
	}
	return out
}

// envelope returns the lowest and highest position among k and its sub-actions.
func envelope(k script.Action) (float64, float64) {
	lo, hi := k.Pos, k.Pos
	for _, s := range k.SubActions {
		lo = math.Min(lo, s.Pos)
		hi = math.Max(hi, s.Pos)
	}
	return lo, hi
}

// matchGroupEnd makes the emitted group end at target's position. When there is room
// before the next group, one sample is appended one interval after the last; otherwise
// the last emitted position is overwritten.
func matchGroupEnd(out []script.Action, target script.Action, nextStart float64, hasNext bool) []script.Action {
	last := out[len(out)-1]
	if last.Pos == target.Pos {
		return out
	}

	if hasNext && len(out) >= 2 {
		interval := last.At - out[len(out)-2].At
		at := last.At + interval
		if interval > 0 && at < nextStart {
			return append(out, script.Action{At: at, Pos: target.Pos, Tag: script.TagLast})
		}
	}

	out[len(out)-1].Pos = target.Pos
	return out
}

// removeShortPauses collapses each interior run of equal positions that lasts less
// than threshold into one sample at the run's time midpoint. The group's first and
// last samples are never merged.
func removeShortPauses(group []script.Action, threshold float64) []script.Action {
	if len(group) < 4 {
		return group
	}

	out := make([]script.Action, 0, len(group))
	out = append(out, group[0])
	for i := 1; i < len(group)-1; i++ {
		j := i
		for j+1 < len(group)-1 && group[j+1].Pos == group[i].Pos {
			j++
		}
		if j > i && group[j].At-group[i].At < threshold {
			out = append(out, script.Action{At: math.Round((group[i].At + group[j].At) / 2), Pos: group[i].Pos})
		} else {
			out = append(out, group[i:j+1]...)
		}
		i = j
	}
	out = append(out, group[len(group)-1])
	return out
}
