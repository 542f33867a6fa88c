package pipeline

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/expr-lang/expr"

	"github.com/AaronLay10/StrokeForge/internal/script"
)

// DefaultCustomTimeout bounds a single custom function evaluation.
const DefaultCustomTimeout = time.Second

// RunCustom evaluates code, an expr-language expression, against the actions and
// converts its result back into actions. The expression sees `actions`, a list of
// {at, pos} maps, and `duration`. It has no access to I/O or the host process.
//
//	map(actions, ({at: .at, pos: 100 - .pos}))
//	filter(actions, .pos > 10)
func RunCustom(code string, actions []script.Action, timeout time.Duration) ([]script.Action, error) {
	if timeout <= 0 {
		timeout = DefaultCustomTimeout
	}

	env := customEnv(actions)
	program, err := expr.Compile(code, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustomSyntax, err)
	}

	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := expr.Run(program, env)
		done <- result{value: v, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %s", ErrCustomTimeout, timeout)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustomRuntime, r.err)
	}

	out, err := toActions(r.value)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return script.RoundActions(out), nil
}

func customEnv(actions []script.Action) map[string]interface{} {
	list := make([]interface{}, len(actions))
	for i, a := range actions {
		list[i] = map[string]interface{}{"at": a.At, "pos": a.Pos}
	}
	duration := 0.0
	if len(actions) > 0 {
		duration = actions[len(actions)-1].At
	}
	return map[string]interface{}{
		"actions":  list,
		"duration": duration,
	}
}

// toActions accepts any list whose elements are maps holding exactly a numeric
// at and a numeric pos.
func toActions(value interface{}) ([]script.Action, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: got %T", ErrCustomResult, value)
	}

	out := make([]script.Action, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		el := reflect.ValueOf(rv.Index(i).Interface())
		if !el.IsValid() || el.Kind() != reflect.Map || el.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: element %d is %v", ErrCustomResult, i, rv.Index(i).Interface())
		}
		if el.Len() != 2 {
			return nil, fmt.Errorf("%w: element %d has %d fields", ErrCustomResult, i, el.Len())
		}

		at, ok := numberField(el, "at")
		if !ok {
			return nil, fmt.Errorf("%w: element %d has no numeric at", ErrCustomResult, i)
		}
		pos, ok := numberField(el, "pos")
		if !ok {
			return nil, fmt.Errorf("%w: element %d has no numeric pos", ErrCustomResult, i)
		}
		out[i] = script.Action{At: at, Pos: pos}
	}
	return out, nil
}

func numberField(m reflect.Value, key string) (float64, bool) {
	v := m.MapIndex(reflect.ValueOf(key).Convert(m.Type().Key()))
	if !v.IsValid() {
		return 0, false
	}
	n, ok := normalizeValue(v.Interface())
	if !ok {
		return 0, false
	}
	f, ok := n.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
