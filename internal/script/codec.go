package script

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// wireAction uses pointers so missing fields can be told apart from zero.
type wireAction struct {
	At  *float64 `json:"at"`
	Pos *float64 `json:"pos"`
}

type wireScript struct {
	Version    string       `json:"version,omitempty"`
	Inverted   bool         `json:"inverted,omitempty"`
	Range      int          `json:"range,omitempty"`
	Actions    []wireAction `json:"actions"`
	Metadata   *Metadata    `json:"metadata,omitempty"`
	RawActions []wireAction `json:"rawActions,omitempty"`
}

// ParseJSON decodes a script of the form {"actions":[{"at":..,"pos":..}], "metadata":{..}}.
func ParseJSON(data []byte) (Script, error) {
	var w wireScript
	if err := json.Unmarshal(data, &w); err != nil {
		return Script{}, &ParseError{Format: "json", Err: err}
	}
	if w.Actions == nil {
		return Script{}, &ParseError{Format: "json", Err: errors.New("missing actions")}
	}

	actions, err := fromWire(w.Actions)
	if err != nil {
		return Script{}, &ParseError{Format: "json", Err: err}
	}
	raw, err := fromWire(w.RawActions)
	if err != nil {
		return Script{}, &ParseError{Format: "json", Err: fmt.Errorf("rawActions: %w", err)}
	}

	return Script{
		Version:    w.Version,
		Inverted:   w.Inverted,
		Range:      w.Range,
		Actions:    actions,
		Metadata:   w.Metadata,
		RawActions: raw,
	}, nil
}

func fromWire(in []wireAction) ([]Action, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]Action, len(in))
	for i, w := range in {
		if w.At == nil || w.Pos == nil {
			return nil, fmt.Errorf("action %d: %w", i, ErrMalformedAction)
		}
		out[i] = Action{At: *w.At, Pos: *w.Pos}
	}
	return out, nil
}

// MarshalJSON encodes s in the same shape ParseJSON accepts.
func MarshalJSON(s Script) ([]byte, error) {
	out := s.Clone()
	out.Actions = Strip(out.Actions)
	if out.RawActions != nil {
		out.RawActions = Strip(out.RawActions)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal script: %w", err)
	}
	return b, nil
}

// ParseCSV decodes the two-column "at,pos" form, one action per line, no header.
// Blank lines are skipped.
func ParseCSV(data []byte) (Script, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	var actions []Action
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return Script{}, &ParseError{Format: "csv", Line: line, Err: err}
		}
		line, _ := r.FieldPos(0)

		at, err := parseNumber(record[0])
		if err != nil {
			return Script{}, &ParseError{Format: "csv", Line: line, Err: fmt.Errorf("at: %w", err)}
		}
		pos, err := parseNumber(record[1])
		if err != nil {
			return Script{}, &ParseError{Format: "csv", Line: line, Err: fmt.Errorf("pos: %w", err)}
		}
		actions = append(actions, Action{At: at, Pos: pos})
	}

	if actions == nil {
		actions = []Action{}
	}
	return Script{Actions: actions}, nil
}

func parseNumber(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", field)
	}
	return v, nil
}

// MarshalCSV encodes actions as rounded "at,pos" lines.
func MarshalCSV(actions []Action) []byte {
	var buf bytes.Buffer
	for _, a := range RoundActions(actions) {
		fmt.Fprintf(&buf, "%d,%d\n", int64(a.At), int64(a.Pos))
	}
	return buf.Bytes()
}
