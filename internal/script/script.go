package script

// Metadata carries descriptive fields plus statistics derived from the actions.
// Duration and AverageSpeed are only ever set by Stamp.
type Metadata struct {
	Creator      string   `json:"creator,omitempty"`
	Description  string   `json:"description,omitempty"`
	Duration     int64    `json:"duration"`
	AverageSpeed float64  `json:"average_speed"`
	License      string   `json:"license,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Performers   []string `json:"performers,omitempty"`
	ScriptURL    string   `json:"script_url,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Title        string   `json:"title,omitempty"`
	Type         string   `json:"type,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
}

// Script is an ordered action sequence plus metadata.
type Script struct {
	Version  string    `json:"version,omitempty"`
	Inverted bool      `json:"inverted,omitempty"`
	Range    int       `json:"range,omitempty"`
	Actions  []Action  `json:"actions"`
	Metadata *Metadata `json:"metadata,omitempty"`

	// RawActions is a legacy field written by older editors. Stamp drops it.
	RawActions []Action `json:"rawActions,omitempty"`
}

// Clone returns a deep copy of s.
func (s Script) Clone() Script {
	out := s
	out.Actions = cloneActions(s.Actions)
	out.RawActions = cloneActions(s.RawActions)
	if s.Metadata != nil {
		md := *s.Metadata
		md.Performers = cloneStrings(s.Metadata.Performers)
		md.Tags = cloneStrings(s.Metadata.Tags)
		out.Metadata = &md
	}
	return out
}

// WithActions returns a copy of s holding actions instead of its own.
func (s Script) WithActions(actions []Action) Script {
	out := s.Clone()
	out.Actions = cloneActions(actions)
	return out
}

// Duration returns the timestamp of the last action.
func (s Script) Duration() (float64, error) {
	if len(s.Actions) == 0 {
		return 0, ErrEmptyScript
	}
	return s.Actions[len(s.Actions)-1].At, nil
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a
		if a.SubActions != nil {
			out[i].SubActions = cloneActions(a.SubActions)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
