package events

import "strings"

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects the events a consumer cares about. The zero Filter matches
// everything.
type Filter struct {
	// ScriptID keeps events of one script. Events without a script_id field
	// concern the whole service and always pass.
	ScriptID string

	// MinLevel drops events below the given level. Unknown levels rank as info.
	MinLevel string

	// Prefix keeps events whose name starts with it, e.g. "modifier.".
	Prefix string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.ScriptID != "" {
		if id, ok := e.Fields["script_id"].(string); ok && id != f.ScriptID {
			return false
		}
	}
	if f.MinLevel != "" && rank(e.Level) < rank(f.MinLevel) {
		return false
	}
	return f.Prefix == "" || strings.HasPrefix(e.Name, f.Prefix)
}

func rank(level string) int {
	if r, ok := levelRank[level]; ok {
		return r
	}
	return levelRank["info"]
}
