package session

import (
	"errors"
	"sync"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
)

var (
	ErrNotFound         = errors.New("script not found")
	ErrModifierNotFound = errors.New("modifier not found")
	ErrNoInput          = errors.New("script has no input")
	ErrInvalidID        = errors.New("invalid script id")
)

// Failure records one modifier that failed during the latest recompute.
type Failure struct {
	ModifierID string        `json:"modifier_id"`
	Kind       pipeline.Kind `json:"kind"`
	Error      string        `json:"error"`
}

// Snapshot is a copy of a session's state. Mutating it never affects the store.
type Snapshot struct {
	ID        string              `json:"id"`
	Input     *script.Script      `json:"input,omitempty"`
	Modifiers []pipeline.Modifier `json:"modifiers"`
	Output    *script.Script      `json:"output,omitempty"`
	LastGood  *script.Script      `json:"last_good,omitempty"`
	Failures  []Failure           `json:"failures,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type session struct {
	mu sync.Mutex

	id        string
	input     *script.Script
	modifiers []pipeline.Modifier
	output    *script.Script
	lastGood  *script.Script
	failures  []Failure
	updatedAt time.Time

	// deleted is set under mu once the session has left the store.
	deleted bool
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		Input:     cloneScript(s.input),
		Modifiers: cloneModifiers(s.modifiers),
		Output:    cloneScript(s.output),
		LastGood:  cloneScript(s.lastGood),
		Failures:  append([]Failure(nil), s.failures...),
		UpdatedAt: s.updatedAt,
	}
}

func cloneScript(s *script.Script) *script.Script {
	if s == nil {
		return nil
	}
	c := s.Clone()
	return &c
}

func cloneModifiers(mods []pipeline.Modifier) []pipeline.Modifier {
	out := make([]pipeline.Modifier, len(mods))
	for i, m := range mods {
		out[i] = m
		out[i].Options = m.Options.Clone()
		out[i].DefaultOptions = m.DefaultOptions.Clone()
	}
	return out
}
