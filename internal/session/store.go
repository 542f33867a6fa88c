package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/storage/postgres"
)

const maxIDLength = 128

// Persister stores session state. The Postgres client implements it.
type Persister interface {
	SaveScript(row postgres.ScriptRow) error
	DeleteScript(id string) error
}

// RenderFunc is called with every output a recompute produces.
type RenderFunc func(id string, out script.Script)

// Store holds editing sessions keyed by script id. Every mutation recomputes
// the session's whole pipeline.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	persister     Persister
	onRender      RenderFunc
	customTimeout time.Duration
	defaults      []pipeline.Modifier
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// SetPersister sets where session state is saved. nil disables persistence.
func (st *Store) SetPersister(p Persister) {
	st.mu.Lock()
	st.persister = p
	st.mu.Unlock()
}

// SetRenderHook sets the function called after each recompute.
func (st *Store) SetRenderHook(fn RenderFunc) {
	st.mu.Lock()
	st.onRender = fn
	st.mu.Unlock()
}

// SetCustomTimeout sets the timeout given to custom modifiers added through AddModifier.
func (st *Store) SetCustomTimeout(d time.Duration) {
	st.mu.Lock()
	st.customTimeout = d
	st.mu.Unlock()
}

// SetDefaultPipeline sets the modifiers new sessions start with.
func (st *Store) SetDefaultPipeline(mods []pipeline.Modifier) {
	st.mu.Lock()
	st.defaults = cloneModifiers(mods)
	st.mu.Unlock()
}

// ValidateID checks that id can be used as a script id and as an MQTT topic level.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength || strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return nil
}

// IDs returns the ids of all sessions in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Get returns a snapshot of the session for id.
func (st *Store) Get(id string) (Snapshot, error) {
	s, err := st.acquire(id, false)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Output returns the latest output of id.
func (st *Store) Output(id string) (script.Script, error) {
	snap, err := st.Get(id)
	if err != nil {
		return script.Script{}, err
	}
	if snap.Output == nil {
		return script.Script{}, fmt.Errorf("%s: %w", id, ErrNoInput)
	}
	return *snap.Output, nil
}

// LastGood returns the latest output of id that was computed without failing modifiers.
func (st *Store) LastGood(id string) (script.Script, error) {
	snap, err := st.Get(id)
	if err != nil {
		return script.Script{}, err
	}
	if snap.LastGood == nil {
		return script.Script{}, fmt.Errorf("%s: %w", id, ErrNoInput)
	}
	return *snap.LastGood, nil
}

// SetScript replaces the input script of id, creating the session if needed.
func (st *Store) SetScript(id string, in script.Script) (Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}
	if len(in.Actions) == 0 {
		events.Emit("warn", "script.rejected", "script has no actions", map[string]interface{}{
			"script_id": id,
		})
		return Snapshot{}, script.ErrEmptyScript
	}

	s, _ := st.acquire(id, true)
	defer s.mu.Unlock()

	input := in.Clone()
	s.input = &input
	events.Emit("info", "script.loaded", "", map[string]interface{}{
		"script_id": id,
		"actions":   len(input.Actions),
	})

	st.recompute(s)
	return s.snapshot(), nil
}

// SetPipeline replaces the modifier list of id, creating the session if needed.
func (st *Store) SetPipeline(id string, mods []pipeline.Modifier) (Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return Snapshot{}, err
	}

	s, _ := st.acquire(id, true)
	defer s.mu.Unlock()

	s.modifiers = cloneModifiers(mods)
	events.Emit("info", "pipeline.updated", "", map[string]interface{}{
		"script_id": id,
		"modifiers": len(mods),
	})

	st.recompute(s)
	return s.snapshot(), nil
}

// AddModifier appends a new modifier of kind to the pipeline of id.
func (st *Store) AddModifier(id string, kind pipeline.Kind) (pipeline.Modifier, Snapshot, error) {
	m, err := pipeline.New(kind)
	if err != nil {
		return pipeline.Modifier{}, Snapshot{}, err
	}

	st.mu.RLock()
	timeout := st.customTimeout
	st.mu.RUnlock()
	if kind == pipeline.KindCustom && timeout > 0 {
		m, err = pipeline.SetOption(m, pipeline.OptTimeoutMs, float64(timeout/time.Millisecond))
		if err != nil {
			return pipeline.Modifier{}, Snapshot{}, err
		}
		m.DefaultOptions[pipeline.OptTimeoutMs] = m.Options[pipeline.OptTimeoutMs]
	}

	snap, err := st.mutate(id, func(s *session) error {
		s.modifiers = append(s.modifiers, m)
		events.Emit("info", "modifier.added", "", modifierFields(id, m))
		return nil
	})
	if err != nil {
		return pipeline.Modifier{}, Snapshot{}, err
	}
	return cloneModifiers([]pipeline.Modifier{m})[0], snap, nil
}

// UpdateOption sets one option of modifier mid.
func (st *Store) UpdateOption(id, mid, key string, value interface{}) (Snapshot, error) {
	return st.UpdateOptions(id, mid, map[string]interface{}{key: value})
}

// UpdateOptions sets several options of modifier mid at once. Either every
// option is applied or, on the first invalid one, none is.
func (st *Store) UpdateOptions(id, mid string, opts map[string]interface{}) (Snapshot, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return st.mutate(id, func(s *session) error {
		i := pipeline.IndexOf(s.modifiers, mid)
		if i < 0 {
			return fmt.Errorf("%s: %w", mid, ErrModifierNotFound)
		}

		m := s.modifiers[i]
		for _, k := range keys {
			var err error
			if m, err = pipeline.SetOption(m, k, opts[k]); err != nil {
				return err
			}
		}
		s.modifiers[i] = m

		fields := modifierFields(id, m)
		fields["options"] = keys
		events.Emit("info", "modifier.updated", "", fields)
		return nil
	})
}

// ResetModifier restores the default options of modifier mid.
func (st *Store) ResetModifier(id, mid string) (Snapshot, error) {
	return st.mutate(id, func(s *session) error {
		i := pipeline.IndexOf(s.modifiers, mid)
		if i < 0 {
			return fmt.Errorf("%s: %w", mid, ErrModifierNotFound)
		}
		s.modifiers[i] = pipeline.Reset(s.modifiers[i])
		events.Emit("info", "modifier.reset", "", modifierFields(id, s.modifiers[i]))
		return nil
	})
}

// MoveModifier swaps modifier mid with its neighbour in direction (+1 or -1).
// Moving past either end leaves the order unchanged.
func (st *Store) MoveModifier(id, mid string, direction int) (Snapshot, error) {
	return st.mutate(id, func(s *session) error {
		i := pipeline.IndexOf(s.modifiers, mid)
		if i < 0 {
			return fmt.Errorf("%s: %w", mid, ErrModifierNotFound)
		}
		s.modifiers = pipeline.Reorder(s.modifiers, i, direction)

		fields := modifierFields(id, s.modifiers[pipeline.IndexOf(s.modifiers, mid)])
		fields["direction"] = direction
		fields["index"] = pipeline.IndexOf(s.modifiers, mid)
		events.Emit("info", "modifier.moved", "", fields)
		return nil
	})
}

// RemoveModifier deletes modifier mid from the pipeline of id.
func (st *Store) RemoveModifier(id, mid string) (Snapshot, error) {
	return st.mutate(id, func(s *session) error {
		i := pipeline.IndexOf(s.modifiers, mid)
		if i < 0 {
			return fmt.Errorf("%s: %w", mid, ErrModifierNotFound)
		}
		removed := s.modifiers[i]
		s.modifiers = pipeline.Delete(s.modifiers, mid)
		events.Emit("info", "modifier.removed", "", modifierFields(id, removed))
		return nil
	})
}

// Delete removes the session for id.
func (st *Store) Delete(id string) error {
	// holding s.mu waits out any mutation in flight, so no save can land after
	// the persisted row is deleted
	s, err := st.acquire(id, false)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	st.mu.Lock()
	if st.sessions[id] == s {
		delete(st.sessions, id)
	}
	p := st.persister
	st.mu.Unlock()
	s.deleted = true

	if p != nil {
		if err := p.DeleteScript(id); err != nil {
			events.Emit("error", "system.error", "failed to delete persisted script", map[string]interface{}{
				"script_id": id,
				"error":     err.Error(),
			})
		}
	}
	events.Emit("info", "script.removed", "", map[string]interface{}{"script_id": id})
	return nil
}

func (st *Store) lookup(id string, create bool) (*session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s, nil
	}
	if !create {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s, nil
	}
	s = &session{id: id, modifiers: cloneModifiers(st.defaults)}
	st.sessions[id] = s
	return s, nil
}

// acquire looks up id and returns its session locked. A session deleted while
// waiting for the lock is not returned: without create the result is
// ErrNotFound, with create a fresh session replaces it.
func (st *Store) acquire(id string, create bool) (*session, error) {
	for {
		s, err := st.lookup(id, create)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.deleted {
			return s, nil
		}
		s.mu.Unlock()
		if !create {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
	}
}

// mutate runs fn on an existing session and recomputes it when fn succeeds.
func (st *Store) mutate(id string, fn func(s *session) error) (Snapshot, error) {
	s, err := st.acquire(id, false)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.mu.Unlock()

	if err := fn(s); err != nil {
		return Snapshot{}, err
	}
	st.recompute(s)
	return s.snapshot(), nil
}

// recompute folds the input through the pipeline and saves the result. The
// caller holds s.mu.
func (st *Store) recompute(s *session) {
	st.render(s)
	st.save(s)
}

// render updates the output. Output computed without failures also becomes
// the last-known-good output.
func (st *Store) render(s *session) {
	s.updatedAt = time.Now().UTC()
	if s.input == nil {
		s.output = nil
		s.failures = nil
		return
	}

	var failures []Failure
	out, err := pipeline.Apply(*s.input, s.modifiers, func(m pipeline.Modifier, err error) {
		failures = append(failures, Failure{ModifierID: m.ID, Kind: m.Kind, Error: err.Error()})
	})
	if err != nil {
		events.Emit("error", "pipeline.failed", err.Error(), map[string]interface{}{
			"script_id": s.id,
		})
		s.output = nil
		s.failures = nil
		return
	}

	s.output = &out
	s.failures = failures

	fields := map[string]interface{}{
		"script_id": s.id,
		"modifiers": len(s.modifiers),
		"actions":   len(out.Actions),
		"duration":  out.Metadata.Duration,
	}
	if len(failures) > 0 {
		fields["failures"] = len(failures)
		events.Emit("warn", "pipeline.failed", "pipeline applied with failing modifiers", fields)
		return
	}

	lastGood := out.Clone()
	s.lastGood = &lastGood
	events.Emit("info", "pipeline.applied", "", fields)
}

// save hands the session to the persister and the render hook.
func (st *Store) save(s *session) {
	st.mu.RLock()
	p := st.persister
	hook := st.onRender
	st.mu.RUnlock()

	if s.deleted {
		return
	}
	if p != nil && s.input != nil {
		row, err := toRow(s)
		if err == nil {
			err = p.SaveScript(row)
		}
		if err != nil {
			events.Emit("error", "system.error", "failed to persist script", map[string]interface{}{
				"script_id": s.id,
				"error":     err.Error(),
			})
		}
	}

	if hook != nil && s.output != nil {
		hook(s.id, s.output.Clone())
	}
}

func toRow(s *session) (postgres.ScriptRow, error) {
	row := postgres.ScriptRow{ID: s.id, UpdatedAt: s.updatedAt}

	var err error
	if row.Input, err = script.MarshalJSON(*s.input); err != nil {
		return row, err
	}
	if row.Pipeline, err = json.Marshal(pipeline.ToConfig(s.modifiers)); err != nil {
		return row, err
	}
	if s.output != nil {
		if row.Rendered, err = script.MarshalJSON(*s.output); err != nil {
			return row, err
		}
	}
	return row, nil
}

func modifierFields(scriptID string, m pipeline.Modifier) map[string]interface{} {
	return map[string]interface{}{
		"script_id":   scriptID,
		"modifier_id": m.ID,
		"kind":        string(m.Kind),
	}
}
