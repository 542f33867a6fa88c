package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/storage/postgres"
)

type fakeLoader struct {
	rows  []postgres.ScriptRow
	err   error
	limit int
}

func (f *fakeLoader) LoadScripts(limit int) ([]postgres.ScriptRow, error) {
	f.limit = limit
	return f.rows, f.err
}

const restoreInput = `{"actions":[{"at":0,"pos":0},{"at":500,"pos":100},{"at":1000,"pos":0},{"at":1500,"pos":100},{"at":2000,"pos":0}]}`

func TestRestore(t *testing.T) {
	events.Clear()
	loader := &fakeLoader{rows: []postgres.ScriptRow{
		{ID: "plain", Input: json.RawMessage(restoreInput)},
		{ID: "doubled", Input: json.RawMessage(restoreInput), Pipeline: json.RawMessage(`{"version":1,"modifiers":[{"kind":"double"}]}`)},
		{ID: "broken", Input: json.RawMessage(`{"actions":[{"at":"x"}]}`)},
		{ID: "badpipe", Input: json.RawMessage(restoreInput), Pipeline: json.RawMessage(`{"version":1,"modifiers":[{"kind":"spin"}]}`)},
		{ID: "bad/id", Input: json.RawMessage(restoreInput)},
	}}

	st := NewStore()
	p := &fakePersister{}
	st.SetPersister(p)
	rendered := 0
	st.SetRenderHook(func(string, script.Script) { rendered++ })

	n, err := st.Restore(loader, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 restored sessions, got %d", n)
	}
	if loader.limit != DefaultRestoreLimit {
		t.Errorf("expected default limit, got %d", loader.limit)
	}

	out, err := st.Output("doubled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Actions) != 3 {
		t.Errorf("expected doubled output, got %d actions", len(out.Actions))
	}
	if out, _ := st.Output("plain"); len(out.Actions) != 5 {
		t.Errorf("expected untouched output, got %d actions", len(out.Actions))
	}

	for _, id := range []string{"broken", "badpipe"} {
		if _, err := st.Get(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", id, err)
		}
		if !hasEvent("script.rejected", id) {
			t.Errorf("%s: expected script.rejected event", id)
		}
	}

	if len(p.saved) != 0 || rendered != 0 {
		t.Errorf("restore should not persist or render, got %d saves and %d renders", len(p.saved), rendered)
	}
}

func TestRestore_LoaderError(t *testing.T) {
	st := NewStore()
	loadErr := errors.New("connection refused")

	if _, err := st.Restore(&fakeLoader{err: loadErr}, 10); !errors.Is(err, loadErr) {
		t.Errorf("expected loader error, got %v", err)
	}
	if n, err := st.Restore(nil, 10); n != 0 || err != nil {
		t.Errorf("expected no-op for nil loader, got %d, %v", n, err)
	}
}

func TestRestore_KeepsCustomTimeout(t *testing.T) {
	st := NewStore()
	st.SetCustomTimeout(250 * time.Millisecond)
	p := &fakePersister{}
	st.SetPersister(p)
	st.SetScript("custom", strokes())
	if _, _, err := st.AddModifier("custom", pipeline.KindCustom); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.saved) == 0 {
		t.Fatal("expected the session to be persisted")
	}
	row := p.saved[len(p.saved)-1]

	restored := NewStore()
	restored.SetCustomTimeout(250 * time.Millisecond)
	if n, err := restored.Restore(&fakeLoader{rows: []postgres.ScriptRow{row}}, 0); err != nil || n != 1 {
		t.Fatalf("expected 1 restored session, got %d (%v)", n, err)
	}

	snap, err := restored.Get("custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Modifiers) != 1 {
		t.Fatalf("expected 1 modifier, got %d", len(snap.Modifiers))
	}
	m := snap.Modifiers[0]
	if got := m.Options.Float(pipeline.OptTimeoutMs); got != 250 {
		t.Errorf("expected restored timeout 250, got %v", got)
	}

	snap, err = restored.ResetModifier("custom", m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snap.Modifiers[0].Options.Float(pipeline.OptTimeoutMs); got != 250 {
		t.Errorf("expected reset timeout 250, got %v", got)
	}
}
