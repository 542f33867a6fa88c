package session

import (
	"fmt"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/config"
	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of scripts to load for restore.
const DefaultRestoreLimit = 1000

// ScriptLoader reads persisted scripts, newest first.
type ScriptLoader interface {
	LoadScripts(limit int) ([]postgres.ScriptRow, error)
}

// Restore rebuilds sessions from persisted rows and recomputes their output.
// Rows that no longer parse are skipped and reported as script.rejected.
// Restored sessions are not saved back and do not trigger the render hook.
func (st *Store) Restore(loader ScriptLoader, limit int) (int, error) {
	if loader == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := loader.LoadScripts(limit)
	if err != nil {
		return 0, err
	}

	st.mu.RLock()
	timeout := st.customTimeout
	st.mu.RUnlock()

	restored := 0
	for _, row := range rows {
		in, mods, err := decodeRow(row)
		if err != nil {
			events.Emit("warn", "script.rejected", "failed to restore script", map[string]interface{}{
				"script_id": row.ID,
				"error":     err.Error(),
			})
			continue
		}

		if timeout > 0 {
			for i := range mods {
				if mods[i].Kind == pipeline.KindCustom {
					mods[i].DefaultOptions[pipeline.OptTimeoutMs] = float64(timeout / time.Millisecond)
				}
			}
		}

		s, _ := st.acquire(row.ID, true)
		s.input = &in
		s.modifiers = mods
		st.render(s)
		s.mu.Unlock()
		restored++
	}

	return restored, nil
}

func decodeRow(row postgres.ScriptRow) (script.Script, []pipeline.Modifier, error) {
	if err := ValidateID(row.ID); err != nil {
		return script.Script{}, nil, err
	}

	in, err := script.ParseJSON(row.Input)
	if err != nil {
		return script.Script{}, nil, err
	}
	if len(in.Actions) == 0 {
		return script.Script{}, nil, script.ErrEmptyScript
	}

	if len(row.Pipeline) == 0 {
		return in, nil, nil
	}
	cfg, err := config.ParsePipelineConfig(row.Pipeline)
	if err != nil {
		return script.Script{}, nil, err
	}
	mods, err := pipeline.FromConfig(cfg)
	if err != nil {
		return script.Script{}, nil, fmt.Errorf("restore pipeline: %w", err)
	}
	return in, mods, nil
}
