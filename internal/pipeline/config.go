package pipeline

import (
	"fmt"
	"sort"

	"github.com/AaronLay10/StrokeForge/internal/config"
)

// FromConfig builds modifiers from a saved pipeline. Options not listed keep
// their kind's defaults.
func FromConfig(cfg *config.PipelineConfig) ([]Modifier, error) {
	mods := make([]Modifier, 0, len(cfg.Modifiers))
	for i, mc := range cfg.Modifiers {
		m, err := New(Kind(mc.Kind))
		if err != nil {
			return nil, fmt.Errorf("pipeline modifier %d: %w", i, err)
		}

		keys := make([]string, 0, len(mc.Options))
		for k := range mc.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m, err = SetOption(m, k, mc.Options[k])
			if err != nil {
				return nil, fmt.Errorf("pipeline modifier %d: %w", i, err)
			}
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// ToConfig converts modifiers back into a saved pipeline, listing only options
// that differ from the kind's stock defaults. A modifier whose defaults were
// overridden at creation keeps those values in the saved form.
func ToConfig(mods []Modifier) *config.PipelineConfig {
	cfg := &config.PipelineConfig{Version: 1, Modifiers: make([]config.ModifierConfig, 0, len(mods))}
	for _, m := range mods {
		mc := config.ModifierConfig{Kind: string(m.Kind)}
		var stock Options
		if spec, ok := kinds[m.Kind]; ok {
			stock = spec.defaults()
		}
		for k, v := range m.Options {
			if def, ok := stock[k]; ok && def == v {
				continue
			}
			if mc.Options == nil {
				mc.Options = map[string]interface{}{}
			}
			mc.Options[k] = v
		}
		cfg.Modifiers = append(cfg.Modifiers, mc)
	}
	return cfg
}
