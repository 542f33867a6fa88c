package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is a saved modifier pipeline.
//
//	version: 1
//	modifiers:
//	  - kind: double
//	    options:
//	      removeShortPauses: true
//	  - kind: limit
//	    options:
//	      devicePreset: launch
type PipelineConfig struct {
	Version   int              `yaml:"version" json:"version"`
	Modifiers []ModifierConfig `yaml:"modifiers" json:"modifiers"`
}

// ModifierConfig is one pipeline step. Options not listed keep their defaults.
type ModifierConfig struct {
	Kind    string                 `yaml:"kind" json:"kind"`
	Options map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
}

// LoadPipelineConfig reads a pipeline file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePipelineConfig(b)
}

// ParsePipelineConfig decodes a YAML pipeline. JSON input is accepted as well.
func ParsePipelineConfig(b []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported pipeline version: %d", cfg.Version)
	}
	for i, m := range cfg.Modifiers {
		if m.Kind == "" {
			return nil, fmt.Errorf("pipeline modifier %d: missing kind", i)
		}
	}

	return &cfg, nil
}

// MarshalPipelineConfig encodes cfg as YAML.
func MarshalPipelineConfig(cfg *PipelineConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}
