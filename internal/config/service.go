package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	Version int `yaml:"version"`
	Service struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"service"`
	Network struct {
		HTTPPort int `yaml:"http_port"`
		TLS      struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
			// ClientCAFile turns on mutual TLS for preview clients and tools.
			ClientCAFile string `yaml:"client_ca_file"`
		} `yaml:"tls"`
	} `yaml:"network"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"postgres"`
	Pipeline struct {
		// Default is a pipeline file applied to scripts that arrive without one.
		Default         string `yaml:"default"`
		CustomTimeoutMs int    `yaml:"custom_timeout_ms"`
	} `yaml:"pipeline"`
}

// HTTPPort returns the configured HTTP port, defaulting to 8080 if not set.
func (c *ServiceConfig) HTTPPort() int {
	if c.Network.HTTPPort == 0 {
		return 8080
	}
	return c.Network.HTTPPort
}

// TopicPrefix returns the MQTT topic prefix, defaulting to "strokeforge".
func (c *ServiceConfig) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "strokeforge"
	}
	return c.MQTT.TopicPrefix
}

// CustomTimeout returns the custom function time budget, 0 meaning the default.
func (c *ServiceConfig) CustomTimeout() time.Duration {
	return time.Duration(c.Pipeline.CustomTimeoutMs) * time.Millisecond
}

func LoadServiceConfig(path string) (*ServiceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ServiceConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported service.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
