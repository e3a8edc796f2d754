package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the YAML configuration file shape accepted by
// --config for both serve-master and serve-slave.
type DaemonConfig struct {
	DataDir           string        `yaml:"dataDir"`
	NNIndex           int           `yaml:"nnIndex"`
	KeyUpdateInterval time.Duration `yaml:"keyUpdateInterval"`
	TokenLifetime     time.Duration `yaml:"tokenLifetime"`

	HealthAddr string `yaml:"healthAddr"`
	HTTPAddr   string `yaml:"httpAddr"`

	MasterURL    string        `yaml:"masterURL"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// loadConfig reads and parses a DaemonConfig from path. A zero-value
// config and nil error are returned if path is empty, so callers can
// always start from flags and layer a config file on top when given.
func loadConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
