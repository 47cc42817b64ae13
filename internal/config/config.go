// Package config loads an engine.Config from a YAML file. Fields the file
// leaves unset stay at their zero value in the returned Config; the engine
// fills them from engine.DefaultConfig when the Config is handed to
// engine.NewSupervisor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roasbeef/maiko/internal/engine"
)

// Load reads and parses the YAML file at path into an engine.Config,
// defaulting every unset field via engine.Config's own withDefaults
// behavior (applied implicitly by every engine constructor that takes a
// Config, so callers never need to call it themselves).
func Load(path string) (engine.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg engine.Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return engine.Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Write serializes cfg as YAML to path, creating or truncating the file.
// Useful for emitting a starter config a user can then edit.
func Write(path string, cfg engine.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}
