package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON rules file and builds an Engine from it.
// The file must declare a schema_version this engine understands.
func LoadFile(path string) (*Engine, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// ReadFile parses a rules file without building an Engine. A file that
// omits global_moq gets DefaultGlobalMOQ; an explicit 0 disables it.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading rules file: %w", err)
	}

	cfg := Config{GlobalMOQ: DefaultGlobalMOQ}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing rules file: %w", err)
	}
	if cfg.SchemaVersion == "" {
		return Config{}, fmt.Errorf("%w: rules file %s has no schema_version", ErrInvalidConfig, path)
	}
	return cfg, nil
}
