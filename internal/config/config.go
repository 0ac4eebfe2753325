// Package config stores the CLI's persisted settings as a YAML document
// under the user's configuration directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

// Config holds pictag settings.
type Config struct {
	// CatalogDir is the directory holding the catalog database; empty
	// means the default location under the user config directory.
	CatalogDir string `yaml:"catalog_dir,omitempty"`
	// DefaultDir is browsed when no directory argument is given.
	DefaultDir string `yaml:"default_dir,omitempty"`
	// CharactersAny switches character filters to disjunctive evaluation.
	CharactersAny bool `yaml:"characters_any"`
	// TagsAny switches tag filters to disjunctive evaluation.
	TagsAny bool `yaml:"tags_any"`
}

// DefaultConfig returns a Config with the stock settings: no default
// directory, the standard catalog location, conjunctive filters.
func DefaultConfig() Config {
	return Config{}
}

// Home returns the directory holding pictag's config file, respecting the
// PICTAG_CONFIG_HOME env var.
func Home() string {
	if h := os.Getenv("PICTAG_CONFIG_HOME"); h != "" {
		return h
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".pictag")
	}
	return filepath.Join(configDir, "pictag")
}

// Path returns the full path of the config file.
func Path() string {
	return filepath.Join(Home(), fileName)
}

// Load reads the config file, filling missing fields from defaults.
// A missing file is not an error: the defaults are returned as-is.
func Load() (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read config at %s: %w", Path(), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("invalid %s: %w", fileName, err)
	}
	return cfg, nil
}

// Save writes the config file, creating its directory if needed.
func Save(cfg Config) error {
	if err := os.MkdirAll(Home(), 0750); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", Home(), err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
