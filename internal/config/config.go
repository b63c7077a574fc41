// Package config loads tool settings from msbt.toml, looked up in the
// workspace root. Every setting has a default; a missing file is not an
// error.
package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the settings file looked up in the workspace root.
const FileName = "msbt.toml"

type Config struct {
	// LogLevel is a zerolog level name: debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Index     IndexConfig     `toml:"index"`
	Evaluator EvaluatorConfig `toml:"evaluator"`
	Validator ValidatorConfig `toml:"validator"`
}

type IndexConfig struct {
	// CachePath is the on-disk summary cache; empty disables it.
	CachePath string `toml:"cache_path"`
	// Exclude lists directory names skipped during workspace scans, in
	// addition to the built-in output and dependency trees.
	Exclude []string `toml:"exclude"`
}

type EvaluatorConfig struct {
	// SdkRoots are directories searched when resolving SDK references.
	SdkRoots []string `toml:"sdk_roots"`
}

type ValidatorConfig struct {
	// Disable lists diagnostic codes that are never reported.
	Disable []string `toml:"disable"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Index: IndexConfig{
			CachePath: filepath.Join(".msbt", "index.db"),
		},
	}
}

// Load reads the settings file under root, falling back to defaults when the
// file is absent. A file that exists but does not parse is an error.
func Load(root string) (*Config, error) {
	cfg := Default()
	content, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CachePath resolves the index cache location against the root. Empty means
// the cache is disabled.
func (c *Config) CachePath(root string) string {
	if c.Index.CachePath == "" {
		return ""
	}
	if filepath.IsAbs(c.Index.CachePath) {
		return c.Index.CachePath
	}
	return filepath.Join(root, c.Index.CachePath)
}
