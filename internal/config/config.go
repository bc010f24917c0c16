// Package config holds the typebind tool configuration (typebind.yaml) and
// the shared constants used across packages.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level typebind.yaml configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
	Catalog CatalogConfig `yaml:"catalog"`
	Scan    ScanConfig    `yaml:"scan"`

	// Manifests lists declaration manifests loaded at startup, relative to
	// the config file.
	Manifests []string `yaml:"manifests,omitempty"`

	// dir is the directory containing the config file.
	dir string
}

// EngineConfig tunes binding map construction.
type EngineConfig struct {
	// MaxDepth bounds inheritance recursion. Zero means unlimited.
	// Defaults to DefaultMaxDepth when omitted.
	MaxDepth *int `yaml:"max_depth,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to "warn".
	Level string `yaml:"level,omitempty"`

	// JSON switches from the text handler to the JSON handler.
	JSON bool `yaml:"json,omitempty"`
}

// CatalogConfig points at the SQLite declaration catalog.
type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ScanConfig lists the Go packages scanned for declarations.
type ScanConfig struct {
	Patterns []string `yaml:"patterns,omitempty"`
	Ignore   []string `yaml:"ignore,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a typebind.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses typebind.yaml content from bytes.
// The path argument is used for error messages and to resolve relative paths.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for typebind.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file, or empty string if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Engine.MaxDepth != nil && *c.Engine.MaxDepth < 0 {
		return fmt.Errorf("%s: engine.max_depth must not be negative, got %d", path, *c.Engine.MaxDepth)
	}
	if c.Log.Level != "" {
		if _, err := ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%s: log.level: %w", path, err)
		}
	}
	for i, p := range c.Scan.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s: scan.patterns[%d]: empty pattern", path, i)
		}
	}
	for i, m := range c.Manifests {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%s: manifests[%d]: empty path", path, i)
		}
	}
	return nil
}

// setDefaults fills in default values for omitted fields and applies
// environment overrides.
func (c *Config) setDefaults() {
	if c.Engine.MaxDepth == nil {
		depth := DefaultMaxDepth
		c.Engine.MaxDepth = &depth
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		if _, err := ParseLevel(level); err == nil {
			c.Log.Level = level
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if catalog := os.Getenv(EnvCatalog); catalog != "" {
		c.Catalog.Path = catalog
	}
}

// MaxDepth returns the effective recursion limit.
func (c *Config) MaxDepth() int {
	if c.Engine.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *c.Engine.MaxDepth
}

// ManifestPaths returns the manifest paths resolved against the config
// file's directory.
func (c *Config) ManifestPaths() []string {
	paths := make([]string, 0, len(c.Manifests))
	for _, m := range c.Manifests {
		if !filepath.IsAbs(m) && c.dir != "" {
			m = filepath.Join(c.dir, m)
		}
		paths = append(paths, m)
	}
	return paths
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
