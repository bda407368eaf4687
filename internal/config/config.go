package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file looked up when no path is
// given.
const DefaultFilename = "objgraph.yaml"

// Config represents the optional objgraph.yaml configuration.
type Config struct {
	Modules ModulesConfig `yaml:"modules"`
	Catalog string        `yaml:"catalog,omitempty"`
	HTML    string        `yaml:"html,omitempty"`
	Log     LogConfig     `yaml:"log"`
}

// ModulesConfig describes where modules come from.
type ModulesConfig struct {
	Root      string            `yaml:"root,omitempty"`
	Location  string            `yaml:"location,omitempty"`
	Redirects map[string]string `yaml:"redirects,omitempty"`
	// Labels maps object labels to their own module root directory.
	Labels map[string]string `yaml:"labels,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Resolved contains configuration values with defaults applied and paths
// made absolute.
type Resolved struct {
	ModuleRoot string
	Location   string
	Catalog    string
	HTML       string
	Redirects  map[string]string
	LabelRoots map[string]string
	LogLevel   slog.Level
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOptional reads the configuration file at path if present.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}

// Resolve applies defaults. Relative paths are taken relative to dir,
// the directory holding the configuration file.
func (c *Config) Resolve(dir string) (*Resolved, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	root := c.Modules.Root
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	root, err = filepath.Abs(join(dir, root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module root: %w", err)
	}

	location := strings.TrimSpace(c.Modules.Location)
	if location == "" {
		location = "file://" + filepath.ToSlash(root) + "/"
	}

	labels := make(map[string]string, len(c.Modules.Labels))
	for label, p := range c.Modules.Labels {
		abs, err := filepath.Abs(join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root for label %q: %w", label, err)
		}
		labels[label] = abs
	}

	redirects := make(map[string]string, len(c.Modules.Redirects))
	for id, target := range c.Modules.Redirects {
		redirects[id] = target
	}

	r := &Resolved{
		ModuleRoot: root,
		Location:   location,
		Redirects:  redirects,
		LabelRoots: labels,
		LogLevel:   level,
	}
	if c.Catalog != "" {
		r.Catalog = join(dir, c.Catalog)
	}
	if c.HTML != "" {
		r.HTML = join(dir, c.HTML)
	}
	return r, nil
}

// ParseLevel maps a level name to a slog level. The empty string is
// warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func join(dir, p string) string {
	if filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(dir, p)
}
