// Package config loads the .phpintel.kdl workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const FileName = ".phpintel.kdl"

// Config is the workspace configuration.
type Config struct {
	Project     Project
	Index       Index
	Performance Performance
}

// Project identifies the workspace.
type Project struct {
	Root string
	Name string
}

// Index controls which files are scanned.
type Index struct {
	Include         []string
	Exclude         []string
	MaxFileSize     int64
	Watch           bool
	WatchDebounceMs int
}

// Performance bounds the indexer's parallelism.
type Performance struct {
	Workers int
}

// Default returns the configuration used when no .phpintel.kdl exists.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Index: Index{
			Include: []string{"**/*.php"},
			Exclude: []string{
				"**/vendor/**",
				"**/node_modules/**",
				"**/.git/**",
				"**/cache/**",
			},
			MaxFileSize:     5 * 1024 * 1024,
			WatchDebounceMs: 100,
		},
		Performance: Performance{Workers: 4},
	}
}

// Load reads .phpintel.kdl from the project root, falling back to defaults
// when the file does not exist. The project root resolves to an absolute
// path relative to the directory holding the config file.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, FileName)

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(absOr(projectRoot)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = absOr(projectRoot)
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg, nil
}

func absOr(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
