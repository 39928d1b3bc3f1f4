// Package config loads the daemon's own configuration: unit search
// directories and the Interface terminate-timeout. Full config-file
// authoring/CLI layering is an external collaborator per spec.md's
// Non-goals; this carries just enough of the predecessor's
// pkg/config/app_config.go pattern (YAML + xdg default dir + mergo merge
// over defaults) to give the rest of the daemon somewhere to read settings
// from.
package config

import (
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/OpenPeeDeeP/xdg"
	yaml "github.com/jesseduffield/yaml"
)

// Config holds daemon-wide settings consumed by the Unit Library and the
// Interface Runtime.
type Config struct {
	// UnitDirectories lists every directory the watcher observes for unit
	// files, in search order.
	UnitDirectories []string `yaml:"unitDirectories,omitempty"`

	// TerminateTimeoutMS bounds how long Interface deactivation waits for a
	// child process to exit after being asked to terminate.
	TerminateTimeoutMS int `yaml:"terminateTimeoutMs,omitempty"`

	// ConfigDir is where the daemon keeps its own state (logs, etc), not a
	// unit search path.
	ConfigDir string `yaml:"-"`

	Debug bool `yaml:"-"`
}

func defaults() Config {
	return Config{
		UnitDirectories:    []string{"/etc/exclave/units"},
		TerminateTimeoutMS: 5000,
		ConfigDir:          xdg.New("exclave", "exclave").ConfigHome(),
	}
}

// Load reads path (if it exists) as YAML and merges it over the compiled-in
// defaults, mirroring NewAppConfig's default-then-override merge.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return &cfg, nil
			}
			return nil, err
		}

		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, err
		}
		if err := mergo.Merge(&cfg, loaded, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// TerminateTimeout returns the configured Interface terminate timeout as a
// Duration.
func (c *Config) TerminateTimeout() time.Duration {
	return time.Duration(c.TerminateTimeoutMS) * time.Millisecond
}

// WorkingDirectory resolves an Interface's effective working directory: an
// absolute override wins outright, a relative override resolves against the
// unit's own directory, and no override falls back to the unit's directory.
func (c *Config) WorkingDirectory(unitDir string, override string) string {
	if override == "" {
		return unitDir
	}
	if filepath.IsAbs(override) {
		return override
	}
	return filepath.Join(unitDir, override)
}
