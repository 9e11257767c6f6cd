// Package config loads the orchestrator's on-disk application configuration from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the orchestrator's application-level configuration. CLI persistent flags
// default from here; a workflow file's tmux/claude blocks are separate.
type Config struct {
	ProjectDir  string `toml:"project_dir"`
	TmuxSession string `toml:"tmux_session"`
	SignalPort  int    `toml:"signal_port"`
	NoColor     bool   `toml:"no_color"`
	Verbose     bool   `toml:"verbose"`

	Checklist ChecklistConfig `toml:"checklist"`
}

// ChecklistConfig configures the checklist tool's external collaborators. ModelCommand is
// the shell command the model check pipes its prompt to; empty leaves model checks
// unconfigured.
type ChecklistConfig struct {
	ModelCommand string `toml:"model_command"`
}

// DefaultSignalPort is the first port the completion-signal server tries to bind.
const DefaultSignalPort = 47932

// Default returns the built-in configuration defaults.
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		ProjectDir: cwd,
		SignalPort: DefaultSignalPort,
	}
}

// DefaultPath returns the default config file location, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "orchestrator", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "orchestrator", "config.toml")
}

// Load reads and parses a config file, applying defaults for anything left unset. A
// missing file at path is not an error; Default() is returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.SignalPort == 0 {
		cfg.SignalPort = DefaultSignalPort
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = Default().ProjectDir
	}
	return cfg, nil
}
