package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "glyphflow.yaml"
	homeConfigName    = "config.yaml"
)

// Config is the declarative host configuration shape.
type Config struct {
	// Paths root the host directory layout. Empty fields default under
	// DataDir (or the user config dir when that is empty too).
	Paths PathsConfig `yaml:"paths"`

	// Capabilities lists the grants extended to plugins, for example
	// "env.os.read" or "net.outbound".
	Capabilities []string `yaml:"capabilities"`

	// Settings are host application settings exposed to plugins
	// read-only through HostSetting.
	Settings map[string]string `yaml:"settings"`

	// PluginDirs are directories scanned for plugins at startup.
	PluginDirs []string `yaml:"plugin_dirs"`

	Jobs JobsConfig `yaml:"jobs"`

	// TriggerQueueDepth bounds the engine trigger queue.
	TriggerQueueDepth int `yaml:"trigger_queue_depth"`

	LogLevel string `yaml:"log_level"`
}

// PathsConfig holds the host directory layout.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir"`
	CacheDir string `yaml:"cache_dir"`
	FlowsDir string `yaml:"flows_dir"`
}

// JobsConfig sizes the job worker pool.
type JobsConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// DefaultConfig returns the built-in configuration used when no config file
// is found.
func DefaultConfig() Config {
	return Config{
		Capabilities:      []string{"env.flow.read", "env.flow.write", "env.app.read", "env.os.read"},
		Jobs:              JobsConfig{Workers: 4, QueueDepth: 64},
		TriggerQueueDepth: 256,
		LogLevel:          "info",
	}
}

// CapabilitySet converts the grant list to the lookup map Options wants.
func (c Config) CapabilitySet() map[string]bool {
	set := make(map[string]bool, len(c.Capabilities))
	for _, name := range c.Capabilities {
		set[name] = true
	}
	return set
}

// DiscoverConfigPath resolves the config file location with first-match
// semantics: the explicit path when given, then ./glyphflow.yaml, then
// ~/.glyphflow/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".glyphflow", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// An explicit path that does not exist is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads and parses one config file, filling defaults for fields
// the file leaves unset.
func LoadConfig(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if cfg.Jobs.Workers <= 0 {
		cfg.Jobs.Workers = 4
	}
	if cfg.Jobs.QueueDepth <= 0 {
		cfg.Jobs.QueueDepth = 64
	}
	if cfg.TriggerQueueDepth <= 0 {
		cfg.TriggerQueueDepth = 256
	}
	return cfg, nil
}
