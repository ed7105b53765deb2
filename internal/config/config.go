// Package config loads unipkg settings from TOML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the complete unipkg configuration.
type Config struct {
	General  GeneralConfig            `toml:"general"`
	Output   OutputConfig             `toml:"output"`
	Managers map[string]ManagerConfig `toml:"managers"`
	Aliases  map[string]string        `toml:"aliases"`
}

// GeneralConfig contains general settings.
type GeneralConfig struct {
	// BackendPriority is the detection order used when the caller expresses
	// no preference. The first available backend wins.
	BackendPriority []string `toml:"backend_priority"`

	// AURPriority is the order used when "aur" appears in a preference list.
	AURPriority []string `toml:"aur_priority"`

	// Timeout bounds every subprocess started by a backend.
	Timeout Duration `toml:"timeout"`

	// AssumeYes skips confirmation prompts when true (like -y flag).
	AssumeYes bool `toml:"assume_yes"`

	// History records CLI operations in the history database.
	History bool `toml:"history"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	// Color enables colored output (respects NO_COLOR env var).
	Color bool `toml:"color"`

	// Unicode enables unicode symbols in output.
	Unicode bool `toml:"unicode"`

	// Verbose streams backend output to the terminal.
	Verbose bool `toml:"verbose"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `toml:"log_level"`
}

// ManagerConfig contains per-manager settings.
type ManagerConfig struct {
	// Binary overrides the executable name or path.
	Binary string `toml:"binary"`

	// Sudo overrides whether mutations are run through sudo.
	Sudo *bool `toml:"sudo"`

	// DisabledOperations removes operations from the backend's supported set.
	DisabledOperations []string `toml:"disabled_operations"`
}

// Duration is a time.Duration that decodes from strings like "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultTimeout bounds a single package manager invocation.
const DefaultTimeout = 10 * time.Minute

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			// The system manager is preferred over AUR helpers.
			BackendPriority: []string{"pacman", "apt", "dnf", "yay", "paru"},
			AURPriority:     []string{"yay", "paru"},
			Timeout:         Duration{DefaultTimeout},
			AssumeYes:       false,
			History:         true,
		},
		Output: OutputConfig{
			Color:    true,
			Unicode:  true,
			Verbose:  false,
			LogLevel: "warn",
		},
		Managers: map[string]ManagerConfig{},
		Aliases:  map[string]string{},
	}
}

// Load loads the configuration from the default path.
// If the config file doesn't exist, it returns the default configuration.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads the configuration from a specific path.
// If the config file doesn't exist, it returns the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.General.Timeout.Duration <= 0 {
		cfg.General.Timeout = Duration{DefaultTimeout}
	}

	return cfg, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// ResolveAlias returns the actual package name for an alias, or the original name if no alias exists.
func (c *Config) ResolveAlias(pkg string) string {
	if alias, ok := c.Aliases[pkg]; ok {
		return alias
	}
	return pkg
}

// ResolveAliases resolves all aliases in a list of package names.
func (c *Config) ResolveAliases(packages []string) []string {
	resolved := make([]string, len(packages))
	for i, pkg := range packages {
		resolved[i] = c.ResolveAlias(pkg)
	}
	return resolved
}

// GetManagerConfig returns the configuration for a specific manager.
// Returns an empty config if no configuration exists for the manager.
func (c *Config) GetManagerConfig(name string) ManagerConfig {
	if cfg, ok := c.Managers[name]; ok {
		return cfg
	}
	return ManagerConfig{}
}

// ShouldUseColor returns true if colored output should be used.
// Respects the NO_COLOR environment variable.
func (c *Config) ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return c.Output.Color
}
