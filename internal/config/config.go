// Package config provides configuration for the decsync CLI.
// It supports a YAML configuration file, environment variables, and
// sensible defaults. The library itself takes everything as arguments;
// only the command-line tool reads this.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klauern/decsync/internal/util"
)

// Config represents the complete decsync CLI configuration.
type Config struct {
	// Dir is the DecSync directory to operate on
	Dir string `yaml:"dir"`

	// AppName is the application name used when deriving an app id
	AppName string `yaml:"app_name"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output"`

	// Watch configures the watch command
	Watch WatchConfig `yaml:"watch"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose"`
}

// WatchConfig holds watch-command settings.
type WatchConfig struct {
	// Debounce is how long to wait after a filesystem event before scanning
	Debounce Duration `yaml:"debounce"`
	// PollInterval is the fallback scan interval when no events arrive
	PollInterval Duration `yaml:"poll_interval"`
}

// Duration is a time.Duration that round-trips through YAML in the
// human-readable form accepted by time.ParseDuration ("200ms", "30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Dir:     util.DefaultDecsyncDir(),
		AppName: "decsync-cli",
		Output: OutputConfig{
			Color: "auto",
		},
		Watch: WatchConfig{
			Debounce:     Duration(200 * time.Millisecond),
			PollInterval: Duration(30 * time.Second),
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.ConfigDir(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	configPath := FilePath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(configPath, data, 0o644)
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern DECSYNC_<KEY> for top-level
// settings and DECSYNC_<SECTION>_<KEY> for nested ones.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("DECSYNC_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("DECSYNC_APP_NAME"); v != "" {
		c.AppName = v
	}
	if v := os.Getenv("DECSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("DECSYNC_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
	if v := os.Getenv("DECSYNC_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watch.Debounce = Duration(d)
		}
	}
	if v := os.Getenv("DECSYNC_WATCH_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watch.PollInterval = Duration(d)
		}
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
