package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-repository configuration file.
const FileName = ".taptree.yml"

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Workspaces []string `yaml:"workspaces"`
	Command    []string `yaml:"command"`
	Suffix     string   `yaml:"suffix"`

	Watch  []string `yaml:"watch"`
	Ignore []string `yaml:"ignore"`

	Format      string        `yaml:"format"`
	Verbose     bool          `yaml:"verbose"`
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Debounce    time.Duration `yaml:"debounce"`

	Warn WarnConfig `yaml:"warn"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	VersionMismatch *bool `yaml:"version_mismatch"`
}

// VersionMismatchEnabled reports whether the node version check runs. It is on
// unless the config file turns it off.
func (w WarnConfig) VersionMismatchEnabled() bool {
	return w.VersionMismatch == nil || *w.VersionMismatch
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// DefaultWatch matches test files below any test directory.
const DefaultWatch = `/(^|/)test/.+\.js$/`

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Command:  []string{"npx", "tap", "--reporter=tap"},
		Suffix:   ".js",
		Watch:    []string{DefaultWatch},
		Format:   FormatPretty,
		LogLevel: "warn",
		Debounce: 200 * time.Millisecond,
	}
}

// Load reads .taptree.yml from dir when present. Missing files are ignored.
func Load(dir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if len(override.Workspaces) > 0 {
		out.Workspaces = append([]string{}, override.Workspaces...)
	}
	if len(override.Command) > 0 {
		out.Command = append([]string{}, override.Command...)
	}
	if override.Suffix != "" {
		out.Suffix = override.Suffix
	}
	if len(override.Watch) > 0 {
		out.Watch = append([]string{}, override.Watch...)
	}
	if len(override.Ignore) > 0 {
		out.Ignore = append([]string{}, override.Ignore...)
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.LogLevel != "" {
		out.LogLevel = override.LogLevel
	}
	if override.MetricsAddr != "" {
		out.MetricsAddr = override.MetricsAddr
	}
	if override.Debounce > 0 {
		out.Debounce = override.Debounce
	}
	if override.Warn.VersionMismatch != nil {
		v := *override.Warn.VersionMismatch
		out.Warn.VersionMismatch = &v
	}

	return out
}

// Validate rejects configurations the CLI cannot act on.
func (c Config) Validate() error {
	switch c.Format {
	case FormatPretty, FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if len(c.Command) == 0 || c.Command[0] == "" {
		return errors.New("command must not be empty")
	}
	if c.Suffix == "" {
		return errors.New("suffix must not be empty")
	}
	return nil
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if len(flags.Workspaces.Values) > 0 {
		cfg.Workspaces = append([]string{}, flags.Workspaces.Values...)
	}
	if len(flags.Command.Values) > 0 {
		cfg.Command = append([]string{}, flags.Command.Values...)
	}
	if flags.Suffix.Set {
		cfg.Suffix = flags.Suffix.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.LogLevel.Set {
		cfg.LogLevel = flags.LogLevel.Value
	}
	if flags.MetricsAddr.Set {
		cfg.MetricsAddr = flags.MetricsAddr.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Workspaces  SliceFlag
	Command     SliceFlag
	Suffix      StringFlag
	Format      StringFlag
	Verbose     BoolFlag
	LogLevel    StringFlag
	MetricsAddr StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}
