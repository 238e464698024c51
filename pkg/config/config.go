// Package config handles configuration for uiscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// Defaults.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultReferenceTimeout = 5 * time.Second
)

// Config represents the workspace configuration (uiscope.yaml).
type Config struct {
	// Session
	AppiumURL    string                 `yaml:"appiumURL"`    // Appium server URL
	SessionID    string                 `yaml:"sessionID"`    // Attach to an existing session
	Capabilities map[string]interface{} `yaml:"capabilities"` // Capabilities for a new session

	// Lookup timing
	Timeout          Timeout `yaml:"timeout"`          // Default keyword timeout
	PollInterval     Timeout `yaml:"pollInterval"`     // Pause between attempts
	ReferenceTimeout Timeout `yaml:"referenceTimeout"` // Per-candidate sub-locator search

	// Extra attribute aliases for pattern rules, e.g. desc: content-desc
	Aliases map[string]string `yaml:"aliases"`

	// Custom locator strategies by prefix
	Strategies map[string]Strategy `yaml:"strategies"`

	Log LogConfig `yaml:"log"`
}

// Strategy is a custom locator prefix. Rewrite may hold ${...}
// JavaScript expressions over the variable criteria.
//
//	strategies:
//	  button:
//	    using: xpath
//	    rewrite: //android.widget.Button[@text=${xpathLiteral(criteria)}]
type Strategy struct {
	Using   string `yaml:"using"`   // wire strategy, e.g. xpath or -windows uiautomation
	Rewrite string `yaml:"rewrite"` // optional criteria template
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `yaml:"level"`      // debug, info, warn, error
	Format     string `yaml:"format"`     // console or json
	File       string `yaml:"file"`       // log file path
	MaxSizeMB  int    `yaml:"maxSizeMB"`  // rotate after this size
	MaxBackups int    `yaml:"maxBackups"` // rotated files to keep
}

// Timeout is a duration written as seconds (10, 0.5) or a duration
// string ("20s", "1 min 30 s") in the config file.
type Timeout time.Duration

// Duration returns t as a time.Duration.
func (t Timeout) Duration() time.Duration { return time.Duration(t) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Timeout) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d, err := core.ParseTimeout(raw, 0)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = Timeout(d)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Timeout) MarshalYAML() (interface{}, error) {
	return time.Duration(t).String(), nil
}

// Defaults returns a config with every default filled in.
func Defaults() *Config {
	return &Config{
		Timeout:          Timeout(DefaultTimeout),
		PollInterval:     Timeout(DefaultPollInterval),
		ReferenceTimeout: Timeout(DefaultReferenceTimeout),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyDefaults fills zero fields from Defaults.
func (c *Config) applyDefaults() {
	d := Defaults()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ReferenceTimeout == 0 {
		c.ReferenceTimeout = d.ReferenceTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for uiscope.yaml or uiscope.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try uiscope.yaml first
	configPath := filepath.Join(dir, "uiscope.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try uiscope.yml
	configPath = filepath.Join(dir, "uiscope.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Defaults(), nil
}
