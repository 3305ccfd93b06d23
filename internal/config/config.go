// Package config provides configuration structures and loading for hotload.
package config

import "runtime"

// Config represents the complete application configuration.
type Config struct {
	Hotload  HotloadConfig            `yaml:"hotload" mapstructure:"hotload"`
	Sessions map[string]SessionConfig `yaml:"sessions" mapstructure:"sessions"`
	Report   ReportConfig             `yaml:"report" mapstructure:"report"`
	Metrics  MetricsConfig            `yaml:"metrics" mapstructure:"metrics"`
	Logging  LoggingConfig            `yaml:"logging" mapstructure:"logging"`
}

// HotloadConfig represents engine settings.
type HotloadConfig struct {
	Workers            int    `yaml:"workers" mapstructure:"workers"` // precompute goroutines
	SkipAttribute      string `yaml:"skip_attribute" mapstructure:"skip_attribute"`
	ResetAttribute     string `yaml:"reset_attribute" mapstructure:"reset_attribute"`
	UpgraderAttribute  string `yaml:"upgrader_attribute" mapstructure:"upgrader_attribute"`
	CallbackAttribute  string `yaml:"callback_attribute" mapstructure:"callback_attribute"`
	WarnGenericStatics bool   `yaml:"warn_generic_statics" mapstructure:"warn_generic_statics"`
}

// SessionConfig describes one reload to simulate: the two image manifests,
// the live heap, and the registries to configure.
type SessionConfig struct {
	Before    string         `yaml:"before" mapstructure:"before"` // image manifest path
	After     string         `yaml:"after" mapstructure:"after"`   // image manifest path
	Heap      string         `yaml:"heap" mapstructure:"heap"`     // heap manifest path, optional
	Replace   []Replacement  `yaml:"replace" mapstructure:"replace"`
	Watch     []Watch        `yaml:"watch" mapstructure:"watch"`
	Upgraders []string       `yaml:"upgraders" mapstructure:"upgraders"` // assemblies scanned for upgraders
	Hotload   *HotloadConfig `yaml:"hotload,omitempty" mapstructure:"hotload"`
}

// Replacement pairs an old assembly name with its replacement.
type Replacement struct {
	Old string `yaml:"old" mapstructure:"old"`
	New string `yaml:"new" mapstructure:"new"`
}

// Watch declares an assembly whose statics are roots. Namespaces, when set,
// restrict the roots to types in those namespaces.
type Watch struct {
	Assembly   string   `yaml:"assembly" mapstructure:"assembly"`
	Namespaces []string `yaml:"namespaces" mapstructure:"namespaces"`
}

// ReportConfig represents report rendering settings.
type ReportConfig struct {
	Color       bool   `yaml:"color" mapstructure:"color"`
	ShowTimings bool   `yaml:"show_timings" mapstructure:"show_timings"`
	MaxEntries  int    `yaml:"max_entries" mapstructure:"max_entries"` // 0 means unlimited
	MinKind     string `yaml:"min_kind" mapstructure:"min_kind"`       // info, warning or error
}

// MetricsConfig represents Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Hotload: DefaultHotload(),
		Report: ReportConfig{
			Color:       true,
			ShowTimings: false,
			MaxEntries:  0,
			MinKind:     "info",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "hotload",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultHotload returns the default engine settings.
func DefaultHotload() HotloadConfig {
	return HotloadConfig{
		Workers:            runtime.NumCPU(),
		SkipAttribute:      "SkipHotload",
		ResetAttribute:     "ResetOnHotload",
		UpgraderAttribute:  "HotloadUpgrader",
		CallbackAttribute:  "OnHotloaded",
		WarnGenericStatics: true,
	}
}

// GetSessionHotload returns the engine settings for a session by name,
// falling back to global if not set.
func (c *Config) GetSessionHotload(name string) HotloadConfig {
	s, err := c.GetSession(name)
	if err != nil {
		return c.Hotload
	}
	return s.GetSessionHotload(c.Hotload)
}

// GetSessionHotload merges session-specific engine settings over global.
func (sc *SessionConfig) GetSessionHotload(global HotloadConfig) HotloadConfig {
	if sc.Hotload == nil {
		return global
	}

	result := global
	if sc.Hotload.Workers > 0 {
		result.Workers = sc.Hotload.Workers
	}
	if sc.Hotload.SkipAttribute != "" {
		result.SkipAttribute = sc.Hotload.SkipAttribute
	}
	if sc.Hotload.ResetAttribute != "" {
		result.ResetAttribute = sc.Hotload.ResetAttribute
	}
	if sc.Hotload.UpgraderAttribute != "" {
		result.UpgraderAttribute = sc.Hotload.UpgraderAttribute
	}
	if sc.Hotload.CallbackAttribute != "" {
		result.CallbackAttribute = sc.Hotload.CallbackAttribute
	}
	result.WarnGenericStatics = sc.Hotload.WarnGenericStatics || global.WarnGenericStatics
	return result
}
