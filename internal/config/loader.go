package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override scalar settings,
// e.g. HOTLOAD_LOGGING_LEVEL=debug or HOTLOAD_HOTLOAD_WORKERS=4.
const EnvPrefix = "HOTLOAD"

// Load reads a YAML configuration file. Scalar settings may be overridden
// through EnvPrefix variables, and ${VAR} references in manifest paths,
// assembly names and the log output are expanded.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper decodes a Config from a configured Viper instance over the
// defaults.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	expandConfig(cfg)
	return cfg, nil
}

// bindEnv registers every scalar setting with Viper so AutomaticEnv can
// resolve it; Unmarshal only sees keys Viper knows about.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	defaults := map[string]any{
		"hotload.workers":              d.Hotload.Workers,
		"hotload.skip_attribute":       d.Hotload.SkipAttribute,
		"hotload.reset_attribute":      d.Hotload.ResetAttribute,
		"hotload.upgrader_attribute":   d.Hotload.UpgraderAttribute,
		"hotload.callback_attribute":   d.Hotload.CallbackAttribute,
		"hotload.warn_generic_statics": d.Hotload.WarnGenericStatics,
		"report.color":                 d.Report.Color,
		"report.show_timings":          d.Report.ShowTimings,
		"report.max_entries":           d.Report.MaxEntries,
		"report.min_kind":              d.Report.MinKind,
		"metrics.enabled":              d.Metrics.Enabled,
		"metrics.namespace":            d.Metrics.Namespace,
		"logging.level":                d.Logging.Level,
		"logging.format":               d.Logging.Format,
		"logging.output":               d.Logging.Output,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func expandConfig(cfg *Config) {
	for name, s := range cfg.Sessions {
		s.Before = expandEnvVar(s.Before)
		s.After = expandEnvVar(s.After)
		s.Heap = expandEnvVar(s.Heap)
		for i := range s.Replace {
			s.Replace[i].Old = expandEnvVar(s.Replace[i].Old)
			s.Replace[i].New = expandEnvVar(s.Replace[i].New)
		}
		for i := range s.Watch {
			s.Watch[i].Assembly = expandEnvVar(s.Watch[i].Assembly)
		}
		for i := range s.Upgraders {
			s.Upgraders[i] = expandEnvVar(s.Upgraders[i])
		}
		cfg.Sessions[name] = s
	}
	cfg.Metrics.Namespace = expandEnvVar(cfg.Metrics.Namespace)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands ${VAR} and $VAR. Unset variables are left as written.
func expandEnvVar(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		name, width := envName(s[i+1:])
		if width == 0 {
			b.WriteByte(s[i])
			continue
		}
		if val, ok := os.LookupEnv(name); ok {
			b.WriteString(val)
		} else {
			b.WriteString(s[i : i+1+width])
		}
		i += width
	}
	return b.String()
}

// envName reads a variable reference after '$' and returns its name and the
// number of bytes it spans, or zero width when there is none.
func envName(s string) (string, int) {
	if s[0] == '{' {
		end := strings.IndexByte(s, '}')
		if end <= 1 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && (s[n] == '_' || s[n] >= 'A' && s[n] <= 'Z' || s[n] >= 'a' && s[n] <= 'z' || n > 0 && s[n] >= '0' && s[n] <= '9') {
		n++
	}
	return s[:n], n
}

// GetSession returns the named session.
func (c *Config) GetSession(name string) (*SessionConfig, error) {
	s, ok := c.Sessions[name]
	if !ok {
		return nil, fmt.Errorf("session %q not found in configuration", name)
	}
	return &s, nil
}

// ListSessions returns the session names, sorted.
func (c *Config) ListSessions() []string {
	names := make([]string, 0, len(c.Sessions))
	for name := range c.Sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides applies CLI flags. Zero values leave the setting alone.
func (c *Config) ApplyOverrides(logLevel, logFormat string, workers int, noColor bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if workers > 0 {
		c.Hotload.Workers = workers
	}
	if noColor {
		c.Report.Color = false
	}
}
