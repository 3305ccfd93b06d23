package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute(t *testing.T) {
	// Execute calls os.Exit(1) on error, so only its presence is checked.
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsVariables(t *testing.T) {
	// cfgFile defaults to hotload.yaml via init()
	assert.Equal(t, "hotload.yaml", rootCmd.PersistentFlags().Lookup("config").DefValue)
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, 0, workers)
	assert.Equal(t, false, noColor)
}

func TestGetConfigFile(t *testing.T) {
	originalCfgFile := cfgFile
	defer func() {
		cfgFile = originalCfgFile
	}()

	tests := []struct {
		name     string
		cfgValue string
		want     string
	}{
		{
			name:     "empty config file",
			cfgValue: "",
			want:     "",
		},
		{
			name:     "custom config file",
			cfgValue: "/path/to/custom.yaml",
			want:     "/path/to/custom.yaml",
		},
		{
			name:     "config file with spaces",
			cfgValue: "/path/to/my config.yaml",
			want:     "/path/to/my config.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.want, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel := logLevel
	originalLogFormat := logFormat
	originalWorkers := workers
	originalNoColor := noColor
	defer func() {
		logLevel = originalLogLevel
		logFormat = originalLogFormat
		workers = originalWorkers
		noColor = originalNoColor
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
		workers   int
		noColor   bool
		want      CLIOverrides
	}{
		{
			name: "empty overrides",
			want: CLIOverrides{},
		},
		{
			name:      "all overrides set",
			logLevel:  "debug",
			logFormat: "text",
			workers:   8,
			noColor:   true,
			want: CLIOverrides{
				LogLevel:  "debug",
				LogFormat: "text",
				Workers:   8,
				NoColor:   true,
			},
		},
		{
			name:     "partial overrides",
			logLevel: "warn",
			workers:  2,
			want: CLIOverrides{
				LogLevel: "warn",
				Workers:  2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.logLevel
			logFormat = tt.logFormat
			workers = tt.workers
			noColor = tt.noColor

			assert.Equal(t, tt.want, GetCLIOverrides())
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	assert.Equal(t, "hotload", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.Contains(t, rootCmd.Long, "Features:")

	for _, name := range []string{"config", "log-level", "log-format", "workers", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "c", rootCmd.PersistentFlags().Lookup("config").Shorthand)
}

func TestSubcommandsAreAddedToRoot(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"diff", "simulate", "validate", "version"} {
		assert.True(t, names[want], "%s command should be added to root command", want)
	}
}

// useConfig points the commands at a test configuration and captures their
// output.
func useConfig(t *testing.T, path string) *bytes.Buffer {
	t.Helper()
	originalCfgFile := cfgFile
	cfgFile = path

	buf := &bytes.Buffer{}
	setOutputWriter(buf)
	t.Cleanup(func() {
		cfgFile = originalCfgFile
		resetOutputWriter()
	})
	return buf
}
