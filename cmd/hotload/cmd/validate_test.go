package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.NotNil(t, validateCmd)
	assert.Equal(t, "validate", validateCmd.Use)
	assert.NotEmpty(t, validateCmd.Short)
	assert.Contains(t, validateCmd.Short, "Validate")
	assert.NotNil(t, validateCmd.RunE)
}

func TestValidateIsAddedToRoot(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "validate" {
			found = true
			break
		}
	}
	assert.True(t, found, "validate command should be added to root command")
}

func TestValidateCommandChecks(t *testing.T) {
	doc := validateCmd.Long
	assert.Contains(t, doc, "Checks performed")
	assert.Contains(t, doc, "Configuration")
	assert.Contains(t, doc, "manifests")
	assert.Contains(t, doc, "Watched assemblies")
	assert.Contains(t, doc, "cycles")
	assert.Contains(t, doc, "hotload validate")
}

func TestValidateCommandNoSessionFlag(t *testing.T) {
	// Validate checks every session, not a specific one
	assert.Nil(t, validateCmd.Flags().Lookup("session"))
}

func TestRunValidate(t *testing.T) {
	buf := useConfig(t, "testdata/hotload.yaml")

	require.NoError(t, runValidate(validateCmd, nil))
	out := buf.String()

	assert.Contains(t, out, "Sessions found: 1")
	assert.Contains(t, out, "--- Session: player_refactor ---")
	assert.Contains(t, out, "Heap objects: 3")
	assert.Contains(t, out, "✅ All sessions validated successfully")
}

func TestRunValidateReportsBrokenSessions(t *testing.T) {
	buf := useConfig(t, "testdata/broken.yaml")

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	out := buf.String()
	assert.Contains(t, out, "--- Session: missing_heap ---")
	assert.Contains(t, out, "❌ Manifest load failed")
	assert.Contains(t, out, "--- Session: unknown_assembly ---")
	assert.Contains(t, out, "❌ Registry setup failed")
}
