package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesChangedFlags(t *testing.T) {
	require.NoError(t, rootCmd.ParseFlags([]string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--server", "http://scanner.local:5001/",
		"--timeout", "90s",
		"--rate", "2.5",
	}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://scanner.local:5001", cfg.ServerURL)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, "warn", cfg.LogLevel)

	require.NoError(t, rootCmd.ParseFlags([]string{"--timeout", "soon"}))
	_, err = loadConfig(rootCmd)
	assert.ErrorContains(t, err, "--timeout")
}

func TestSubcommandSeesPersistentFlags(t *testing.T) {
	require.NoError(t, serveCmd.ParseFlags([]string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--server", "http://scanner.local:5001",
		"--timeout", "2m",
	}))

	cfg, err := loadConfig(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://scanner.local:5001", cfg.ServerURL)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["projects"])
	assert.Equal(t, version, rootCmd.Version)
}
