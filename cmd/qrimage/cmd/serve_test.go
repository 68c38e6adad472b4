package cmd

import (
	"testing"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseServeFlags loads the configuration and parses args into serveCmd
// without starting the server.
func parseServeFlags(t *testing.T, args ...string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)
	require.NoError(t, serveCmd.ParseFlags(args))
	require.NoError(t, initConfig(serveCmd))
}

func TestServeFlags(t *testing.T) {
	f := serveCmd.Flags()
	for _, name := range []string{
		"host", "port", "cors-origin", "max-upload-size", "timeout", "shutdown-timeout",
		"rate-limit-enabled", "requests-per-minute", "generations-per-day",
		"offline", "api-key", "qr-size", "position",
	} {
		assert.NotNil(t, f.Lookup(name), "missing flag %s", name)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	parseServeFlags(t)

	cfg, sc, err := buildServerConfig(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "localhost", sc.Host)
	assert.Equal(t, 8080, sc.Port)
	assert.Equal(t, "*", sc.CORSOrigin)
	assert.Equal(t, int64(20), sc.MaxUploadMB)
	assert.Equal(t, 60, sc.TimeoutSec)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeout)
	assert.Zero(t, sc.RequestsPerMinute, "rate limiting is off by default")
	assert.Zero(t, sc.GenerationsPerDay)
	assert.Equal(t, embed.AnchorBottomRight, sc.Generator.Embed.Anchor)
}

func TestBuildServerConfigOverrides(t *testing.T) {
	parseServeFlags(t,
		"--host", "0.0.0.0", "-p", "3000", "--cors-origin", "https://example.com",
		"--rate-limit-enabled", "--requests-per-minute", "5", "--generations-per-day", "50",
		"--offline", "--position", "center", "--qr-size", "0.4", "--width", "800", "--height", "600")

	_, sc, err := buildServerConfig(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", sc.Host)
	assert.Equal(t, 3000, sc.Port)
	assert.Equal(t, "https://example.com", sc.CORSOrigin)
	assert.Equal(t, 5, sc.RequestsPerMinute)
	assert.Equal(t, 50, sc.GenerationsPerDay)
	assert.True(t, sc.Provider.Offline)
	assert.Equal(t, 800, sc.Provider.Width)
	assert.Equal(t, 600, sc.Provider.Height)
	assert.Equal(t, embed.AnchorCenter, sc.Generator.Embed.Anchor)
	assert.InDelta(t, 0.4, sc.Generator.Embed.SizeRatio, 1e-9)
}

func TestBuildServerConfigInvalid(t *testing.T) {
	parseServeFlags(t, "--port", "70000")

	_, _, err := buildServerConfig(serveCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}
