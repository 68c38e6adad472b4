package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOffline(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "qr.png")
	stdout, _, err := execute(t, "generate",
		"-k", "mountains", "-d", "https://example.com",
		"-o", out, "--offline", "--width", "640", "--height", "480")
	require.NoError(t, err)

	assert.Contains(t, stdout, "QR image generated")
	assert.Contains(t, stdout, "attempt 1 (original)")
	assert.True(t, testutil.FileExists(out))

	img := testutil.LoadImage(t, out)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestGenerateAfterCancelledRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	args := func(name string) []string {
		return []string{"generate", "-k", "forest", "-d", "again", "-o", filepath.Join(dir, name),
			"--offline", "--width", "640", "--height", "480"}
	}

	first, cancel := context.WithCancel(context.Background())
	_, _, err := executeContext(t, first, args("first.png")...)
	require.NoError(t, err)
	cancel()

	_, _, err = executeContext(t, context.Background(), args("second.png")...)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(filepath.Join(dir, "second.png")))
}

func TestGenerateJSONSummary(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr.jpg")
	stdout, _, err := execute(t, "generate",
		"-k", "ocean", "-d", "hello", "-o", out, "--offline",
		"--width", "640", "--height", "480", "--position", "top-left", "-f", "json")
	require.NoError(t, err)

	var summary generateSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "ocean", summary.Keyword)
	assert.Equal(t, "hello", summary.Data)
	assert.Equal(t, out, summary.Output)
	require.NotEmpty(t, summary.Attempts)
	assert.Equal(t, "matched", summary.Attempts[len(summary.Attempts)-1].Result)
}

func TestGenerateWithBackgroundFile(t *testing.T) {
	dir := t.TempDir()
	bg := filepath.Join(dir, "bg.png")
	testutil.SaveImage(t, testutil.Background(testutil.Gradient, testutil.MediumSize), bg)

	out := filepath.Join(dir, "qr.png")
	_, _, err := execute(t, "generate", "-k", "ignored", "-d", "file background",
		"-o", out, "--background", bg, "--width", "640", "--height", "480")
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(out))
}

func TestGenerateErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing keyword",
			args: []string{"generate", "-d", "x"},
			want: "required flag",
		},
		{
			name: "size ratio out of range",
			args: []string{"generate", "-k", "a", "-d", "x", "--offline", "--qr-size", "0.6"},
			want: "qr.size_ratio",
		},
		{
			name: "unknown position",
			args: []string{"generate", "-k", "a", "-d", "x", "--offline", "--position", "middle"},
			want: "middle",
		},
		{
			name: "unsupported extension",
			args: []string{"generate", "-k", "a", "-d", "x", "--offline", "-o", filepath.Join(dir, "qr.txt")},
			want: "unsupported output format",
		},
		{
			name: "unsupported summary format",
			args: []string{"generate", "-k", "a", "-d", "x", "--offline", "-f", "xml"},
			want: "unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerateMissingBackgroundPrintsTips(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr.png")
	_, stderr, err := execute(t, "generate", "-k", "a", "-d", "x", "-o", out,
		"--background", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	var perr *provider.Error
	assert.ErrorAs(t, err, &perr)
	assert.Contains(t, stderr, "Troubleshooting:")
	assert.Contains(t, stderr, "--offline")
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
