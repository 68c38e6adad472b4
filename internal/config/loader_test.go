package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.QR.SizeRatio != 0.25 {
		t.Errorf("expected default size ratio 0.25, got %g", cfg.QR.SizeRatio)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "qrimage.yaml")
	content := `
log_level: debug
image:
  width: 800
  height: 600
qr:
  size_ratio: 0.3
  position: center
  opacity: 200
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 5
batch:
  workers: 2
`
	if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := newTestLoader().LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s", cfg.LogLevel)
	}
	if cfg.Image.Width != 800 || cfg.Image.Height != 600 {
		t.Errorf("size = %dx%d", cfg.Image.Width, cfg.Image.Height)
	}
	if cfg.QR.Position != "center" || cfg.QR.Opacity != 200 || cfg.QR.SizeRatio != 0.3 {
		t.Errorf("qr = %+v", cfg.QR)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMinute != 5 {
		t.Errorf("rate limit = %+v", cfg.Server.RateLimit)
	}
	// Unset keys keep their defaults.
	if cfg.Server.RateLimit.GenerationsPerDay != 1000 {
		t.Errorf("generations per day = %d", cfg.Server.RateLimit.GenerationsPerDay)
	}
	if cfg.Batch.Workers != 2 {
		t.Errorf("workers = %d", cfg.Batch.Workers)
	}
}

func TestLoadWithInvalidFileValues(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "qrimage.yaml")
	if err := os.WriteFile(configFile, []byte("qr:\n  size_ratio: 0.9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := newTestLoader().LoadWithFile(configFile); err == nil {
		t.Fatal("expected validation error")
	}

	cfg, err := newTestLoader().LoadWithFileWithoutValidation(configFile)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation: %v", err)
	}
	if cfg.QR.SizeRatio != 0.9 {
		t.Errorf("size ratio = %g", cfg.QR.SizeRatio)
	}
}

func TestLoadWithMissingFile(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QRIMAGE_QR_POSITION", "top-left")
	t.Setenv("QRIMAGE_IMAGE_WIDTH", "640")
	t.Setenv("QRIMAGE_PROVIDER_OFFLINE", "true")

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QR.Position != "top-left" {
		t.Errorf("position = %s", cfg.QR.Position)
	}
	if cfg.Image.Width != 640 {
		t.Errorf("width = %d", cfg.Image.Width)
	}
	if !cfg.Provider.Offline {
		t.Error("offline should be true")
	}
}

func TestUnsplashKeyEnvFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QRIMAGE_PROVIDER_UNSPLASH_API_KEY", "")
	t.Setenv(UnsplashKeyEnv, "bare-key")

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.UnsplashAPIKey != "bare-key" {
		t.Errorf("key = %q, want bare-key", cfg.Provider.UnsplashAPIKey)
	}

	t.Setenv("QRIMAGE_PROVIDER_UNSPLASH_API_KEY", "prefixed-key")
	cfg, err = newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.UnsplashAPIKey != "prefixed-key" {
		t.Errorf("key = %q, want prefixed-key", cfg.Provider.UnsplashAPIKey)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrimage.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile: %v", err)
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("generated file should load: %v", err)
	}
	if cfg.Output.File != "qr_output.png" {
		t.Errorf("output file = %s", cfg.Output.File)
	}

	if err := GenerateDefaultConfigFile(path); err == nil {
		t.Error("expected error when file already exists")
	}
}

func TestWriteYAMLOmitsAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.UnsplashAPIKey = "secret"

	var buf bytes.Buffer
	if err := WriteYAML(&buf, &cfg); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Error("API key leaked into YAML output")
	}
	if cfg.Provider.UnsplashAPIKey != "secret" {
		t.Error("WriteYAML must not modify its argument")
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("first path = %s", paths[0])
	}
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, filepath.Join("/xdg", "qrimage")) {
		t.Errorf("missing XDG path in %v", paths)
	}
	if paths[len(paths)-1] != "/etc/qrimage" {
		t.Errorf("last path = %s", paths[len(paths)-1])
	}
}
