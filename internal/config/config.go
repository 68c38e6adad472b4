package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/validate"
)

// Config represents the complete configuration for the qrimage application.
// It covers all commands (generate, validate, batch, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Image    ImageConfig    `mapstructure:"image" yaml:"image" json:"image"`
	QR       QRConfig       `mapstructure:"qr" yaml:"qr" json:"qr"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider" json:"provider"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ImageConfig contains background image settings.
type ImageConfig struct {
	Width      int    `mapstructure:"width" yaml:"width" json:"width"`
	Height     int    `mapstructure:"height" yaml:"height" json:"height"`
	Background string `mapstructure:"background" yaml:"background" json:"background"`
}

// QRConfig contains QR layout and validation settings.
type QRConfig struct {
	SizeRatio             float64 `mapstructure:"size_ratio" yaml:"size_ratio" json:"size_ratio"`
	Position              string  `mapstructure:"position" yaml:"position" json:"position"`
	Opacity               int     `mapstructure:"opacity" yaml:"opacity" json:"opacity"`
	Margin                int     `mapstructure:"margin" yaml:"margin" json:"margin"`
	MaxValidationAttempts int     `mapstructure:"max_validation_attempts" yaml:"max_validation_attempts" json:"max_validation_attempts"`
}

// ProviderConfig contains background source settings.
type ProviderConfig struct {
	UnsplashAPIKey string `mapstructure:"unsplash_api_key" yaml:"unsplash_api_key" json:"-"`
	TimeoutSec     int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	Offline        bool   `mapstructure:"offline" yaml:"offline" json:"offline"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	GenerationsPerDay int  `mapstructure:"generations_per_day" yaml:"generations_per_day" json:"generations_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Image: ImageConfig{
			Width:  1920,
			Height: 1080,
		},
		QR: QRConfig{
			SizeRatio:             embed.DefaultSizeRatio,
			Position:              embed.AnchorBottomRight.String(),
			Opacity:               int(embed.DefaultOpacity),
			Margin:                embed.DefaultMargin,
			MaxValidationAttempts: validate.DefaultMaxAttempts,
		},
		Provider: ProviderConfig{
			TimeoutSec: int(provider.DefaultTimeout / time.Second),
			UserAgent:  provider.DefaultUserAgent,
		},
		Output: OutputConfig{
			File:        "qr_output.png",
			JPEGQuality: 92,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				GenerationsPerDay: 1000,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return fmt.Errorf("invalid image size: %dx%d (must be positive)", c.Image.Width, c.Image.Height)
	}

	if c.QR.SizeRatio < embed.MinSizeRatio || c.QR.SizeRatio > embed.MaxSizeRatio {
		return fmt.Errorf("invalid qr.size_ratio: %g (must be between %g and %g)",
			c.QR.SizeRatio, embed.MinSizeRatio, embed.MaxSizeRatio)
	}
	if _, err := embed.ParseAnchor(c.QR.Position); err != nil {
		return err
	}
	if c.QR.Opacity < 0 || c.QR.Opacity > 255 {
		return fmt.Errorf("invalid qr.opacity: %d (must be between 0 and 255)", c.QR.Opacity)
	}
	if c.QR.Margin < 0 {
		return fmt.Errorf("invalid qr.margin: %d (must not be negative)", c.QR.Margin)
	}
	if c.QR.MaxValidationAttempts <= 0 {
		return fmt.Errorf("invalid qr.max_validation_attempts: %d (must be positive)", c.QR.MaxValidationAttempts)
	}

	if c.Provider.TimeoutSec <= 0 {
		return fmt.Errorf("invalid provider timeout: %d (must be positive)", c.Provider.TimeoutSec)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid output.jpeg_quality: %d (must be between 1 and 100)", c.Output.JPEGQuality)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// ToEmbedConfig converts the QR section to an embed.Config.
func (c *Config) ToEmbedConfig() (embed.Config, error) {
	anchor, err := embed.ParseAnchor(c.QR.Position)
	if err != nil {
		return embed.Config{}, err
	}
	return embed.Config{
		SizeRatio: c.QR.SizeRatio,
		Anchor:    anchor,
		Opacity:   uint8(max(0, min(255, c.QR.Opacity))),
		Margin:    c.QR.Margin,
	}, nil
}

// ToGeneratorConfig converts to generator.Config.
func (c *Config) ToGeneratorConfig() (generator.Config, error) {
	ec, err := c.ToEmbedConfig()
	if err != nil {
		return generator.Config{}, err
	}
	return generator.Config{
		Embed:                 ec,
		MaxValidationAttempts: c.QR.MaxValidationAttempts,
	}, nil
}

// ToProviderConfig converts to provider.Config.
func (c *Config) ToProviderConfig() provider.Config {
	return provider.Config{
		Width:          c.Image.Width,
		Height:         c.Image.Height,
		UnsplashAPIKey: c.Provider.UnsplashAPIKey,
		BackgroundFile: c.Image.Background,
		Offline:        c.Provider.Offline,
		Timeout:        time.Duration(c.Provider.TimeoutSec) * time.Second,
		UserAgent:      c.Provider.UserAgent,
	}
}

// contains checks if a string slice contains a specific item.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
