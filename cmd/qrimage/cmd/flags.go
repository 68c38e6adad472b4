package cmd

import (
	"github.com/MeKo-Tech/qrimage/internal/config"
	"github.com/spf13/cobra"
)

// addSourceFlags registers the background source flags.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-key", "", "Unsplash API key (or set UNSPLASH_API_KEY)")
	cmd.Flags().Int("width", 1920, "background width in pixels")
	cmd.Flags().Int("height", 1080, "background height in pixels")
	cmd.Flags().String("background", "", "use a local image as background instead of fetching one")
	cmd.Flags().Bool("offline", false, "skip network sources and use a generated placeholder background")
	cmd.Flags().Int("fetch-timeout", 30, "timeout for background downloads in seconds")
}

// addLayoutFlags registers the QR layout and validation flags.
func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("qr-size", 0.25, "QR tile size as a fraction of the shorter image side (0.1-0.5)")
	cmd.Flags().String("position", "bottom-right",
		"QR position (top-left, top-right, bottom-left, bottom-right, center)")
	cmd.Flags().Int("opacity", 230, "opacity of the QR plate (0-255)")
	cmd.Flags().Int("margin", 30, "distance from the image edge in pixels")
	cmd.Flags().Int("max-attempts", 3, "number of validation strategies to try")
}

// applySourceFlags copies changed source flags into cfg. Flags the command
// does not define are ignored.
func applySourceFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("api-key") {
		cfg.Provider.UnsplashAPIKey, _ = cmd.Flags().GetString("api-key")
	}
	if cmd.Flags().Changed("width") {
		cfg.Image.Width, _ = cmd.Flags().GetInt("width")
	}
	if cmd.Flags().Changed("height") {
		cfg.Image.Height, _ = cmd.Flags().GetInt("height")
	}
	if cmd.Flags().Changed("background") {
		cfg.Image.Background, _ = cmd.Flags().GetString("background")
	}
	if cmd.Flags().Changed("offline") {
		cfg.Provider.Offline, _ = cmd.Flags().GetBool("offline")
	}
	if cmd.Flags().Changed("fetch-timeout") {
		cfg.Provider.TimeoutSec, _ = cmd.Flags().GetInt("fetch-timeout")
	}
}

// applyLayoutFlags copies changed layout flags into cfg.
func applyLayoutFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("qr-size") {
		cfg.QR.SizeRatio, _ = cmd.Flags().GetFloat64("qr-size")
	}
	if cmd.Flags().Changed("position") {
		cfg.QR.Position, _ = cmd.Flags().GetString("position")
	}
	if cmd.Flags().Changed("opacity") {
		cfg.QR.Opacity, _ = cmd.Flags().GetInt("opacity")
	}
	if cmd.Flags().Changed("margin") {
		cfg.QR.Margin, _ = cmd.Flags().GetInt("margin")
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.QR.MaxValidationAttempts, _ = cmd.Flags().GetInt("max-attempts")
	}
}

// resolveConfig applies the command's flags to the loaded configuration and
// validates the result.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := GetConfig()
	applySourceFlags(cmd, cfg)
	applyLayoutFlags(cmd, cfg)
	if cmd.Flags().Changed("jpeg-quality") {
		cfg.Output.JPEGQuality, _ = cmd.Flags().GetInt("jpeg-quality")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
