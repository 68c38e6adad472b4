package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a QR image on a keyword background",
	Long: `Fetch a background image for a keyword, embed a QR code carrying the
given data and save the result once it has been verified to scan.

Examples:
  qrimage generate -k sunset -d https://example.com
  qrimage generate -k forest -d "hello" -o out.jpg --position top-left --qr-size 0.3
  qrimage generate -k city -d "hello" --offline`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("keyword", "k", "", "keyword for the background image (required)")
	generateCmd.Flags().StringP("data", "d", "", "data to encode in the QR code (required)")
	generateCmd.Flags().StringP("output", "o", "qr_output.png", "output file (.png or .jpg)")
	generateCmd.Flags().Int("jpeg-quality", output.DefaultJPEGQuality, "JPEG quality (1-100)")
	generateCmd.Flags().StringP("format", "f", "text", "summary format (text, json)")
	addSourceFlags(generateCmd)
	addLayoutFlags(generateCmd)

	_ = generateCmd.MarkFlagRequired("keyword")
	_ = generateCmd.MarkFlagRequired("data")
}

// generateSummary is the JSON summary of a generation.
type generateSummary struct {
	Keyword  string             `json:"keyword"`
	Data     string             `json:"data"`
	Output   string             `json:"output"`
	Attempts []validate.Attempt `json:"attempts"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	keyword, _ := cmd.Flags().GetString("keyword")
	data, _ := cmd.Flags().GetString("data")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}
	outPath := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outPath, _ = cmd.Flags().GetString("output")
	}
	if _, err := output.FormatFromPath(outPath); err != nil {
		return err
	}

	gcfg, err := cfg.ToGeneratorConfig()
	if err != nil {
		return err
	}
	gen := generator.New(gcfg, provider.New(cfg.ToProviderConfig()),
		generator.WithSink(output.NewFileSink(cfg.Output.JPEGQuality)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := gen.GenerateAndSave(ctx, keyword, data, outPath)
	if err != nil {
		printTroubleshooting(cmd.ErrOrStderr(), err)
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(generateSummary{
			Keyword:  keyword,
			Data:     data,
			Output:   res.Path,
			Attempts: res.Report.Attempts,
		})
	}

	m := res.Report.Matched()
	_, _ = fmt.Fprintln(out, "✓ QR image generated")
	_, _ = fmt.Fprintf(out, "  Keyword:  %s\n", keyword)
	_, _ = fmt.Fprintf(out, "  Output:   %s\n", res.Path)
	_, _ = fmt.Fprintf(out, "  Verified: attempt %d (%s)\n", m.Index, m.Strategy)
	return nil
}

// printTroubleshooting prints hints matching the kind of failure.
func printTroubleshooting(w io.Writer, err error) {
	var perr *provider.Error
	_, _ = fmt.Fprintln(w, "Troubleshooting:")
	switch {
	case errors.Is(err, generator.ErrNotReadable):
		_, _ = fmt.Fprintln(w, "  - increase the QR size with --qr-size (up to 0.5)")
		_, _ = fmt.Fprintln(w, "  - raise the plate opacity with --opacity")
		_, _ = fmt.Fprintln(w, "  - try a different --position or a calmer background")
	case errors.As(err, &perr):
		_, _ = fmt.Fprintln(w, "  - check your network connection and API key")
		_, _ = fmt.Fprintln(w, "  - use --background to supply a local image")
		_, _ = fmt.Fprintln(w, "  - use --offline to generate with a placeholder background")
	default:
		_, _ = fmt.Fprintln(w, "  - rerun with --verbose for details")
		_, _ = fmt.Fprintln(w, "  - shorten the data if it exceeds QR capacity")
	}
}
