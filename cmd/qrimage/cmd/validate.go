package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/utils"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/spf13/cobra"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <image>",
	Short: "Check that an image carries a readable QR code",
	Long: `Decode the QR code in an existing image and compare it with the expected
data. With --quick only symbol detection is performed.

Examples:
  qrimage validate qr.png --data https://example.com
  qrimage validate qr.png --quick`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("data", "d", "", "expected QR payload")
	validateCmd.Flags().Bool("quick", false, "only check that a QR symbol is detectable")
	validateCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	validateCmd.Flags().Int("max-attempts", 3, "number of validation strategies to try")
}

// validateSummary is the JSON output of the validate command.
type validateSummary struct {
	Image    string             `json:"image"`
	Readable bool               `json:"readable"`
	Quick    bool               `json:"quick,omitempty"`
	Decoded  string             `json:"decoded,omitempty"`
	Attempts []validate.Attempt `json:"attempts,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	data, _ := cmd.Flags().GetString("data")
	quick, _ := cmd.Flags().GetBool("quick")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}
	if !quick && data == "" {
		return errors.New("--data is required unless --quick is set")
	}

	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}
	gcfg, err := cfg.ToGeneratorConfig()
	if err != nil {
		return err
	}
	gen := generator.New(gcfg, nil)

	summary := validateSummary{Image: args[0], Quick: quick}
	if quick {
		summary.Readable = gen.QuickValidate(img)
	} else {
		report, verr := gen.Validate(cmd.Context(), img, data)
		switch {
		case verr == nil:
			summary.Readable = true
			summary.Decoded = report.Payload
			summary.Attempts = report.Attempts
		case errors.Is(verr, generator.ErrNotReadable):
			summary.Error = verr.Error()
			var mm *validate.MismatchError
			var ex *validate.ExhaustedError
			if errors.As(verr, &mm) {
				summary.Decoded = mm.Decoded
			}
			if errors.As(verr, &ex) {
				summary.Attempts = ex.History
			}
		default:
			return verr
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printValidateText(cmd, summary)
	}
	if !summary.Readable {
		return fmt.Errorf("%s: %w", args[0], generator.ErrNotReadable)
	}
	return nil
}

func printValidateText(cmd *cobra.Command, s validateSummary) {
	out := cmd.OutOrStdout()
	switch {
	case s.Quick && s.Readable:
		_, _ = fmt.Fprintf(out, "✓ QR symbol detected in %s\n", s.Image)
	case s.Quick:
		_, _ = fmt.Fprintf(out, "✗ No QR symbol detected in %s\n", s.Image)
	case s.Readable:
		m := s.Attempts[len(s.Attempts)-1]
		_, _ = fmt.Fprintf(out, "✓ QR code readable: %s (attempt %d, %s)\n", s.Decoded, m.Index, m.Strategy)
	default:
		_, _ = fmt.Fprintf(out, "✗ %s\n", s.Error)
		for _, a := range s.Attempts {
			_, _ = fmt.Fprintf(out, "  attempt %d %-22s %s\n", a.Index, a.Strategy, a.Result)
		}
	}
}
