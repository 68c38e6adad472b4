package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/qrimage/internal/batch"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Generate many QR images from a YAML manifest",
	Long: `Generate a QR image for every job listed in a YAML manifest using a pool
of workers.

Manifest format:
  output_dir: out
  jobs:
    - keyword: mountains
      data: https://example.com/a
      output: a.png
    - keyword: ocean
      data: https://example.com/b
      position: top-left
      size_ratio: 0.3

Examples:
  qrimage batch jobs.yaml
  qrimage batch jobs.yaml --workers 8 --continue-on-error
  qrimage batch jobs.yaml --format json --report report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	batchCmd.Flags().Bool("continue-on-error", false, "keep processing after a failed job")
	batchCmd.Flags().String("output-dir", "", "directory for generated images (overrides the manifest)")
	batchCmd.Flags().StringP("format", "f", "text", "report format (text, json, yaml)")
	batchCmd.Flags().String("report", "", "write the report to a file instead of stdout")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().Int("jpeg-quality", output.DefaultJPEGQuality, "JPEG quality (1-100)")
	addSourceFlags(batchCmd)
	addLayoutFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	workers := cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	continueOnError := cfg.Batch.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	outputDir := cfg.Batch.OutputDir
	if cmd.Flags().Changed("output-dir") {
		outputDir, _ = cmd.Flags().GetString("output-dir")
	}
	format, _ := cmd.Flags().GetString("format")
	reportFile, _ := cmd.Flags().GetString("report")
	showProgress, _ := cmd.Flags().GetBool("progress")

	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if workers <= 0 {
		return fmt.Errorf("invalid workers: %d (must be positive)", workers)
	}

	manifest, err := batch.LoadManifest(args[0])
	if err != nil {
		return err
	}
	gcfg, err := cfg.ToGeneratorConfig()
	if err != nil {
		return err
	}

	var progress batch.ProgressCallback = batch.NewLogProgressCallback(slog.Default())
	if showProgress {
		progress = batch.MultiProgressCallback{
			progress,
			batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Generating: "),
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := batch.Run(ctx, manifest, provider.New(cfg.ToProviderConfig()), batch.Config{
		Workers:         workers,
		ContinueOnError: continueOnError,
		OutputDir:       outputDir,
		Generator:       gcfg,
		Sink:            output.NewFileSink(cfg.Output.JPEGQuality),
		Progress:        progress,
	})
	if result != nil {
		if err := result.SaveResults(cmd.OutOrStdout(), format, reportFile); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := result.Failed(); n > 0 {
		return fmt.Errorf("%d of %d jobs failed", n, len(result.Jobs))
	}
	return nil
}
