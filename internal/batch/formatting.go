package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// summary is the serialised form of a Result.
type summary struct {
	Total     int         `json:"total" yaml:"total"`
	Succeeded int         `json:"succeeded" yaml:"succeeded"`
	Failed    int         `json:"failed" yaml:"failed"`
	Skipped   int         `json:"skipped" yaml:"skipped"`
	Workers   int         `json:"workers" yaml:"workers"`
	Duration  string      `json:"duration" yaml:"duration"`
	Jobs      []JobResult `json:"jobs" yaml:"jobs"`
}

func (r *Result) summary() summary {
	return summary{
		Total:     len(r.Jobs),
		Succeeded: r.Succeeded(),
		Failed:    r.Failed(),
		Skipped:   r.Skipped(),
		Workers:   r.WorkerCount,
		Duration:  r.Duration.Round(time.Millisecond).String(),
		Jobs:      r.Jobs,
	}
}

// FormatResults formats the batch results as text, json or yaml.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case "json":
		bts, err := json.MarshalIndent(r.summary(), "", "  ")
		return string(bts) + "\n", err
	case "yaml":
		bts, err := yaml.Marshal(r.summary())
		return string(bts), err
	case "text", "":
		return r.formatText(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s (must be text, json or yaml)", format)
	}
}

func (r *Result) formatText() string {
	var out strings.Builder
	for _, j := range r.Jobs {
		switch {
		case j.OK():
			_, _ = fmt.Fprintf(&out, "✓ %3d %-20s -> %s (attempts: %d, %s)\n", j.Index+1, j.Keyword, j.Path, j.Attempts, j.Strategy)
		default:
			_, _ = fmt.Fprintf(&out, "✗ %3d %-20s %s\n", j.Index+1, j.Keyword, j.Error)
		}
	}
	_, _ = fmt.Fprintf(&out, "\n%d succeeded, %d failed, %d skipped in %v\n",
		r.Succeeded(), r.Failed(), r.Skipped(), r.Duration.Round(time.Millisecond))
	return out.String()
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	text, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(text), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, text)
	return err
}
