package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"gopkg.in/yaml.v3"
)

// Job is one entry of a batch manifest. Zero layout fields inherit the
// batch defaults.
type Job struct {
	Keyword   string  `yaml:"keyword" json:"keyword"`
	Data      string  `yaml:"data" json:"data"`
	Output    string  `yaml:"output,omitempty" json:"output,omitempty"`
	Position  string  `yaml:"position,omitempty" json:"position,omitempty"`
	SizeRatio float64 `yaml:"size_ratio,omitempty" json:"size_ratio,omitempty"`
	Opacity   *int    `yaml:"opacity,omitempty" json:"opacity,omitempty"`
}

// Manifest lists the jobs of a batch run.
type Manifest struct {
	OutputDir string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	Jobs      []Job  `yaml:"jobs" json:"jobs"`
}

// LoadManifest reads and validates a YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // G304: manifest path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every job and fills in default output names.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return errors.New("manifest has no jobs")
	}

	seen := make(map[string]int, len(m.Jobs))
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Keyword == "" {
			return fmt.Errorf("job %d: keyword is required", i+1)
		}
		if j.Data == "" {
			return fmt.Errorf("job %d: data is required", i+1)
		}
		if j.Output == "" {
			j.Output = fmt.Sprintf("qr_%03d.png", i+1)
		}
		if _, err := output.FormatFromPath(j.Output); err != nil {
			return fmt.Errorf("job %d: %w", i+1, err)
		}
		if prev, dup := seen[j.Output]; dup {
			return fmt.Errorf("job %d: output %s already used by job %d", i+1, j.Output, prev)
		}
		seen[j.Output] = i + 1
		if _, err := j.apply(generator.DefaultConfig()); err != nil {
			return fmt.Errorf("job %d: %w", i+1, err)
		}
	}
	return nil
}

// apply overlays the job's layout overrides on base.
func (j Job) apply(base generator.Config) (generator.Config, error) {
	cfg := base
	if j.Position != "" {
		anchor, err := embed.ParseAnchor(j.Position)
		if err != nil {
			return cfg, err
		}
		cfg.Embed.Anchor = anchor
	}
	if j.SizeRatio != 0 {
		if j.SizeRatio < embed.MinSizeRatio || j.SizeRatio > embed.MaxSizeRatio {
			return cfg, fmt.Errorf("size_ratio %g must be between %g and %g", j.SizeRatio, embed.MinSizeRatio, embed.MaxSizeRatio)
		}
		cfg.Embed.SizeRatio = j.SizeRatio
	}
	if j.Opacity != nil {
		if *j.Opacity < 0 || *j.Opacity > 255 {
			return cfg, fmt.Errorf("opacity %d must be between 0 and 255", *j.Opacity)
		}
		cfg.Embed.Opacity = uint8(*j.Opacity)
	}
	return cfg, nil
}

// outputPath resolves the job output against dir.
func (j Job) outputPath(dir string) string {
	if dir == "" || filepath.IsAbs(j.Output) {
		return j.Output
	}
	return filepath.Join(dir, j.Output)
}
