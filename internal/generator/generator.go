// Package generator ties background fetching, QR embedding, validation and
// saving into a single operation.
package generator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/common"
	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/validate"
)

// ErrNotReadable is wrapped around every validation failure. The typed
// validation error stays reachable through errors.As.
var ErrNotReadable = errors.New("QR code not readable")

// Stage names a step of a generation.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageEmbed    Stage = "embed"
	StageValidate Stage = "validate"
	StageSave     Stage = "save"
)

// StageEvent is delivered to an Observer when a stage starts and ends.
type StageEvent struct {
	Stage    Stage
	Done     bool
	Duration time.Duration
	Err      error
}

// Observer receives stage events. It is called synchronously.
type Observer func(StageEvent)

// Config holds the layout and validation settings.
type Config struct {
	Embed                 embed.Config
	MaxValidationAttempts int
}

// DefaultConfig returns the default layout with three validation attempts.
func DefaultConfig() Config {
	return Config{
		Embed:                 embed.DefaultConfig(),
		MaxValidationAttempts: validate.DefaultMaxAttempts,
	}
}

// Result is a validated composite.
type Result struct {
	Image   *image.NRGBA
	Keyword string
	Payload string
	Report  *validate.Report
	Timings map[string]time.Duration
	Path    string
}

// Generator produces validated QR composites. It is safe for concurrent use;
// every call works on its own buffers.
type Generator struct {
	source    provider.Source
	embedder  *embed.Embedder
	validator *validate.Validator
	sink      output.Sink
	observer  Observer
}

// Option configures a Generator.
type Option func(*Generator)

// WithSink replaces the default file sink.
func WithSink(s output.Sink) Option {
	return func(g *Generator) { g.sink = s }
}

// WithValidator replaces the validator built from Config.
func WithValidator(v *validate.Validator) Option {
	return func(g *Generator) { g.validator = v }
}

// WithObserver sets the stage observer.
func WithObserver(o Observer) Option {
	return func(g *Generator) { g.observer = o }
}

// New creates a Generator that takes backgrounds from source.
func New(cfg Config, source provider.Source, opts ...Option) *Generator {
	g := &Generator{
		source:    source,
		embedder:  embed.New(cfg.Embed),
		validator: validate.New(cfg.MaxValidationAttempts),
		sink:      output.NewFileSink(output.DefaultJPEGQuality),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Observe returns a copy of g that reports stages to o.
func (g *Generator) Observe(o Observer) *Generator {
	c := *g
	c.observer = o
	return &c
}

// Generate fetches a background for keyword and embeds data into it. The
// result is returned only after the QR code decoded back to data.
func (g *Generator) Generate(ctx context.Context, keyword, data string) (*Result, error) {
	timer := common.NewStageTimer()

	var bg image.Image
	err := g.stage(timer, StageFetch, func() error {
		var ferr error
		bg, ferr = g.source.Fetch(ctx, keyword)
		return ferr
	})
	if err != nil {
		generationsTotal.WithLabelValues("fetch_error").Inc()
		return nil, fmt.Errorf("fetch background: %w", err)
	}

	res, err := g.compose(ctx, timer, bg, data)
	if err != nil {
		return nil, err
	}
	res.Keyword = keyword
	slog.Info("QR image generated", "keyword", keyword, "timings", timer.String())
	return res, nil
}

// GenerateAndSave runs Generate and writes the validated image to path.
// Nothing is written when validation fails.
func (g *Generator) GenerateAndSave(ctx context.Context, keyword, data, path string) (*Result, error) {
	res, err := g.Generate(ctx, keyword, data)
	if err != nil {
		return nil, err
	}
	if err := g.Save(res, path); err != nil {
		return nil, err
	}
	return res, nil
}

// Save writes a result through the sink and records the path.
func (g *Generator) Save(res *Result, path string) error {
	timer := common.NewStageTimer()
	err := g.stage(timer, StageSave, func() error { return g.sink.Save(res.Image, path) })
	if err != nil {
		generationsTotal.WithLabelValues("save_error").Inc()
		return fmt.Errorf("save output: %w", err)
	}
	res.Path = path
	if res.Timings != nil {
		res.Timings[string(StageSave)] = timer.Stage(string(StageSave))
	}
	return nil
}

// Compose embeds data into a caller-supplied background and validates it.
func (g *Generator) Compose(ctx context.Context, background image.Image, data string) (*Result, error) {
	return g.compose(ctx, common.NewStageTimer(), background, data)
}

func (g *Generator) compose(ctx context.Context, timer *common.StageTimer, bg image.Image, data string) (*Result, error) {
	var composite *image.NRGBA
	err := g.stage(timer, StageEmbed, func() error {
		var eerr error
		composite, eerr = g.embedder.Embed(bg, data)
		return eerr
	})
	if err != nil {
		generationsTotal.WithLabelValues("embed_error").Inc()
		return nil, fmt.Errorf("embed QR code: %w", err)
	}

	var report *validate.Report
	err = g.stage(timer, StageValidate, func() error {
		var verr error
		report, verr = g.validator.ValidateContext(ctx, composite, data)
		return verr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		generationsTotal.WithLabelValues("not_readable").Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotReadable, err)
	}

	generationsTotal.WithLabelValues("ok").Inc()
	validationAttempts.Observe(float64(len(report.Attempts)))
	return &Result{
		Image:   composite,
		Payload: data,
		Report:  report,
		Timings: timer.Stages(),
	}, nil
}

// QuickValidate reports whether img contains a detectable QR symbol.
func (g *Generator) QuickValidate(img image.Image) bool {
	return g.validator.QuickCheck(img)
}

// Validate runs the full validation on an existing image.
func (g *Generator) Validate(ctx context.Context, img image.Image, expected string) (*validate.Report, error) {
	report, err := g.validator.ValidateContext(ctx, img, expected)
	if err != nil {
		var mm *validate.MismatchError
		var ex *validate.ExhaustedError
		if errors.As(err, &mm) || errors.As(err, &ex) {
			return nil, fmt.Errorf("%w: %w", ErrNotReadable, err)
		}
		return nil, err
	}
	return report, nil
}

func (g *Generator) stage(timer *common.StageTimer, s Stage, fn func() error) error {
	g.notify(StageEvent{Stage: s})
	stop := timer.Start(string(s))
	err := fn()
	d := stop()
	stageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
	g.notify(StageEvent{Stage: s, Done: true, Duration: d, Err: err})
	return err
}

func (g *Generator) notify(ev StageEvent) {
	if g.observer != nil {
		g.observer(ev)
	}
}
