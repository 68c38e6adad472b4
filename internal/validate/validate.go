// Package validate re-decodes a composited image and checks that the QR
// code carries the expected payload.
package validate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/barcode"
	"github.com/MeKo-Tech/qrimage/internal/preprocess"
)

// DefaultMaxAttempts is the default attempt budget.
const DefaultMaxAttempts = 3

// Outcome classifies a single attempt.
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeMismatched
	OutcomeNoSymbolDetected
	OutcomeDecodeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeMismatched:
		return "mismatched"
	case OutcomeNoSymbolDetected:
		return "no-symbol-detected"
	case OutcomeDecodeFailed:
		return "decode-failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempt records one preprocessing and decode pass.
type Attempt struct {
	Index    int           `json:"index"`
	Strategy string        `json:"strategy"`
	Outcome  Outcome       `json:"-"`
	Result   string        `json:"outcome"`
	Grids    int           `json:"grids"`
	Decoded  string        `json:"decoded,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is returned on a successful validation.
type Report struct {
	Payload  string    `json:"payload"`
	Attempts []Attempt `json:"attempts"`
}

// Matched returns the attempt that produced the match.
func (r *Report) Matched() Attempt {
	return r.Attempts[len(r.Attempts)-1]
}

// Option configures a Validator.
type Option func(*Validator)

// WithDetector replaces the symbol detector.
func WithDetector(d barcode.Detector) Option {
	return func(v *Validator) { v.detector = d }
}

// WithStrategies replaces the planned strategies. The attempt budget becomes
// the number of strategies.
func WithStrategies(s []preprocess.Strategy) Option {
	return func(v *Validator) { v.strategies = s }
}

// Validator runs the ordered strategies against an image. It holds no
// per-call state and is safe for concurrent use.
type Validator struct {
	detector   barcode.Detector
	strategies []preprocess.Strategy
}

// New creates a Validator with the given attempt budget.
func New(maxAttempts int, opts ...Option) *Validator {
	v := &Validator{
		detector:   barcode.NewDetector(),
		strategies: preprocess.Plan(maxAttempts),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxAttempts returns the attempt budget.
func (v *Validator) MaxAttempts() int { return len(v.strategies) }

// Validate checks that img carries expected.
func (v *Validator) Validate(img image.Image, expected string) (*Report, error) {
	return v.ValidateContext(context.Background(), img, expected)
}

// ValidateContext is Validate with cancellation between attempts.
func (v *Validator) ValidateContext(ctx context.Context, img image.Image, expected string) (*Report, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	gray := preprocess.Grayscale(img)
	history := make([]Attempt, 0, len(v.strategies))

	for i, s := range v.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		att := v.attempt(gray, i+1, s, expected)
		history = append(history, att)

		switch att.Outcome {
		case OutcomeMatched:
			slog.Debug("QR code validated", "attempt", att.Index, "strategy", att.Strategy)
			return &Report{Payload: expected, Attempts: history}, nil
		case OutcomeMismatched:
			slog.Warn("QR payload mismatch", "attempt", att.Index, "strategy", att.Strategy)
			return nil, &MismatchError{
				Attempt:  att.Index,
				Strategy: att.Strategy,
				Expected: expected,
				Decoded:  att.Decoded,
			}
		default:
			slog.Warn("Validation attempt failed",
				"attempt", att.Index,
				"strategy", att.Strategy,
				"outcome", att.Result,
				"detail", att.Detail)
		}
	}
	return nil, &ExhaustedError{Attempts: len(history), History: history}
}

func (v *Validator) attempt(gray *image.Gray, index int, s preprocess.Strategy, expected string) Attempt {
	start := time.Now()
	att := Attempt{Index: index, Strategy: s.Name}

	grids, err := v.detector.Detect(s.Apply(gray))
	att.Grids = len(grids)
	switch {
	case err != nil:
		att.setOutcome(OutcomeDecodeFailed)
		att.Detail = "detector: " + err.Error()
	case len(grids) == 0:
		att.setOutcome(OutcomeNoSymbolDetected)
	default:
		att.setOutcome(OutcomeDecodeFailed)
		for _, g := range grids {
			decoded, derr := g.Decode()
			if derr != nil {
				att.Detail = derr.Error()
				continue
			}
			att.Decoded = decoded
			att.Detail = ""
			if decoded == expected {
				att.setOutcome(OutcomeMatched)
			} else {
				att.setOutcome(OutcomeMismatched)
			}
			break
		}
	}
	att.Duration = time.Since(start)
	return att
}

func (a *Attempt) setOutcome(o Outcome) {
	a.Outcome = o
	a.Result = o.String()
}

// QuickCheck reports whether at least one symbol is detected in the plain
// grayscale image. Nothing is decoded.
func (v *Validator) QuickCheck(img image.Image) bool {
	if img == nil || img.Bounds().Empty() {
		return false
	}
	grids, err := v.detector.Detect(preprocess.Grayscale(img))
	return err == nil && len(grids) > 0
}
