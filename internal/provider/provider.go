// Package provider fetches background images for a keyword.
package provider

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultTimeout bounds every HTTP request made by network sources.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies requests to image services.
	DefaultUserAgent = "QR-Image-Generator/1.0"
)

// ErrNoAPIKey is returned by the Unsplash source when no key is configured.
var ErrNoAPIKey = errors.New("no Unsplash API key configured")

// Source produces a background image for a keyword.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keyword string) (image.Image, error)
}

// Error wraps a failure of a specific source.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image provider %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config selects and parameterizes the default source chain.
type Config struct {
	Width          int
	Height         int
	UnsplashAPIKey string
	// BackgroundFile, when set, replaces all network sources.
	BackgroundFile string
	// Offline skips network sources and goes straight to the placeholder.
	Offline   bool
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns a 1920x1080 online configuration.
func DefaultConfig() Config {
	return Config{
		Width:     1920,
		Height:    1080,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// New builds the source for cfg. A background file is used on its own; otherwise
// Unsplash (when a key is set), the public random endpoint and the placeholder
// are tried in that order.
func New(cfg Config) Source {
	if cfg.BackgroundFile != "" {
		return NewFile(cfg.BackgroundFile, cfg.Width, cfg.Height)
	}
	placeholder := NewPlaceholder(cfg.Width, cfg.Height)
	if cfg.Offline {
		return placeholder
	}

	client := newHTTPClient(cfg.Timeout)
	var sources []Source
	if cfg.UnsplashAPIKey != "" {
		sources = append(sources, NewUnsplash(UnsplashConfig{
			APIKey:    cfg.UnsplashAPIKey,
			Width:     cfg.Width,
			Height:    cfg.Height,
			UserAgent: cfg.UserAgent,
		}, client))
	}
	sources = append(sources,
		NewRandom(RandomConfig{Width: cfg.Width, Height: cfg.Height, UserAgent: cfg.UserAgent}, client),
		placeholder,
	)
	return NewChain(sources...)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NormalizeKeyword trims, NFC-normalizes, lowercases and collapses internal
// whitespace so equivalent keywords map to the same query and placeholder.
func NormalizeKeyword(keyword string) string {
	s := norm.NFC.String(keyword)
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}
