package provider

import (
	"context"
	"errors"
	"image"
	"log/slog"
)

// Chain tries sources in order and returns the first image obtained.
type Chain struct {
	sources []Source
}

// NewChain creates a chain over sources.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) Name() string { return "chain" }

// Sources returns the names of the chained sources in order.
func (c *Chain) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return names
}

// Fetch normalizes the keyword and walks the chain. Cancellation stops the walk.
func (c *Chain) Fetch(ctx context.Context, keyword string) (image.Image, error) {
	keyword = NormalizeKeyword(keyword)
	var errs []error
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := s.Fetch(ctx, keyword)
		if err == nil {
			slog.Info("Background image obtained", "source", s.Name(), "keyword", keyword)
			return img, nil
		}
		slog.Warn("Image source failed, trying next", "source", s.Name(), "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, &Error{Source: c.Name(), Err: errors.New("no sources configured")}
	}
	return nil, errors.Join(errs...)
}
