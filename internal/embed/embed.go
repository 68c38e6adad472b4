// Package embed renders a QR code tile and alpha-composites it onto a
// background image.
package embed

import (
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Embedder composites QR tiles using a fixed layout configuration.
// It holds no mutable state and is safe for concurrent use.
type Embedder struct {
	cfg Config
}

// New creates an Embedder. The configuration is normalized.
func New(cfg Config) *Embedder {
	return &Embedder{cfg: cfg.Normalize()}
}

// Config returns the normalized configuration.
func (e *Embedder) Config() Config { return e.cfg }

// Embed encodes payload and composites it onto a copy of background.
// The background itself is never modified.
func (e *Embedder) Embed(background image.Image, payload string) (*image.NRGBA, error) {
	bitmap, err := encode(payload)
	if err != nil {
		return nil, err
	}
	if background == nil {
		return nil, &CompositingError{Operation: "embed", Err: ErrEmptyBackground}
	}
	bounds := background.Bounds()
	if bounds.Empty() {
		return nil, &CompositingError{Operation: "embed", Err: ErrEmptyBackground}
	}

	size := TileSize(bounds, e.cfg.SizeRatio)
	tile := renderTile(bitmap, size, e.cfg.Opacity)

	out := imaging.Clone(background)
	at := Place(out.Bounds(), size, e.cfg.Anchor, e.cfg.Margin)

	slog.Debug("Embedding QR tile",
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"tile_size", size,
		"modules", len(bitmap),
		"position", e.cfg.Anchor.String(),
		"x", at.X,
		"y", at.Y)

	Composite(out, tile, at)
	return out, nil
}
