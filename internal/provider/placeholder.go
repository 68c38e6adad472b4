package provider

import (
	"context"
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Placeholder renders a deterministic horizontal gradient derived from the
// keyword. It never fails.
type Placeholder struct {
	width, height int
}

// NewPlaceholder creates a placeholder source of the given size.
func NewPlaceholder(width, height int) *Placeholder {
	return &Placeholder{width: max(1, width), height: max(1, height)}
}

func (p *Placeholder) Name() string { return "placeholder" }

// PlaceholderColor derives the base colour from the byte sum of keyword.
func PlaceholderColor(keyword string) color.RGBA {
	var hash uint32
	for i := 0; i < len(keyword); i++ {
		hash += uint32(keyword[i])
	}
	return color.RGBA{
		R: uint8((hash * 137) % 256),
		G: uint8((hash * 193) % 256),
		B: uint8((hash * 241) % 256),
		A: 255,
	}
}

func scale(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: 255,
	}
}

// Fetch renders the gradient from 70% brightness on the left edge to full
// brightness on the right.
func (p *Placeholder) Fetch(_ context.Context, keyword string) (image.Image, error) {
	base := PlaceholderColor(keyword)

	dc := gg.NewContext(p.width, p.height)
	grad := gg.NewLinearGradient(0, 0, float64(p.width), 0)
	grad.AddColorStop(0, scale(base, 0.7))
	grad.AddColorStop(1, base)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(p.width), float64(p.height))
	dc.Fill()
	return dc.Image(), nil
}
