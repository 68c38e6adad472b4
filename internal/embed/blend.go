package embed

import (
	"image"
	"image/color"
	"math"
)

// Blend composites fg over bg using straight (non-premultiplied) alpha.
// An opaque fg yields fg unchanged and a fully transparent fg yields bg unchanged.
func Blend(bg, fg color.NRGBA) color.NRGBA {
	if fg.A == 255 {
		return fg
	}
	fa := float64(fg.A) / 255
	ba := float64(bg.A) / 255
	outA := fa + ba*(1-fa)
	if outA == 0 {
		return color.NRGBA{}
	}
	if fg.A == 0 {
		return bg
	}

	channel := func(f, b uint8) uint8 {
		v := (float64(f)*fa + float64(b)*ba*(1-fa)) / outA
		return uint8(math.Min(255, math.Round(v)))
	}
	return color.NRGBA{
		R: channel(fg.R, bg.R),
		G: channel(fg.G, bg.G),
		B: channel(fg.B, bg.B),
		A: uint8(math.Min(255, math.Round(outA*255))),
	}
}

// Composite blends tile over dst with its top-left corner at p.
// Tile pixels falling outside dst are skipped.
func Composite(dst *image.NRGBA, tile *image.NRGBA, p image.Point) {
	db := dst.Bounds()
	tb := tile.Bounds()
	for ty := tb.Min.Y; ty < tb.Max.Y; ty++ {
		y := p.Y + ty - tb.Min.Y
		if y < db.Min.Y || y >= db.Max.Y {
			continue
		}
		for tx := tb.Min.X; tx < tb.Max.X; tx++ {
			x := p.X + tx - tb.Min.X
			if x < db.Min.X || x >= db.Max.X {
				continue
			}
			dst.SetNRGBA(x, y, Blend(dst.NRGBAAt(x, y), tile.NRGBAAt(tx, ty)))
		}
	}
}
