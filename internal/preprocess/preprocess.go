// Package preprocess holds the grayscale image transforms applied before
// each QR decoding attempt.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

const (
	// DefaultWindow is the side of the adaptive threshold neighbourhood.
	DefaultWindow = 15
	// DefaultOffset is subtracted from the local mean before comparison.
	DefaultOffset = 10
	// BrightnessStep is the shift added per attempt beyond the fixed strategies.
	BrightnessStep = 20
)

// Func transforms a grayscale image into a new one. Implementations must not
// modify their input.
type Func func(*image.Gray) *image.Gray

// Strategy is a named preprocessing step.
type Strategy struct {
	Name  string
	Apply Func
}

// Grayscale converts any image into a zero-origin *image.Gray using the
// standard luma weights.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.Gray); ok {
		for y := range b.Dy() {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return gray
	}
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func clone(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		copy(dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)], src.Pix[src.PixOffset(b.Min.X, y):])
	}
	return dst
}

// Identity returns an unchanged copy.
func Identity(src *image.Gray) *image.Gray {
	return clone(src)
}

// ContrastStretch linearly remaps the [min, max] luminance range onto
// [0, 255]. Flat images are returned unchanged.
func ContrastStretch(src *image.Gray) *image.Gray {
	dst := clone(src)
	b := dst.Bounds()
	lo, hi := uint8(255), uint8(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := dst.GrayAt(x, y).Y
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if hi <= lo {
		return dst
	}
	span := int(hi) - int(lo)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(dst.GrayAt(x, y).Y)
			dst.SetGray(x, y, color.Gray{Y: uint8((v - int(lo)) * 255 / span)})
		}
	}
	return dst
}

// AdaptiveThreshold returns a binarizer that compares each pixel against the
// mean of the window x window neighbourhood centred on it, restricted to
// in-bounds pixels. Pixels brighter than mean-offset become 255, others 0.
func AdaptiveThreshold(window, offset int) Func {
	if window < 1 {
		window = 1
	}
	half := window / 2
	return func(src *image.Gray) *image.Gray {
		b := src.Bounds()
		w, h := b.Dx(), b.Dy()
		dst := image.NewGray(b)
		if w == 0 || h == 0 {
			return dst
		}
		sum := integral(src)
		stride := w + 1
		for y := range h {
			y0, y1 := max(0, y-half), min(h-1, y+half)
			for x := range w {
				x0, x1 := max(0, x-half), min(w-1, x+half)
				total := sum[(y1+1)*stride+x1+1] - sum[y0*stride+x1+1] - sum[(y1+1)*stride+x0] + sum[y0*stride+x0]
				count := int64((y1 - y0 + 1) * (x1 - x0 + 1))
				mean := int(total / count)
				v := int(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
				if v > mean-offset {
					dst.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 255})
				}
			}
		}
		return dst
	}
}

// integral builds a (w+1)x(h+1) summed-area table.
func integral(src *image.Gray) []int64 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w + 1
	sum := make([]int64, stride*(h+1))
	for y := range h {
		var row int64
		for x := range w {
			row += int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + row
		}
	}
	return sum
}

// BrightnessShift adds delta to every pixel, clamping to [0, 255].
func BrightnessShift(delta int) Func {
	return func(src *image.Gray) *image.Gray {
		dst := clone(src)
		for i, v := range dst.Pix {
			dst.Pix[i] = uint8(max(0, min(255, int(v)+delta)))
		}
		return dst
	}
}

// Plan returns the ordered strategies for the given attempt budget:
// original, contrast stretch, adaptive threshold, then brightness shifts of
// (i-3)*20 for attempt i >= 4.
func Plan(maxAttempts int) []Strategy {
	if maxAttempts <= 0 {
		return nil
	}
	fixed := []Strategy{
		{Name: "original", Apply: Identity},
		{Name: "contrast-stretch", Apply: ContrastStretch},
		{Name: "adaptive-threshold", Apply: AdaptiveThreshold(DefaultWindow, DefaultOffset)},
	}
	plan := make([]Strategy, 0, maxAttempts)
	for i := 1; i <= maxAttempts; i++ {
		if i <= len(fixed) {
			plan = append(plan, fixed[i-1])
			continue
		}
		delta := (i - 3) * BrightnessStep
		plan = append(plan, Strategy{
			Name:  fmt.Sprintf("brightness%+d", delta),
			Apply: BrightnessShift(delta),
		})
	}
	return plan
}
