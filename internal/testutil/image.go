package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test background sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	HDSize     = ImageSize{1920, 1080}
)

// BackgroundKind selects a synthetic background pattern.
type BackgroundKind int

const (
	Solid BackgroundKind = iota
	Gradient
	Checker
	Noise
)

// Background creates a synthetic opaque background of the given size.
// Noise backgrounds are seeded so the same call yields the same pixels.
func Background(kind BackgroundKind, size ImageSize) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	rng := rand.New(rand.NewSource(int64(size.Width*31 + size.Height))) //nolint:gosec // test data

	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			var c color.NRGBA
			switch kind {
			case Gradient:
				c = color.NRGBA{
					R: uint8(255 * x / max(1, size.Width-1)),
					G: uint8(255 * y / max(1, size.Height-1)),
					B: 128,
					A: 255,
				}
			case Checker:
				if (x/40+y/40)%2 == 0 {
					c = color.NRGBA{20, 20, 20, 255}
				} else {
					c = color.NRGBA{235, 235, 235, 255}
				}
			case Noise:
				c = color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
			default:
				c = color.NRGBA{70, 130, 180, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// SaveImage saves an image to disk for testing purposes.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path), "Failed to save image to %s", path)
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// LoadImage loads an image from disk.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return img
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1 != bounds2 {
		return false
	}
	if bounds1.Empty() {
		return true
	}

	var totalDiff float64
	var pixelCount float64

	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)

	return (avgDiff / maxDiff) <= tolerance
}
