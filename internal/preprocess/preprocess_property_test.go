package preprocess

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genGray(seed int64, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	v := uint64(seed)
	for i := range img.Pix {
		v = v*6364136223846793005 + 1442695040888963407
		img.Pix[i] = uint8(v >> 56)
	}
	return img
}

func TestStrategies_PreserveBoundsAndInput(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every planned strategy keeps bounds and leaves input intact", prop.ForAll(
		func(seed int64, w, h int) bool {
			src := genGray(seed, w, h)
			orig := append([]uint8(nil), src.Pix...)
			for _, s := range Plan(6) {
				out := s.Apply(src)
				if out.Bounds() != src.Bounds() {
					return false
				}
			}
			for i := range orig {
				if orig[i] != src.Pix[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
	))

	properties.Property("contrast stretch spans full range on non-flat input", prop.ForAll(
		func(seed int64, w, h int) bool {
			src := genGray(seed, w, h)
			lo, hi := uint8(255), uint8(0)
			for _, v := range src.Pix {
				lo, hi = min(lo, v), max(hi, v)
			}
			out := ContrastStretch(src)
			olo, ohi := uint8(255), uint8(0)
			for _, v := range out.Pix {
				olo, ohi = min(olo, v), max(ohi, v)
			}
			if hi == lo {
				return olo == lo && ohi == hi
			}
			return olo == 0 && ohi == 255
		},
		gen.Int64(),
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
	))

	properties.Property("adaptive threshold output is binary", prop.ForAll(
		func(seed int64, w, h int) bool {
			out := AdaptiveThreshold(DefaultWindow, DefaultOffset)(genGray(seed, w, h))
			for _, v := range out.Pix {
				if v != 0 && v != 255 {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 30),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}
