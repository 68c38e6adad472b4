package embed

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileSize(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		ratio  float64
		expect int
	}{
		{"full hd quarter", 1920, 1080, 0.25, 270},
		{"small background clamps up", 400, 400, 0.25, 200},
		{"large background clamps down", 4000, 4000, 0.5, 800},
		{"ratio below range clamps", 3000, 3000, 0.01, 300},
		{"ratio above range clamps", 1000, 1000, 0.9, 500},
		{"portrait uses width", 1000, 2000, 0.3, 300},
		{"tiny background", 10, 10, 0.25, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TileSize(image.Rect(0, 0, tt.w, tt.h), tt.ratio))
		})
	}
}

func TestTileSize_AlwaysWithinBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tile side stays within [200, 800]", prop.ForAll(
		func(w, h int, ratio float64) bool {
			size := TileSize(image.Rect(0, 0, w, h), ratio)
			return size >= MinTileSize && size <= MaxTileSize
		},
		gen.IntRange(1, 8000),
		gen.IntRange(1, 8000),
		gen.Float64Range(-1, 2),
	))

	properties.TestingRun(t)
}

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		in     string
		expect Anchor
	}{
		{"top-left", AnchorTopLeft},
		{"TopRight", AnchorTopRight},
		{"bottom_left", AnchorBottomLeft},
		{"bottom-right", AnchorBottomRight},
		{" center ", AnchorCenter},
		{"centre", AnchorCenter},
	}
	for _, tt := range tests {
		a, err := ParseAnchor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.expect, a, tt.in)
	}

	_, err := ParseAnchor("middle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid position")
}

func TestAnchor_StringRoundTrip(t *testing.T) {
	for _, a := range Anchors() {
		parsed, err := ParseAnchor(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	assert.Equal(t, "anchor(42)", Anchor(42).String())
}

func TestConfig_Normalize(t *testing.T) {
	cfg := Config{SizeRatio: 0.9, Margin: -5, Opacity: 100}.Normalize()
	assert.InDelta(t, MaxSizeRatio, cfg.SizeRatio, 1e-9)
	assert.Equal(t, 0, cfg.Margin)
	assert.Equal(t, uint8(100), cfg.Opacity)

	def := DefaultConfig()
	assert.Equal(t, AnchorBottomRight, def.Anchor)
	assert.Equal(t, uint8(230), def.Opacity)
	assert.Equal(t, 30, def.Margin)
	assert.InDelta(t, 0.25, def.SizeRatio, 1e-9)
}
