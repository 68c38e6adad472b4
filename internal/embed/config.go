package embed

import (
	"fmt"
	"image"
	"math"
	"strings"
)

const (
	// DefaultSizeRatio is the fraction of the shorter background side used for the tile.
	DefaultSizeRatio = 0.25
	// MinSizeRatio and MaxSizeRatio bound the configurable ratio.
	MinSizeRatio = 0.1
	MaxSizeRatio = 0.5

	// MinTileSize and MaxTileSize bound the tile side in pixels.
	MinTileSize = 200
	MaxTileSize = 800

	// DefaultOpacity is the alpha of the light plate behind the modules.
	DefaultOpacity uint8 = 230
	// DefaultMargin is the distance in pixels between the tile and the anchored edges.
	DefaultMargin = 30

	// PaddingFraction is the share of the tile side reserved as plate around the modules.
	PaddingFraction = 0.1
)

// Anchor selects where the tile is placed on the background.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
	AnchorCenter
)

var anchorNames = map[Anchor]string{
	AnchorTopLeft:     "top-left",
	AnchorTopRight:    "top-right",
	AnchorBottomLeft:  "bottom-left",
	AnchorBottomRight: "bottom-right",
	AnchorCenter:      "center",
}

// String returns the canonical kebab-case name of the anchor.
func (a Anchor) String() string {
	if name, ok := anchorNames[a]; ok {
		return name
	}
	return fmt.Sprintf("anchor(%d)", int(a))
}

// Anchors returns all anchors in declaration order.
func Anchors() []Anchor {
	return []Anchor{AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight, AnchorCenter}
}

// ParseAnchor parses an anchor name. Separators '-', '_' and ' ' are
// interchangeable and matching is case-insensitive.
func ParseAnchor(s string) (Anchor, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "topleft":
		return AnchorTopLeft, nil
	case "topright":
		return AnchorTopRight, nil
	case "bottomleft":
		return AnchorBottomLeft, nil
	case "bottomright":
		return AnchorBottomRight, nil
	case "center", "centre":
		return AnchorCenter, nil
	default:
		return AnchorBottomRight, fmt.Errorf("invalid position: %q (must be one of: top-left, top-right, bottom-left, bottom-right, center)", s)
	}
}

// Config controls tile size, placement and plate opacity.
type Config struct {
	SizeRatio float64
	Anchor    Anchor
	Opacity   uint8
	Margin    int
}

// DefaultConfig returns the standard layout: bottom-right, a quarter of the
// shorter side, plate alpha 230.
func DefaultConfig() Config {
	return Config{
		SizeRatio: DefaultSizeRatio,
		Anchor:    AnchorBottomRight,
		Opacity:   DefaultOpacity,
		Margin:    DefaultMargin,
	}
}

// Normalize clamps the size ratio into [MinSizeRatio, MaxSizeRatio] and
// negative margins to zero.
func (c Config) Normalize() Config {
	c.SizeRatio = clampRatio(c.SizeRatio)
	if c.Margin < 0 {
		c.Margin = 0
	}
	return c
}

func clampRatio(r float64) float64 {
	if math.IsNaN(r) {
		return DefaultSizeRatio
	}
	return math.Max(MinSizeRatio, math.Min(MaxSizeRatio, r))
}

// TileSize returns the tile side for a background of the given bounds:
// int(shorter side * ratio) clamped to [MinTileSize, MaxTileSize].
func TileSize(bounds image.Rectangle, ratio float64) int {
	shorter := min(bounds.Dx(), bounds.Dy())
	size := int(float64(shorter) * clampRatio(ratio))
	return max(MinTileSize, min(MaxTileSize, size))
}

// Padding returns the plate padding for a tile side.
func Padding(tileSize int) int {
	return int(float64(tileSize) * PaddingFraction)
}
