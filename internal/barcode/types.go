package barcode

import (
	"errors"
	"image"
)

// ErrNoSymbol is returned by Scan when nothing was detected.
var ErrNoSymbol = errors.New("no QR symbol detected")

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Grid is a detected symbol that has not been decoded yet.
type Grid interface {
	// Points returns the finder-pattern centres in image coordinates.
	Points() []Point
	// Decode reads the payload carried by the grid.
	Decode() (string, error)
}

// Detector finds candidate QR grids in an image. An image without symbols
// yields an empty slice and a nil error.
type Detector interface {
	Detect(img image.Image) ([]Grid, error)
}

// Result is a decoded symbol.
type Result struct {
	Value  string
	Points []Point
	BBox   image.Rectangle
}

// NewDetector returns the default gozxing-backed detector.
func NewDetector() Detector { return &zxingDetector{tryHarder: true} }

// Scan detects grids and returns the first that decodes.
func Scan(d Detector, img image.Image) (*Result, error) {
	grids, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, ErrNoSymbol
	}
	var lastErr error
	for _, g := range grids {
		v, err := g.Decode()
		if err != nil {
			lastErr = err
			continue
		}
		pts := g.Points()
		return &Result{Value: v, Points: pts, BBox: rectFromPoints(pts)}, nil
	}
	return nil, lastErr
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
