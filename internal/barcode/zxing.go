package barcode

import (
	"fmt"
	"image"
	"log/slog"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/common"
	multidetector "github.com/makiuchi-d/gozxing/multi/qrcode/detector"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"github.com/makiuchi-d/gozxing/qrcode/detector"
)

type zxingDetector struct {
	tryHarder bool
}

func (d *zxingDetector) hints() map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if d.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return hints
}

// Detect binarizes the image and runs the finder-pattern detectors. The
// single best match comes first, followed by every other candidate the
// multi detector finds. A detector miss is reported as zero grids rather
// than an error.
func (d *zxingDetector) Detect(img image.Image) ([]Grid, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}
	matrix, err := bmp.GetBlackMatrix()
	if err != nil {
		slog.Debug("Binarization found no usable contrast", "error", err)
		return nil, nil
	}
	hints := d.hints()

	var grids []Grid
	seen := make(map[string]bool)
	add := func(r *common.DetectorResult) {
		g := &zxingGrid{result: r, hints: hints}
		key := fmt.Sprint(g.Points())
		if seen[key] {
			return
		}
		seen[key] = true
		grids = append(grids, g)
	}

	if result, err := detector.NewDetector(matrix).Detect(hints); err == nil {
		add(result)
	} else {
		slog.Debug("No single QR finder pattern match", "error", err)
	}

	results, err := multidetector.NewMultiDetector(matrix).DetectMulti(hints)
	if err != nil {
		slog.Debug("No additional QR candidates", "error", err)
	}
	for _, r := range results {
		add(r)
	}
	return grids, nil
}

type zxingGrid struct {
	result *common.DetectorResult
	hints  map[gozxing.DecodeHintType]interface{}
}

func (g *zxingGrid) Points() []Point {
	pts := g.result.GetPoints()
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		out = append(out, Point{X: int(p.GetX()), Y: int(p.GetY())})
	}
	return out
}

func (g *zxingGrid) Decode() (string, error) {
	res, err := decoder.NewDecoder().Decode(g.result.GetBits(), g.hints)
	if err != nil {
		return "", err
	}
	return res.GetText(), nil
}
