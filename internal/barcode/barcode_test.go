package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qrImage(t *testing.T, payload string, size int) image.Image {
	t.Helper()
	qr, err := qrcode.New(payload, qrcode.Medium)
	require.NoError(t, err)
	return qr.Image(size)
}

func TestDetector_DecodesCleanSymbol(t *testing.T) {
	res, err := Scan(NewDetector(), qrImage(t, "https://example.com/qr", 256))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/qr", res.Value)
	assert.NotEmpty(t, res.Points)
	assert.False(t, res.BBox.Empty())
}

func TestDetector_BlankImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	grids, err := NewDetector().Detect(img)
	require.NoError(t, err)
	assert.Empty(t, grids)

	_, err = Scan(NewDetector(), img)
	assert.ErrorIs(t, err, ErrNoSymbol)
}

func TestDetector_ReturnsEveryCandidate(t *testing.T) {
	canvas := image.NewGray(image.Rect(0, 0, 640, 320))
	for i := range canvas.Pix {
		canvas.Pix[i] = 255
	}
	draw.Draw(canvas, image.Rect(20, 32, 276, 288), qrImage(t, "left-symbol-0001", 256), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(364, 32, 620, 288), qrImage(t, "right-symbol-002", 256), image.Point{}, draw.Src)

	grids, err := NewDetector().Detect(canvas)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(grids), 2)

	decoded := make(map[string]bool)
	keys := make(map[string]bool)
	for _, g := range grids {
		key := fmt.Sprint(g.Points())
		assert.False(t, keys[key], "duplicate candidate %s", key)
		keys[key] = true
		if v, err := g.Decode(); err == nil {
			decoded[v] = true
		}
	}
	assert.True(t, decoded["left-symbol-0001"])
	assert.True(t, decoded["right-symbol-002"])
}

type stubGrid struct {
	value string
	err   error
}

func (s stubGrid) Points() []Point         { return []Point{{1, 2}, {5, 9}} }
func (s stubGrid) Decode() (string, error) { return s.value, s.err }

type stubDetector struct{ grids []Grid }

func (s stubDetector) Detect(image.Image) ([]Grid, error) { return s.grids, nil }

func TestScan_FirstDecodableGridWins(t *testing.T) {
	d := stubDetector{grids: []Grid{
		stubGrid{err: errors.New("checksum")},
		stubGrid{value: "second"},
		stubGrid{value: "third"},
	}}
	res, err := Scan(d, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "second", res.Value)
	assert.Equal(t, image.Rect(1, 2, 6, 10), res.BBox)
}

func TestScan_AllGridsFail(t *testing.T) {
	d := stubDetector{grids: []Grid{stubGrid{err: errors.New("format")}}}
	_, err := Scan(d, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.EqualError(t, err, "format")
}

func TestRectFromPoints(t *testing.T) {
	assert.Equal(t, image.Rectangle{}, rectFromPoints(nil))
	assert.Equal(t, image.Rect(0, 0, 11, 21), rectFromPoints([]Point{{10, 0}, {0, 20}}))
}
