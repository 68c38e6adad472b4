package embed

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
)

// BorderColor is the RGB of the thin frame drawn around the plate.
var BorderColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}

// encode builds the module grid at the medium error-correction level.
// The grid includes the encoder's quiet zone.
func encode(payload string) ([][]bool, error) {
	if payload == "" {
		return nil, &EncodeError{Err: ErrEmptyPayload}
	}
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, &EncodeError{PayloadLen: len(payload), Err: err}
	}
	return qr.Bitmap(), nil
}

// moduleImage rasterises the grid at one pixel per module.
func moduleImage(bitmap [][]bool) *image.Gray {
	n := len(bitmap)
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				img.Pix[y*img.Stride+x] = 0
			} else {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

// RenderTile encodes payload and renders a square tile of the given side.
func RenderTile(payload string, size int, opacity uint8) (*image.NRGBA, error) {
	bitmap, err := encode(payload)
	if err != nil {
		return nil, err
	}
	return renderTile(bitmap, size, opacity), nil
}

func renderTile(bitmap [][]bool, size int, opacity uint8) *image.NRGBA {
	padding := Padding(size)
	content := size - 2*padding

	plate := color.NRGBA{R: 255, G: 255, B: 255, A: opacity}
	dark := color.NRGBA{A: 255}
	border := color.NRGBA{R: BorderColor.R, G: BorderColor.G, B: BorderColor.B, A: opacity}

	tile := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(tile.Pix); i += 4 {
		tile.Pix[i+0] = plate.R
		tile.Pix[i+1] = plate.G
		tile.Pix[i+2] = plate.B
		tile.Pix[i+3] = plate.A
	}

	modules := imaging.Resize(moduleImage(bitmap), content, content, imaging.NearestNeighbor)
	for y := range content {
		for x := range content {
			if modules.NRGBAAt(x, y).R < 128 {
				tile.SetNRGBA(padding+x, padding+y, dark)
			} else {
				tile.SetNRGBA(padding+x, padding+y, plate)
			}
		}
	}

	drawBorder(tile, padding/2, border)
	return tile
}

// drawBorder paints a frame of the given width along all four edges.
func drawBorder(tile *image.NRGBA, width int, c color.NRGBA) {
	size := tile.Bounds().Dx()
	for y := range size {
		for x := range size {
			if x < width || y < width || x >= size-width || y >= size-width {
				tile.SetNRGBA(x, y, c)
			}
		}
	}
}
