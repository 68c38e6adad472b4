package provider

import (
	"context"
	"image"

	"github.com/MeKo-Tech/qrimage/internal/utils"
)

// File serves a local image, resized to the target size. The keyword is ignored.
type File struct {
	path          string
	width, height int
}

// NewFile creates a file source. Non-positive dimensions keep the original size.
func NewFile(path string, width, height int) *File {
	return &File{path: path, width: width, height: height}
}

func (f *File) Name() string { return "file" }

func (f *File) Fetch(ctx context.Context, _ string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := utils.LoadImage(f.path)
	if err != nil {
		return nil, &Error{Source: f.Name(), Err: err}
	}
	if f.width <= 0 || f.height <= 0 {
		return img, nil
	}
	return utils.FitExact(img, f.width, f.height)
}
