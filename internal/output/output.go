// Package output writes composited images to files and streams.
package output

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 92

// Sink persists a finished image.
type Sink interface {
	Save(img image.Image, path string) error
}

// FileSink writes images to disk, choosing the encoder from the extension.
type FileSink struct {
	JPEGQuality int
	// MkdirAll creates missing parent directories.
	MkdirAll bool
}

// NewFileSink creates a sink with the given JPEG quality.
func NewFileSink(jpegQuality int) *FileSink {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &FileSink{JPEGQuality: jpegQuality, MkdirAll: true}
}

// Save encodes img to path. Unsupported extensions are rejected before any
// file is created.
func (s *FileSink) Save(img image.Image, path string) error {
	if _, err := FormatFromPath(path); err != nil {
		return err
	}
	if s.MkdirAll {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(s.JPEGQuality)); err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	slog.Info("Image saved", "path", path)
	return nil
}

// FormatFromPath maps a file extension to an imaging format.
func FormatFromPath(path string) (imaging.Format, error) {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q: %w", filepath.Ext(path), err)
	}
	return f, nil
}

// ParseFormat maps a format name such as "png" or "jpeg" to an imaging format.
func ParseFormat(name string) (imaging.Format, error) {
	return imaging.FormatFromExtension(strings.TrimPrefix(strings.ToLower(name), "."))
}

// ContentType returns the MIME type for an encoded format.
func ContentType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.BMP:
		return "image/bmp"
	case imaging.TIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, f imaging.Format, jpegQuality int) error {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(jpegQuality))
}
