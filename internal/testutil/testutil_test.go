package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, filepath.Join("nested", "jobs.yaml"), "jobs: []\n")

	assert.Equal(t, filepath.Join(dir, "nested", "jobs.yaml"), path)
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestBackground(t *testing.T) {
	for _, kind := range []BackgroundKind{Solid, Gradient, Checker, Noise} {
		img := Background(kind, SmallSize)
		assert.Equal(t, SmallSize.Width, img.Bounds().Dx())
		assert.Equal(t, SmallSize.Height, img.Bounds().Dy())
		assert.Equal(t, uint8(255), img.NRGBAAt(10, 10).A)
	}

	a := Background(Noise, SmallSize)
	b := Background(Noise, SmallSize)
	assert.True(t, CompareImages(a, b, 0))
}

func TestSaveAndLoadImage(t *testing.T) {
	img := Background(Gradient, SmallSize)
	path := filepath.Join(t.TempDir(), "nested", "bg.png")

	SaveImage(t, img, path)
	loaded := LoadImage(t, path)

	assert.True(t, CompareImages(img, loaded, 0.001))
	assert.NotEmpty(t, EncodePNG(t, img))
}

func TestCompareImages(t *testing.T) {
	solid := Background(Solid, SmallSize)
	checker := Background(Checker, SmallSize)

	assert.True(t, CompareImages(solid, solid, 0))
	assert.False(t, CompareImages(solid, checker, 0.01))
	assert.False(t, CompareImages(solid, Background(Solid, MediumSize), 1))
}

func TestStaticSource(t *testing.T) {
	img := Background(Solid, SmallSize)
	src := &StaticSource{Image: img}

	got, err := src.Fetch(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, img, got)

	src.Err = errors.New("boom")
	_, err = src.Fetch(context.Background(), "any")
	assert.EqualError(t, err, "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, "any")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, src.Calls())
}

func TestPayloads(t *testing.T) {
	names := map[string]bool{}
	for _, p := range Payloads() {
		assert.NotEmpty(t, p.Data)
		assert.False(t, names[p.Name], "duplicate fixture %s", p.Name)
		names[p.Name] = true
	}
}
