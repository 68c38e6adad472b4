package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/qrimage/internal/testutil"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// aBackgroundImage writes a synthetic background of the given kind.
func (testCtx *TestContext) aBackgroundImage(kind, name string, width, height int) error {
	kinds := map[string]testutil.BackgroundKind{
		"plain":    testutil.Solid,
		"gradient": testutil.Gradient,
		"checker":  testutil.Checker,
		"noisy":    testutil.Noise,
	}
	k, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("unknown background kind %q", kind)
	}
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	img := testutil.Background(k, testutil.ImageSize{Width: width, Height: height})
	return imaging.Save(img, path)
}

// theImageShouldBe checks the dimensions of a scenario image.
func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d", name, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// theImageShouldContainAQRCodeFor decodes a scenario image and compares the payload.
func (testCtx *TestContext) theImageShouldContainAQRCodeFor(name, payload string) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if _, err := validate.New(validate.DefaultMaxAttempts).Validate(img, payload); err != nil {
		return fmt.Errorf("image %s: %w", name, err)
	}
	return nil
}

// RegisterImageSteps registers image fixture and inspection steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a (plain|gradient|checker|noisy) background image "([^"]*)" of (\d+)x(\d+)$`, testCtx.aBackgroundImage)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
	sc.Step(`^the image "([^"]*)" should contain a QR code for "([^"]*)"$`, testCtx.theImageShouldContainAQRCodeFor)
}
