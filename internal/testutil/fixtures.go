package testutil

import (
	"context"
	"image"
	"strings"
	"sync/atomic"
)

// PayloadFixture is a named QR payload used across round-trip tests.
type PayloadFixture struct {
	Name string
	Data string
}

// Payloads returns payloads covering the shapes users typically encode.
func Payloads() []PayloadFixture {
	return []PayloadFixture{
		{Name: "url", Data: "https://example.com"},
		{Name: "url with query", Data: "https://example.com/path?utm_source=poster&id=42"},
		{Name: "plain text", Data: "Hello, World!"},
		{Name: "unicode", Data: "Grüße aus München ☕"},
		{Name: "wifi", Data: "WIFI:T:WPA;S:guest;P:correct horse battery staple;;"},
		{Name: "long text", Data: strings.Repeat("qrimage ", 40)},
	}
}

// StaticSource is a background source returning a fixed image or error. It
// counts calls to Fetch.
type StaticSource struct {
	Image image.Image
	Err   error

	calls atomic.Int64
}

// Name identifies the source in logs.
func (s *StaticSource) Name() string { return "static" }

// Fetch returns the configured image or error.
func (s *StaticSource) Fetch(ctx context.Context, _ string) (image.Image, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Image, nil
}

// Calls reports how often Fetch ran.
func (s *StaticSource) Calls() int { return int(s.calls.Load()) }
