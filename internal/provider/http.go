package provider

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/qrimage/internal/utils"
)

// maxDownloadBytes caps a single image download.
const maxDownloadBytes = 64 << 20

func get(ctx context.Context, client *http.Client, url, userAgent string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, req.URL.Host)
	}
	return resp, nil
}

// download fetches url, decodes the body and resizes it to width x height.
func download(ctx context.Context, client *http.Client, url, userAgent string, width, height int) (image.Image, error) {
	slog.Debug("Downloading image", "url", url)

	resp, err := get(ctx, client, url, userAgent, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("Failed to close response body", "error", cerr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return utils.FitExact(img, width, height)
}
