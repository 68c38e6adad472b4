package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/url"
)

// UnsplashAPIURL is the random-photo endpoint of the Unsplash API.
const UnsplashAPIURL = "https://api.unsplash.com/photos/random"

// UnsplashConfig configures the Unsplash source.
type UnsplashConfig struct {
	APIKey    string
	APIURL    string
	Width     int
	Height    int
	UserAgent string
}

// Unsplash fetches a random landscape photo matching the keyword.
type Unsplash struct {
	cfg    UnsplashConfig
	client *http.Client
}

type unsplashPhoto struct {
	Description *string `json:"description"`
	URLs        struct {
		Raw     string `json:"raw"`
		Regular string `json:"regular"`
	} `json:"urls"`
}

// NewUnsplash creates the source. A nil client gets the default timeout.
func NewUnsplash(cfg UnsplashConfig, client *http.Client) *Unsplash {
	if cfg.APIURL == "" {
		cfg.APIURL = UnsplashAPIURL
	}
	if client == nil {
		client = newHTTPClient(DefaultTimeout)
	}
	return &Unsplash{cfg: cfg, client: client}
}

func (u *Unsplash) Name() string { return "unsplash" }

// Fetch queries the API for a photo and downloads it cropped to the target size.
func (u *Unsplash) Fetch(ctx context.Context, keyword string) (image.Image, error) {
	if u.cfg.APIKey == "" {
		return nil, &Error{Source: u.Name(), Err: ErrNoAPIKey}
	}

	endpoint, err := url.Parse(u.cfg.APIURL)
	if err != nil {
		return nil, &Error{Source: u.Name(), Err: err}
	}
	q := endpoint.Query()
	q.Set("query", keyword)
	q.Set("orientation", "landscape")
	q.Set("content_filter", "high")
	endpoint.RawQuery = q.Encode()

	slog.Debug("Requesting photo from Unsplash", "keyword", keyword)
	header := http.Header{}
	header.Set("Authorization", "Client-ID "+u.cfg.APIKey)
	header.Set("Accept-Version", "v1")

	resp, err := get(ctx, u.client, endpoint.String(), u.cfg.UserAgent, header)
	if err != nil {
		return nil, &Error{Source: u.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var photo unsplashPhoto
	if err := json.NewDecoder(resp.Body).Decode(&photo); err != nil {
		return nil, &Error{Source: u.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if photo.URLs.Raw == "" {
		return nil, &Error{Source: u.Name(), Err: fmt.Errorf("response has no raw image URL")}
	}
	if photo.Description != nil {
		slog.Debug("Unsplash photo selected", "description", *photo.Description)
	}

	imageURL := fmt.Sprintf("%s&w=%d&h=%d&fit=crop", photo.URLs.Raw, u.cfg.Width, u.cfg.Height)
	img, err := download(ctx, u.client, imageURL, u.cfg.UserAgent, u.cfg.Width, u.cfg.Height)
	if err != nil {
		return nil, &Error{Source: u.Name(), Err: err}
	}
	return img, nil
}
