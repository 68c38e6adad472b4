package provider

import (
	"context"
	"image"
	"net/http"
	"net/url"
)

// RandomURL is the public keyword-matched random image endpoint.
const RandomURL = "https://source.unsplash.com/random"

// RandomConfig configures the keyless random-image source.
type RandomConfig struct {
	BaseURL   string
	Width     int
	Height    int
	UserAgent string
}

// Random downloads a random image for a keyword without an API key.
type Random struct {
	cfg    RandomConfig
	client *http.Client
}

// NewRandom creates the source. A nil client gets the default timeout.
func NewRandom(cfg RandomConfig, client *http.Client) *Random {
	if cfg.BaseURL == "" {
		cfg.BaseURL = RandomURL
	}
	if client == nil {
		client = newHTTPClient(DefaultTimeout)
	}
	return &Random{cfg: cfg, client: client}
}

func (r *Random) Name() string { return "random" }

// URL returns the request URL for keyword, query-escaped so spaces become '+'.
func (r *Random) URL(keyword string) string {
	return r.cfg.BaseURL + "/?" + url.QueryEscape(keyword)
}

func (r *Random) Fetch(ctx context.Context, keyword string) (image.Image, error) {
	img, err := download(ctx, r.client, r.URL(keyword), r.cfg.UserAgent, r.cfg.Width, r.cfg.Height)
	if err != nil {
		return nil, &Error{Source: r.Name(), Err: err}
	}
	return img, nil
}
