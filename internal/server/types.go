package server

import (
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SourceFactory builds a background source for the requested dimensions.
type SourceFactory func(width, height int) provider.Source

// Server holds the HTTP server state and dependencies.
type Server struct {
	generator   generator.Config
	sources     SourceFactory
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	jpegQuality int
	defaultW    int
	defaultH    int
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	JPEGQuality int

	Generator generator.Config
	Provider  provider.Config

	// RequestsPerMinute and GenerationsPerDay are per client; zero disables
	// the limit. Both zero disables rate limiting altogether.
	RequestsPerMinute int
	GenerationsPerDay int

	// Sources overrides the provider chain built from Provider.
	Sources SourceFactory
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// GenerateRequest is the body of POST /generate and of each websocket message.
type GenerateRequest struct {
	Keyword   string  `json:"keyword"`
	Data      string  `json:"data"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Position  string  `json:"position,omitempty"`
	SizeRatio float64 `json:"size_ratio,omitempty"`
	Opacity   *int    `json:"opacity,omitempty"`
	Format    string  `json:"format,omitempty"`
}

// ValidateResponse is returned by POST /validate.
type ValidateResponse struct {
	Success  bool               `json:"success"`
	Readable bool               `json:"readable"`
	Quick    bool               `json:"quick,omitempty"`
	Decoded  string             `json:"decoded,omitempty"`
	Attempts []validate.Attempt `json:"attempts,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new server instance.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid max upload size: %d", config.MaxUploadMB)
	}
	if config.TimeoutSec <= 0 {
		return nil, fmt.Errorf("invalid timeout: %d", config.TimeoutSec)
	}

	sources := config.Sources
	if sources == nil {
		base := config.Provider
		sources = func(width, height int) provider.Source {
			pc := base
			pc.Width, pc.Height = width, height
			return provider.New(pc)
		}
	}

	w, h := config.Provider.Width, config.Provider.Height
	if w <= 0 || h <= 0 {
		d := provider.DefaultConfig()
		w, h = d.Width, d.Height
	}

	s := &Server{
		generator:   config.Generator,
		sources:     sources,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		jpegQuality: config.JPEGQuality,
		defaultW:    w,
		defaultH:    h,
	}
	if s.jpegQuality <= 0 {
		s.jpegQuality = output.DefaultJPEGQuality
	}
	if config.RequestsPerMinute > 0 || config.GenerationsPerDay > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute, config.GenerationsPerDay)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(instrument("/health", s.healthHandler)))
	mux.HandleFunc("/generate", s.corsMiddleware(instrument("/generate", s.rateLimitMiddleware(s.generateHandler))))
	mux.HandleFunc("/validate", s.corsMiddleware(instrument("/validate", s.rateLimitMiddleware(s.validateHandler))))
	// The upgrade needs the raw writer, so no status-capturing wrapper here.
	mux.HandleFunc("/ws/generate", s.rateLimitMiddleware(s.wsGenerateHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// generatorFor builds a generator for one request, applying its overrides
// on top of the server defaults.
func (s *Server) generatorFor(req GenerateRequest) (*generator.Generator, string, error) {
	cfg := s.generator
	if req.Position != "" {
		anchor, err := embed.ParseAnchor(req.Position)
		if err != nil {
			return nil, "", err
		}
		cfg.Embed.Anchor = anchor
	}
	if req.SizeRatio != 0 {
		if req.SizeRatio < embed.MinSizeRatio || req.SizeRatio > embed.MaxSizeRatio {
			return nil, "", fmt.Errorf("size_ratio must be between %g and %g", embed.MinSizeRatio, embed.MaxSizeRatio)
		}
		cfg.Embed.SizeRatio = req.SizeRatio
	}
	if req.Opacity != nil {
		if *req.Opacity < 0 || *req.Opacity > 255 {
			return nil, "", fmt.Errorf("opacity must be between 0 and 255")
		}
		cfg.Embed.Opacity = uint8(*req.Opacity)
	}

	width, height := s.defaultW, s.defaultH
	if req.Width != 0 || req.Height != 0 {
		if req.Width <= 0 || req.Height <= 0 || req.Width > maxDimension || req.Height > maxDimension {
			return nil, "", fmt.Errorf("width and height must be between 1 and %d", maxDimension)
		}
		width, height = req.Width, req.Height
	}

	format := req.Format
	if format == "" {
		format = "png"
	}
	if _, err := output.ParseFormat(format); err != nil {
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}

	return generator.New(cfg, s.sources(width, height)), format, nil
}
