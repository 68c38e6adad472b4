package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/utils"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/MeKo-Tech/qrimage/internal/version"
)

const (
	maxDimension    = 8000
	maxRequestBytes = 1 << 20
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// generateHandler renders a validated QR image and streams it back.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Keyword == "" {
		s.writeErrorResponse(w, "keyword is required", http.StatusBadRequest)
		return
	}

	gen, format, err := s.generatorFor(req)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.checkGeneration(r); err != nil {
		s.handleRateLimitError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	res, err := gen.Generate(ctx, req.Keyword, req.Data)
	if err != nil {
		generateRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}
	generateRequestsTotal.WithLabelValues("http", "success").Inc()
	generateDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())

	f, _ := output.ParseFormat(format)
	var buf bytes.Buffer
	if err := output.Encode(&buf, res.Image, f, s.jpegQuality); err != nil {
		s.writeErrorResponse(w, "Failed to encode image", http.StatusInternalServerError)
		return
	}

	matched := res.Report.Matched()
	w.Header().Set("Content-Type", output.ContentType(f))
	w.Header().Set("X-QR-Attempts", strconv.Itoa(len(res.Report.Attempts)))
	w.Header().Set("X-QR-Strategy", matched.Strategy)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write image response", "error", err)
	}
}

// validateHandler checks an uploaded image for a QR code carrying the
// expected payload. With quick=true only detection is performed.
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	gen := generator.New(s.generator, nil)
	quick, _ := strconv.ParseBool(r.FormValue("quick"))
	if quick {
		detected := gen.QuickValidate(img)
		s.writeJSON(w, http.StatusOK, ValidateResponse{Success: true, Readable: detected, Quick: true})
		return
	}

	expected := r.FormValue("data")
	if expected == "" {
		s.writeErrorResponse(w, "data field is required unless quick=true", http.StatusBadRequest)
		return
	}

	report, err := gen.Validate(r.Context(), img, expected)
	if err != nil {
		if !errors.Is(err, generator.ErrNotReadable) {
			s.writeErrorResponse(w, err.Error(), statusForError(err))
			return
		}
		resp := ValidateResponse{Success: true, Error: err.Error()}
		var mm *validate.MismatchError
		var ex *validate.ExhaustedError
		switch {
		case errors.As(err, &mm):
			resp.Decoded = mm.Decoded
		case errors.As(err, &ex):
			resp.Attempts = ex.History
		}
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	s.writeJSON(w, http.StatusOK, ValidateResponse{
		Success:  true,
		Readable: true,
		Decoded:  report.Matched().Decoded,
		Attempts: report.Attempts,
	})
}

// statusForError maps a generation failure to an HTTP status code.
func statusForError(err error) int {
	var encErr *embed.EncodeError
	var provErr *provider.Error
	switch {
	case errors.Is(err, generator.ErrNotReadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, embed.ErrEmptyPayload), errors.As(err, &encErr):
		return http.StatusBadRequest
	case errors.Is(err, validate.ErrEmptyImage), errors.Is(err, embed.ErrEmptyBackground):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &provErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// describeError returns a short error category for websocket clients.
func describeError(err error) string {
	switch statusForError(err) {
	case http.StatusUnprocessableEntity:
		return "not_readable"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusBadGateway:
		return "fetch_error"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}
