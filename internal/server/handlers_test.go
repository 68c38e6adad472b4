package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrimage/internal/embed"
	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/testutil"
	"github.com/MeKo-Tech/qrimage/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: "GET", expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: "POST", expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: "PUT", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestNewServer_InvalidConfig(t *testing.T) {
	_, err := NewServer(Config{MaxUploadMB: 0, TimeoutSec: 10})
	assert.Error(t, err)

	_, err = NewServer(Config{MaxUploadMB: 1, TimeoutSec: 0})
	assert.Error(t, err)
}

func TestServer_GenerateHandler_PNG(t *testing.T) {
	mux := newTestMux(newTestServer(t))

	body := `{"keyword":"sunset","data":"https://example.com"}`
	w := doRequest(mux, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-QR-Attempts"))
	assert.Equal(t, "original", w.Header().Get("X-QR-Strategy"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, testWidth, testHeight), img.Bounds())

	report, err := validate.New(3).Validate(img, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", report.Matched().Decoded)
}

func TestServer_GenerateHandler_Overrides(t *testing.T) {
	mux := newTestMux(newTestServer(t))

	body := `{"keyword":"forest","data":"hello","width":800,"height":600,"position":"top-left","size_ratio":0.4,"opacity":255,"format":"jpeg"}`
	w := doRequest(mux, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	img, err := jpeg.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())

	// Tile 240 at (30,30) has a 12px frame; (35,150) sits inside it.
	r, g, b, _ := img.At(35, 150).RGBA()
	assert.InDelta(t, 200, float64(r>>8), 12)
	assert.InDelta(t, 200, float64(g>>8), 12)
	assert.InDelta(t, 200, float64(b>>8), 12)
}

func TestServer_GenerateHandler_BadRequests(t *testing.T) {
	mux := newTestMux(newTestServer(t))

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing keyword", http.MethodPost, `{"data":"x"}`, http.StatusBadRequest},
		{"empty data", http.MethodPost, `{"keyword":"k","data":""}`, http.StatusBadRequest},
		{"bad position", http.MethodPost, `{"keyword":"k","data":"x","position":"middle"}`, http.StatusBadRequest},
		{"ratio too big", http.MethodPost, `{"keyword":"k","data":"x","size_ratio":0.9}`, http.StatusBadRequest},
		{"opacity too big", http.MethodPost, `{"keyword":"k","data":"x","opacity":300}`, http.StatusBadRequest},
		{"half dimensions", http.MethodPost, `{"keyword":"k","data":"x","width":100}`, http.StatusBadRequest},
		{"bad format", http.MethodPost, `{"keyword":"k","data":"x","format":"svg"}`, http.StatusBadRequest},
		{"payload too long", http.MethodPost, fmt.Sprintf(`{"keyword":"k","data":%q}`, strings.Repeat("x", 5000)), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(mux, httptest.NewRequest(tt.method, "/generate", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusBadRequest {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestServer_GenerateHandler_FetchFailure(t *testing.T) {
	mux := newTestMux(newTestServer(t, func(c *Config) { c.Sources = failingSources }))

	body := `{"keyword":"sunset","data":"x"}`
	w := doRequest(mux, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestServer_ValidateHandler(t *testing.T) {
	mux := newTestMux(newTestServer(t))
	img := composite(t, "https://example.com/validate")

	t.Run("matching payload", func(t *testing.T) {
		body, ct := multipartBody(t, img, map[string]string{"data": "https://example.com/validate"})
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		w := doRequest(mux, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Readable)
		assert.Equal(t, "https://example.com/validate", resp.Decoded)
		require.NotEmpty(t, resp.Attempts)
		assert.Equal(t, "matched", resp.Attempts[len(resp.Attempts)-1].Result)
	})

	t.Run("mismatching payload", func(t *testing.T) {
		body, ct := multipartBody(t, img, map[string]string{"data": "something else"})
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		w := doRequest(mux, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Readable)
		assert.Equal(t, "https://example.com/validate", resp.Decoded)
		assert.Contains(t, resp.Error, "QR code not readable")
	})

	t.Run("no symbol", func(t *testing.T) {
		blank := testutil.Background(testutil.Solid, testutil.SmallSize)
		body, ct := multipartBody(t, blank, map[string]string{"data": "x"})
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		w := doRequest(mux, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Readable)
		assert.Len(t, resp.Attempts, validate.DefaultMaxAttempts)
	})

	t.Run("quick", func(t *testing.T) {
		body, ct := multipartBody(t, img, map[string]string{"quick": "true"})
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		w := doRequest(mux, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Quick)
		assert.True(t, resp.Readable)
	})

	t.Run("missing data", func(t *testing.T) {
		body, ct := multipartBody(t, img, nil)
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		assert.Equal(t, http.StatusBadRequest, doRequest(mux, req).Code)
	})

	t.Run("missing image", func(t *testing.T) {
		body, ct := multipartBody(t, nil, map[string]string{"data": "x"})
		req := httptest.NewRequest(http.MethodPost, "/validate", body)
		req.Header.Set("Content-Type", ct)

		assert.Equal(t, http.StatusBadRequest, doRequest(mux, req).Code)
	})

	t.Run("not an image", func(t *testing.T) {
		var body bytes.Buffer
		body.WriteString("--b\r\nContent-Disposition: form-data; name=\"image\"; filename=\"x.png\"\r\n\r\nnot a png\r\n--b--\r\n")
		req := httptest.NewRequest(http.MethodPost, "/validate", &body)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=b")

		assert.Equal(t, http.StatusBadRequest, doRequest(mux, req).Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, doRequest(mux, httptest.NewRequest(http.MethodGet, "/validate", nil)).Code)
	})
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not readable", fmt.Errorf("%w: %w", generator.ErrNotReadable, &validate.ExhaustedError{Attempts: 3}), http.StatusUnprocessableEntity},
		{"empty payload", fmt.Errorf("embed QR code: %w", &embed.EncodeError{Err: embed.ErrEmptyPayload}), http.StatusBadRequest},
		{"empty background", &embed.CompositingError{Operation: "embed", Err: embed.ErrEmptyBackground}, http.StatusBadRequest},
		{"provider", fmt.Errorf("fetch background: %w", errors.Join(&provider.Error{Source: "unsplash", Err: errors.New("x")})), http.StatusBadGateway},
		{"deadline", fmt.Errorf("fetch background: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	mux := newTestMux(newTestServer(t, func(c *Config) { c.CORSOrigin = "https://app.example" }))

	w := doRequest(mux, httptest.NewRequest(http.MethodOptions, "/generate", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestServer_Metrics(t *testing.T) {
	mux := newTestMux(newTestServer(t))
	doRequest(mux, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := doRequest(mux, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("qrimage_http_requests_total")))
}
