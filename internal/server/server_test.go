package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 640
	testHeight = 480
)

// newTestServer builds a server whose backgrounds come from the placeholder
// source, so no network is touched.
func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()

	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  30,
		Generator:   generator.DefaultConfig(),
		Provider:    provider.Config{Width: testWidth, Height: testHeight},
		Sources: func(width, height int) provider.Source {
			return provider.NewPlaceholder(width, height)
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// failingSources makes every fetch fail.
func failingSources(width, height int) provider.Source {
	return &testutil.StaticSource{Err: &provider.Error{Source: "static", Err: errors.New("unreachable")}}
}

// composite renders a validated composite for payload.
func composite(t *testing.T, payload string) image.Image {
	t.Helper()

	gen := generator.New(generator.DefaultConfig(), provider.NewPlaceholder(testWidth, testHeight))
	res, err := gen.Generate(context.Background(), "test", payload)
	require.NoError(t, err)
	return res.Image
}

// multipartBody builds a validate request body.
func multipartBody(t *testing.T, img image.Image, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		fw, err := mw.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(testutil.EncodePNG(t, img))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func doRequest(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}
