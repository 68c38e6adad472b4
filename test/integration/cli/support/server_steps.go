package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/provider"
	"github.com/MeKo-Tech/qrimage/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const (
	serverWidth  = 640
	serverHeight = 480
)

// startServer runs the API on an httptest server with offline backgrounds.
func (testCtx *TestContext) startServer(requestsPerMinute, generationsPerDay int) error {
	testCtx.StopServer()

	s, err := server.NewServer(server.Config{
		CORSOrigin:        "*",
		MaxUploadMB:       10,
		TimeoutSec:        30,
		Generator:         generator.DefaultConfig(),
		Provider:          provider.Config{Width: serverWidth, Height: serverHeight, Offline: true},
		RequestsPerMinute: requestsPerMinute,
		GenerationsPerDay: generationsPerDay,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(0, 0)
}

func (testCtx *TestContext) theServerIsRunningWithARequestLimit(limit int) error {
	return testCtx.startServer(limit, 0)
}

func (testCtx *TestContext) theServerIsRunningWithAGenerationLimit(limit int) error {
	return testCtx.startServer(0, limit)
}

// doRequest sends a request to the test server and records the response.
func (testCtx *TestContext) doRequest(method, endpoint, contentType string, body io.Reader) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, testCtx.HTTPServer.URL+endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Origin", "https://example.com")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastHTTPResponse, err = io.ReadAll(resp.Body)
	return err
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.doRequest(http.MethodGet, endpoint, "", nil)
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.doRequest(http.MethodOptions, endpoint, "", nil)
}

func (testCtx *TestContext) iPOSTJSONTo(endpoint string, body *godog.DocString) error {
	return testCtx.doRequest(http.MethodPost, endpoint, "application/json", strings.NewReader(body.Content))
}

// iUploadForValidation posts a scenario image to /validate.
func (testCtx *TestContext) iUploadForValidation(name, data string, quick bool) error {
	f, err := os.Open(testCtx.Path(name)) //nolint:gosec // G304: scenario file
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}
	if data != "" {
		_ = mw.WriteField("data", data)
	}
	if quick {
		_ = mw.WriteField("quick", "true")
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return testCtx.doRequest(http.MethodPost, "/validate", mw.FormDataContentType(), &body)
}

func (testCtx *TestContext) iUploadToValidateWithData(name, data string) error {
	return testCtx.iUploadForValidation(name, data, false)
}

func (testCtx *TestContext) iUploadToValidateQuickly(name string) error {
	return testCtx.iUploadForValidation(name, "", true)
}

// iSaveTheResponseAs writes the last response body to a scenario file.
func (testCtx *TestContext) iSaveTheResponseAs(name string) error {
	return os.WriteFile(testCtx.Path(name), testCtx.LastHTTPResponse, 0o600)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, truncate(testCtx.LastHTTPResponse))
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, expected %q", name, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldNotBeEmpty(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnImage(kind string) error {
	signatures := map[string][]byte{
		"PNG":  {0x89, 'P', 'N', 'G'},
		"JPEG": {0xFF, 0xD8, 0xFF},
	}
	sig := signatures[kind]
	if !bytes.HasPrefix(testCtx.LastHTTPResponse, sig) {
		return fmt.Errorf("response is not a %s image", kind)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, expected string) error {
	var data map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &data); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if got := fmt.Sprint(data[field]); got != expected {
		return fmt.Errorf("response field %s is %q, expected %q", field, got, expected)
	}
	return nil
}

// iRequestAGenerationOverTheWebSocket sends one request on /ws/generate and
// collects messages until a result or error arrives.
func (testCtx *TestContext) iRequestAGenerationOverTheWebSocket(keyword, data string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/generate"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]string{"keyword": keyword, "data": data}); err != nil {
		return err
	}

	testCtx.WSMessages = nil
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read websocket message: %w", err)
		}
		testCtx.WSMessages = append(testCtx.WSMessages, msg)
		if t := msg["type"]; t == "result" || t == "error" {
			return nil
		}
	}
}

func (testCtx *TestContext) iShouldReceiveProgressMessagesAndA(count int, final string) error {
	progress := 0
	for _, msg := range testCtx.WSMessages {
		if msg["type"] == "progress" {
			progress++
		}
	}
	if progress != count {
		return fmt.Errorf("received %d progress messages, expected %d", progress, count)
	}
	if len(testCtx.WSMessages) == 0 {
		return errors.New("no websocket messages received")
	}
	last := testCtx.WSMessages[len(testCtx.WSMessages)-1]
	if last["type"] != final {
		return fmt.Errorf("last message is %v, expected %s", last["type"], final)
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 500
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// RegisterServerSteps registers HTTP and websocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a limit of (\d+) requests? per minute$`, testCtx.theServerIsRunningWithARequestLimit)
	sc.Step(`^the server is running with a limit of (\d+) generations? per day$`, testCtx.theServerIsRunningWithAGenerationLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I POST to "([^"]*)" with JSON:$`, testCtx.iPOSTJSONTo)
	sc.Step(`^I upload "([^"]*)" for validation with data "([^"]*)"$`, testCtx.iUploadToValidateWithData)
	sc.Step(`^I upload "([^"]*)" for quick validation$`, testCtx.iUploadToValidateQuickly)
	sc.Step(`^I save the response as "([^"]*)"$`, testCtx.iSaveTheResponseAs)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should not be empty$`, testCtx.theResponseHeaderShouldNotBeEmpty)
	sc.Step(`^the response should be a (PNG|JPEG) image$`, testCtx.theResponseShouldBeAnImage)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^I request a generation over the websocket for keyword "([^"]*)" and data "([^"]*)"$`,
		testCtx.iRequestAGenerationOverTheWebSocket)
	sc.Step(`^I should receive (\d+) progress messages and an? (result|error)$`, testCtx.iShouldReceiveProgressMessagesAndA)
}
