package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressStages lists the stages reported over the socket, in order.
var progressStages = []generator.Stage{generator.StageFetch, generator.StageEmbed, generator.StageValidate}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is a single message sent to a websocket client.
type WebSocketResponse struct {
	Type       string  `json:"type"`             // "progress", "result", "error"
	RequestID  string  `json:"request_id,omitempty"`
	Stage      string  `json:"stage,omitempty"`
	Status     string  `json:"status,omitempty"` // "started", "completed", "failed"
	Progress   float64 `json:"progress,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`

	Format   string `json:"format,omitempty"`
	Image    string `json:"image,omitempty"` // base64
	Attempts int    `json:"attempts,omitempty"`
	Strategy string `json:"strategy,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// wsGenerateHandler handles WebSocket connections for generation with
// live stage progress.
func (s *Server) wsGenerateHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn, getClientIP(r))
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, clientID string) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, clientID, data)
		}
	}
}

// handleWebSocketMessage runs one generation request and streams its progress.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, clientID string, data []byte) {
	var req GenerateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if req.Keyword == "" {
		s.sendWebSocketError(conn, requestID, "invalid_request", "keyword is required")
		return
	}
	gen, format, err := s.generatorFor(req)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckGeneration(clientID); err != nil {
			s.sendWebSocketError(conn, requestID, "rate_limited", err.Error())
			return
		}
	}

	gen = gen.Observe(func(ev generator.StageEvent) {
		s.sendWebSocketResponse(conn, progressMessage(requestID, ev))
	})

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	res, err := gen.Generate(ctx, req.Keyword, req.Data)
	if err != nil {
		generateRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, describeError(err), err.Error())
		return
	}
	generateRequestsTotal.WithLabelValues("websocket", "success").Inc()
	generateDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())

	f, _ := output.ParseFormat(format)
	var buf bytes.Buffer
	if err := output.Encode(&buf, res.Image, f, s.jpegQuality); err != nil {
		s.sendWebSocketError(conn, requestID, "internal_error", "Failed to encode image")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "result",
		RequestID: requestID,
		Progress:  1.0,
		Format:    format,
		Image:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		Attempts:  len(res.Report.Attempts),
		Strategy:  res.Report.Matched().Strategy,
	})
}

// progressMessage converts a stage event into a progress message. Progress
// counts completed stages out of the reported ones.
func progressMessage(requestID string, ev generator.StageEvent) WebSocketResponse {
	msg := WebSocketResponse{
		Type:      "progress",
		RequestID: requestID,
		Stage:     string(ev.Stage),
		Status:    "started",
	}
	idx := 0
	for i, st := range progressStages {
		if st == ev.Stage {
			idx = i
		}
	}
	msg.Progress = float64(idx) / float64(len(progressStages))
	if ev.Done {
		msg.Status = "completed"
		msg.Progress = float64(idx+1) / float64(len(progressStages))
		msg.DurationMs = ev.Duration.Milliseconds()
		if ev.Err != nil {
			msg.Status = "failed"
		}
	}
	return msg
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		RequestID: requestID,
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
