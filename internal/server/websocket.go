package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocket message types sent to clients.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

// ExtractRequest is the client message on /ws/extract. Data is base64 in
// JSON.
type ExtractRequest struct {
	Filename string `json:"filename"`
	Template string `json:"template"`
	Data     []byte `json:"data"`
}

// ExtractMessage is a server message on /ws/extract.
type ExtractMessage struct {
	Type     string           `json:"type"`
	Progress int              `json:"progress,omitempty"`
	Result   *pipeline.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Status   int              `json:"status,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.cfg.CORSOrigin == "*" || origin == "" || origin == s.cfg.CORSOrigin
		},
	}
}

// extractWebSocketHandler streams per-page progress for each document a
// client sends, then the result or the error.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	conn.SetReadLimit(s.maxUploadBytes() * 2)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handleExtractMessage(r.Context(), conn, data); err != nil {
			s.logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
		// Pongs are not read while a document is processed.
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
}

// handleExtractMessage processes one request. The returned error is a write
// failure; extraction failures are reported to the client.
func (s *Server) handleExtractMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var req ExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return s.send(conn, ExtractMessage{
			Type: MessageError, Error: fmt.Sprintf("invalid request: %v", err), Status: http.StatusBadRequest,
		})
	}
	if len(req.Data) == 0 {
		return s.send(conn, ExtractMessage{Type: MessageError, Error: "no data provided", Status: http.StatusBadRequest})
	}
	if err := s.checkTemplate(req.Template); err != nil {
		return s.send(conn, ExtractMessage{Type: MessageError, Error: err.Error(), Status: statusFor(err)})
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var writeErr error
	progress := pipeline.NewPercentProgressCallback(func(percent int) {
		if writeErr == nil {
			writeErr = s.send(conn, ExtractMessage{Type: MessageProgress, Progress: percent})
		}
	})
	res, err := s.extractor.Process(ctx, pipeline.Input{Name: req.Filename, Data: req.Data, TemplateID: req.Template},
		pipeline.NewMultiProgressCallback(progress, s.lastExtraction))
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("document", req.Filename).Msg("websocket extraction failed")
		}
		return s.send(conn, ExtractMessage{Type: MessageError, Error: msg, Status: status})
	}
	return s.send(conn, ExtractMessage{Type: MessageResult, Result: res})
}

func (s *Server) send(conn *websocket.Conn, msg ExtractMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}
