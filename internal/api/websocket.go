package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/models"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeAck      = "ack"
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope for all WebSocket traffic
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SubscribePayload selects the extraction session to follow
type SubscribePayload struct {
	SessionID string `json:"sessionId"`
}

// WSProgressResponse reports extraction progress for a session
type WSProgressResponse struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
}

// WSCompleteResponse reports a finished extraction
type WSCompleteResponse struct {
	Type    string                 `json:"type"`
	Session *models.ExtractSession `json:"session"`
}

// WSErrorResponse reports a protocol or extraction error
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// wsConn serializes writes; the watcher goroutine and the read loop both
// send on the same connection
type wsConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

// WebSocketHandler pushes extraction progress over a WebSocket connection
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler creates a new progress feed handler
func NewWebSocketHandler(sessionMgr SessionManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and serves the progress protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	conn, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ws := &wsConn{Conn: conn}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected for progress feed")

	wsh.sendMessage(ws, WSMessage{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
	})

	// One watcher goroutine per subscription; closed on unsubscribe or disconnect
	var stopWatch chan struct{}
	defer func() {
		if stopWatch != nil {
			close(stopWatch)
		}
	}()

	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeSubscribe:
			if stopWatch != nil {
				close(stopWatch)
			}
			stopWatch = wsh.handleSubscribe(ws, msg)
		case MsgTypeUnsubscribe:
			if stopWatch != nil {
				close(stopWatch)
				stopWatch = nil
			}
		default:
			wsh.sendError(ws, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// handleSubscribe starts a watcher that pushes progress for one session
func (wsh *WebSocketHandler) handleSubscribe(ws *wsConn, msg WSMessage) chan struct{} {
	var payload SubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid subscribe payload: "+err.Error(), "INVALID_PAYLOAD")
		return nil
	}

	if _, ok := wsh.sessionMgr.GetSession(payload.SessionID); !ok {
		wsh.sendError(ws, "Session not found: "+payload.SessionID, "SESSION_NOT_FOUND")
		return nil
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeAck,
		ID:        payload.SessionID,
		Timestamp: time.Now().UnixMilli(),
	})

	fmt.Printf("[WebSocket] Subscribed to session %s\n", payload.SessionID[:8])

	stop := make(chan struct{})
	go wsh.watchSession(ws, payload.SessionID, stop)
	return stop
}

// watchSession polls the session and pushes progress until it finishes
func (wsh *WebSocketHandler) watchSession(ws *wsConn, sessionID string, stop chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(15 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timeout.C:
			wsh.sendError(ws, "Progress watch timed out", "WATCH_TIMEOUT")
			return
		case <-ticker.C:
			sess, ok := wsh.sessionMgr.GetSession(sessionID)
			if !ok {
				wsh.sendError(ws, "Session not found: "+sessionID, "SESSION_NOT_FOUND")
				return
			}

			wsh.sessionMgr.TouchSession(sessionID)

			switch sess.Status {
			case models.SessionStatusComplete:
				wsh.sendMessage(ws, WSMessage{
					Type:      MsgTypeComplete,
					ID:        sessionID,
					Timestamp: time.Now().UnixMilli(),
					Payload: mustJSON(WSCompleteResponse{
						Type:    MsgTypeComplete,
						Session: sess,
					}),
				})
				return
			case models.SessionStatusError:
				wsh.sendError(ws, sess.Error, "EXTRACT_ERROR")
				return
			default:
				wsh.sendMessage(ws, WSMessage{
					Type:      MsgTypeProgress,
					ID:        sessionID,
					Timestamp: time.Now().UnixMilli(),
					Payload: mustJSON(WSProgressResponse{
						Type:      MsgTypeProgress,
						SessionID: sessionID,
						Status:    string(sess.Status),
						Progress:  sess.Progress,
					}),
				})
			}
		}
	}
}

// Helper methods

func (wsh *WebSocketHandler) sendMessage(ws *wsConn, msg WSMessage) {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (wsh *WebSocketHandler) sendError(ws *wsConn, message, code string) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
