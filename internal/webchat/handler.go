// Package webchat exposes the conversation service to browser widgets
// over WebSocket, with plain HTTP fallbacks.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wavely/converse/internal/conversation"
	"github.com/wavely/converse/pkg/logging"
)

// Handler manages web chat connections and messages.
type Handler struct {
	service conversation.Service
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type             string           `json:"type"` // "message", "session", "history", "pong", "error"
	Text             string           `json:"text,omitempty"`
	Role             string           `json:"role,omitempty"`
	Intent           string           `json:"intent,omitempty"`
	Topic            string           `json:"topic,omitempty"`
	NextAction       string           `json:"next_action,omitempty"`
	SuggestedActions []string         `json:"suggested_actions,omitempty"`
	SessionID        string           `json:"session_id,omitempty"`
	Timestamp        string           `json:"timestamp,omitempty"`
	Messages         []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified transcript line for the widget.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func NewHandler(service conversation.Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and relays turns in real time.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	userID := r.URL.Query().Get("user")

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})

	if history, err := h.service.History(r.Context(), sessionID); err == nil && len(history) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: toHistory(history)})
	}

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if msg.UserID == "" {
			msg.UserID = userID
		}

		h.relayTurn(r.Context(), conn, sessionID, msg)
	}
}

func (h *Handler) relayTurn(ctx context.Context, conn *websocket.Conn, sessionID string, msg InboundMessage) {
	resp, err := h.service.ProcessMessage(ctx, conversation.MessageRequest{
		UserID:    msg.UserID,
		SessionID: sessionID,
		Message:   msg.Text,
	})
	if err != nil {
		h.logger.Error("webchat: failed to process message", "session_id", sessionID, "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:             "message",
		Role:             "assistant",
		Text:             resp.Response,
		Intent:           resp.Intent,
		Topic:            resp.Topic,
		NextAction:       resp.NextAction,
		SuggestedActions: resp.SuggestedActions,
		SessionID:        resp.SessionID,
		Timestamp:        resp.Timestamp.Format(time.RFC3339),
	})
}

// HandleMessage is the HTTP fallback for widgets without WebSocket.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	resp, err := h.service.ProcessMessage(r.Context(), conversation.MessageRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Text,
	})
	if err != nil {
		h.logger.Error("webchat: failed to process message", "session_id", req.SessionID, "error", err)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleHistory returns the transcript for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	history, err := h.service.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: failed to load history", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": toHistory(history)})
}

func toHistory(msgs []conversation.TranscriptMessage) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Content,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	return history
}
