package webchat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wavely/converse/internal/conversation"
	"github.com/wavely/converse/internal/intent"
	"github.com/wavely/converse/internal/session"
	"github.com/wavely/converse/pkg/logging"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	engine := conversation.NewEngine(conversation.EngineConfig{
		Provider: intent.NewProvider("", logging.Default()),
		Sessions: session.NewMemoryStore(),
		Logger:   logging.Default(),
	})
	return NewHandler(engine, logging.Default())
}

func TestHandleMessageFallback(t *testing.T) {
	h := newTestHandler(t)

	body := []byte(`{"user_id":"u1","text":"What is my account balance?"}`)
	req := httptest.NewRequest(http.MethodPost, "/webchat/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp conversation.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" || resp.Response == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}
}

func TestHandleMessageRequiresText(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webchat/message", bytes.NewReader([]byte(`{"user_id":"u1"}`)))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHistoryUnknownSession(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/webchat/history?session=missing", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHistoryRequiresSession(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/webchat/history", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
