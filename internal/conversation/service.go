package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound indicates the caller supplied a session id that
// does not exist. Only raised by operations on an explicitly named
// session; ProcessMessage creates missing sessions instead.
var ErrSessionNotFound = errors.New("conversation: session not found")

// MessageRequest is one inbound utterance. SessionID is optional: when
// absent a fresh session is created and its id returned. TopicHint
// narrows intent scoring to the hinted topic plus general-purpose
// intents.
type MessageRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	TopicHint string `json:"topic_hint,omitempty"`
}

// Response is the structured reply for one turn.
type Response struct {
	SessionID           string         `json:"session_id"`
	Response            string         `json:"response"`
	Intent              string         `json:"intent"`
	Confidence          float64        `json:"confidence"`
	Topic               string         `json:"topic"`
	NextAction          string         `json:"next_action"`
	MissingParameters   []string       `json:"missing_parameters,omitempty"`
	ExtractedParameters map[string]any `json:"extracted_parameters,omitempty"`
	SuggestedActions    []string       `json:"suggested_actions,omitempty"`
	Timestamp           time.Time      `json:"timestamp"`
}

// Service is the conversational surface the transports depend on.
type Service interface {
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	History(ctx context.Context, sessionID string) ([]TranscriptMessage, error)
	EndSession(ctx context.Context, sessionID string) error
}

// ArchivedTurn is one completed turn handed to long-term storage.
type ArchivedTurn struct {
	SessionID  string
	UserID     string
	Utterance  string
	Response   string
	Intent     string
	Confidence float64
	Topic      string
	NextAction string
	Timestamp  time.Time
}

// Archiver persists turns for long-term history. Archival is
// best-effort: failures are logged, never surfaced to the caller.
type Archiver interface {
	RecordTurn(ctx context.Context, turn ArchivedTurn) error
	EndConversation(ctx context.Context, sessionID string) error
}
