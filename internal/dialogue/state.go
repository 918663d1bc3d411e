package dialogue

import (
	"time"

	"github.com/wavely/converse/internal/intent"
)

// ParameterEvent records one collected parameter value.
type ParameterEvent struct {
	Name      string    `json:"name"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// TopicEvent records one topic switch and what triggered it.
type TopicEvent struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
}

// ConversationMemory accumulates what the dialogue has learned so far.
// Parameter merges are last-write-wins per name; values survive topic
// switches so returning to an earlier topic keeps its progress.
type ConversationMemory struct {
	CollectedParameters map[string]any   `json:"collected_parameters"`
	ParameterHistory    []ParameterEvent `json:"parameter_history,omitempty"`
	ConversationPath    []string         `json:"conversation_path,omitempty"`
	TopicSwitchCount    int              `json:"topic_switch_count"`
	LastIntent          string           `json:"last_intent,omitempty"`
}

// SessionState is the per-session dialogue state. Owned by exactly one
// session, mutated only by the context engine, serialized as JSON into
// the session store.
type SessionState struct {
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id,omitempty"`
	CurrentTopic  string             `json:"current_topic"`
	PreviousTopic string             `json:"previous_topic,omitempty"`
	TopicHistory  []TopicEvent       `json:"topic_history,omitempty"`
	Memory        ConversationMemory `json:"memory"`
	LastActivity  time.Time          `json:"last_activity"`
}

// NewSessionState creates a fresh session starting in the general topic.
func NewSessionState(sessionID, userID string) *SessionState {
	return &SessionState{
		SessionID:    sessionID,
		UserID:       userID,
		CurrentTopic: intent.GeneralTopic,
		Memory: ConversationMemory{
			CollectedParameters: make(map[string]any),
		},
	}
}

// Clone deep-copies the state. Used by callers that need to compare
// pre- and post-turn states.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.TopicHistory = append([]TopicEvent(nil), s.TopicHistory...)
	out.Memory.ParameterHistory = append([]ParameterEvent(nil), s.Memory.ParameterHistory...)
	out.Memory.ConversationPath = append([]string(nil), s.Memory.ConversationPath...)
	out.Memory.CollectedParameters = make(map[string]any, len(s.Memory.CollectedParameters))
	for k, v := range s.Memory.CollectedParameters {
		out.Memory.CollectedParameters[k] = v
	}
	return &out
}
