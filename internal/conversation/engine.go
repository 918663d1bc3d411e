package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wavely/converse/internal/answer"
	"github.com/wavely/converse/internal/dialogue"
	"github.com/wavely/converse/internal/intent"
	"github.com/wavely/converse/internal/observability/metrics"
	"github.com/wavely/converse/internal/session"
	"github.com/wavely/converse/pkg/logging"
)

// noAnswerResponse is the last-resort reply when neither a template
// nor the answer generator produced anything.
const noAnswerResponse = "I'm not sure I have an answer for that. Could you rephrase, or tell me a bit more?"

// Engine orchestrates one turn: load session, score the utterance,
// advance the dialogue state, persist, reply. Turns on the same
// session are serialized through a per-session mutex; sessions run in
// parallel with each other.
type Engine struct {
	provider    *intent.Provider
	dialogue    *dialogue.Engine
	sessions    session.Store
	transcripts *TranscriptStore
	archiver    Archiver
	generator   answer.Generator
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger
	sessionTTL  time.Duration

	locks sync.Map // sessionID -> *sync.Mutex
	now   func() time.Time
}

var _ Service = (*Engine)(nil)

// EngineConfig wires the engine's collaborators. Provider and Sessions
// are required; everything else degrades to a no-op when absent.
type EngineConfig struct {
	Provider    *intent.Provider
	Sessions    session.Store
	Transcripts *TranscriptStore
	Archiver    Archiver
	Generator   answer.Generator
	Metrics     *metrics.ConversationMetrics
	Logger      *logging.Logger
	SessionTTL  time.Duration
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Provider == nil {
		panic("conversation: intent provider cannot be nil")
	}
	if cfg.Sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Generator == nil {
		cfg.Generator = answer.Noop{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Engine{
		provider:    cfg.Provider,
		dialogue:    dialogue.NewEngine(cfg.Logger),
		sessions:    cfg.Sessions,
		transcripts: cfg.Transcripts,
		archiver:    cfg.Archiver,
		generator:   cfg.Generator,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		sessionTTL:  cfg.SessionTTL,
		now:         time.Now,
	}
}

// ProcessMessage runs one turn end to end. A missing or unknown
// session id yields a fresh session; the id in the response is
// authoritative.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	started := e.now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	state, err := e.loadOrCreate(ctx, sessionID, req.UserID)
	if err != nil {
		e.metrics.ObserveTurn("", "error", e.now().Sub(started).Seconds())
		return nil, err
	}

	snapshot := e.provider.Snapshot()
	var corpus *intent.Corpus
	if snapshot != nil {
		corpus = snapshot.Corpus
	}

	match := e.safeScore(req.Message, corpus, req.TopicHint)
	result := e.dialogue.Advance(state, req.Message, match, corpus, e.now().UTC())

	responseText := result.Response
	if result.NeedsAnswer {
		responseText = e.generateAnswer(ctx, req.Message, state.CurrentTopic)
	}
	if responseText == "" {
		responseText = noAnswerResponse
	}

	if err := e.sessions.Put(ctx, state, e.sessionTTL); err != nil {
		e.metrics.ObserveTurn(string(result.NextAction), "error", e.now().Sub(started).Seconds())
		return nil, fmt.Errorf("conversation: persist session %s: %w", sessionID, err)
	}

	now := e.now().UTC()
	resp := &Response{
		SessionID:           sessionID,
		Response:            responseText,
		Intent:              match.IntentID,
		Confidence:          match.Confidence,
		Topic:               state.CurrentTopic,
		NextAction:          string(result.NextAction),
		MissingParameters:   result.MissingParameters,
		ExtractedParameters: match.Parameters,
		SuggestedActions:    match.SuggestedActions,
		Timestamp:           now,
	}

	e.recordTurn(ctx, req, resp, result)

	e.metrics.ObserveIntentMatch(match.IntentID, match.Topic)
	if match.IntentID == intent.FallbackIntentID {
		e.metrics.ObserveFallback()
	}
	if result.SwitchedTopic {
		e.metrics.ObserveTopicSwitch()
	}
	e.metrics.ObserveTurn(string(result.NextAction), "ok", e.now().Sub(started).Seconds())

	return resp, nil
}

// History returns the session transcript. Unknown ids are an error:
// the caller named a session it expects to exist.
func (e *Engine) History(ctx context.Context, sessionID string) ([]TranscriptMessage, error) {
	if _, err := e.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("conversation: load session %s: %w", sessionID, err)
	}
	return e.transcripts.List(ctx, sessionID)
}

// EndSession removes the session state and transcript and closes the
// archived conversation.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	unlock := e.lockSession(sessionID)
	defer unlock()

	if _, err := e.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("conversation: load session %s: %w", sessionID, err)
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("conversation: delete session %s: %w", sessionID, err)
	}
	if err := e.transcripts.Clear(ctx, sessionID); err != nil {
		e.logger.Warn("failed to clear transcript", "session_id", sessionID, "error", err)
	}
	if e.archiver != nil {
		if err := e.archiver.EndConversation(ctx, sessionID); err != nil {
			e.logger.Warn("failed to close archived conversation", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func (e *Engine) lockSession(sessionID string) func() {
	value, _ := e.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) loadOrCreate(ctx context.Context, sessionID, userID string) (*dialogue.SessionState, error) {
	state, err := e.sessions.Get(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, session.ErrNotFound) {
		return dialogue.NewSessionState(sessionID, userID), nil
	}
	return nil, fmt.Errorf("conversation: load session %s: %w", sessionID, err)
}

// safeScore shields the turn from scorer faults: a panic degrades to
// the general-inquiry fallback instead of aborting the request.
func (e *Engine) safeScore(utterance string, c *intent.Corpus, topicHint string) (match intent.Match) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("intent scoring panicked", "panic", fmt.Sprintf("%v", r))
			match = intent.Fallback(c)
		}
	}()
	return intent.Score(utterance, c, topicHint)
}

func (e *Engine) generateAnswer(ctx context.Context, utterance, topic string) string {
	text, err := e.generator.Generate(ctx, utterance, topic)
	if err != nil {
		e.logger.Warn("answer generation failed", "topic", topic, "error", err)
		return ""
	}
	return text
}

// recordTurn writes the transcript lines and the archive row.
// Best-effort on both counts.
func (e *Engine) recordTurn(ctx context.Context, req MessageRequest, resp *Response, result dialogue.Result) {
	if err := e.transcripts.Append(ctx, resp.SessionID,
		TranscriptMessage{Role: "user", Content: req.Message, Timestamp: resp.Timestamp},
		TranscriptMessage{Role: "assistant", Content: resp.Response, Intent: resp.Intent, Timestamp: resp.Timestamp},
	); err != nil {
		e.logger.Warn("failed to append transcript", "session_id", resp.SessionID, "error", err)
	}

	if e.archiver == nil {
		return
	}
	turn := ArchivedTurn{
		SessionID:  resp.SessionID,
		UserID:     req.UserID,
		Utterance:  req.Message,
		Response:   resp.Response,
		Intent:     resp.Intent,
		Confidence: resp.Confidence,
		Topic:      resp.Topic,
		NextAction: resp.NextAction,
		Timestamp:  resp.Timestamp,
	}
	if err := e.archiver.RecordTurn(ctx, turn); err != nil {
		e.logger.Warn("failed to archive turn", "session_id", resp.SessionID, "error", err)
	}
}
