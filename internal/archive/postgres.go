// Package archive persists conversations and turns to PostgreSQL for
// long-term history, beyond the TTL of the live session store.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wavely/converse/internal/conversation"
)

// PostgresStore implements conversation.Archiver on database/sql. A
// nil store (no database configured) silently skips archival.
type PostgresStore struct {
	db *sql.DB
}

var _ conversation.Archiver = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		return nil
	}
	return &PostgresStore{db: db}
}

// ConversationRecord is one archived conversation.
type ConversationRecord struct {
	ID                    uuid.UUID
	SessionID             string
	UserID                string
	Status                string
	TurnCount             int
	UserMessageCount      int
	AssistantMessageCount int
	StartedAt             time.Time
	LastTurnAt            *time.Time
	EndedAt               *time.Time
}

// TurnRecord is one archived turn.
type TurnRecord struct {
	ID         uuid.UUID
	SessionID  string
	Utterance  string
	Response   string
	Intent     string
	Confidence float64
	Topic      string
	NextAction string
	CreatedAt  time.Time
}

// ensureConversation creates the conversation row if absent and
// returns its id.
func (s *PostgresStore) ensureConversation(ctx context.Context, sessionID, userID string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE session_id = $1`,
		sessionID,
	).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("archive: failed to check existing conversation: %w", err)
	}

	newID := uuid.New()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, session_id, user_id, status,
			turn_count, user_message_count, assistant_message_count,
			started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, newID, sessionID, userID, "active", 0, 0, 0, now, now, now)
	if err != nil {
		// Another worker may have inserted it between the check and
		// the insert; resolve by re-reading.
		if strings.Contains(err.Error(), "duplicate key") {
			return s.ensureConversation(ctx, sessionID, userID)
		}
		return uuid.Nil, fmt.Errorf("archive: failed to create conversation: %w", err)
	}
	return newID, nil
}

// RecordTurn appends the turn and bumps the conversation counters.
func (s *PostgresStore) RecordTurn(ctx context.Context, turn conversation.ArchivedTurn) error {
	if s == nil || s.db == nil {
		return nil
	}

	if _, err := s.ensureConversation(ctx, turn.SessionID, turn.UserID); err != nil {
		return err
	}

	timestamp := turn.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_turns (
			id, session_id, utterance, response, intent, confidence,
			topic, next_action, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), turn.SessionID, turn.Utterance, turn.Response,
		turn.Intent, turn.Confidence, turn.Topic, turn.NextAction, timestamp)
	if err != nil {
		return fmt.Errorf("archive: failed to insert turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET
			turn_count = turn_count + 1,
			user_message_count = user_message_count + 1,
			assistant_message_count = assistant_message_count + 1,
			last_turn_at = $1,
			updated_at = $1
		WHERE session_id = $2
	`, timestamp, turn.SessionID)
	if err != nil {
		return fmt.Errorf("archive: failed to update counters: %w", err)
	}
	return nil
}

// EndConversation marks the conversation ended. Already-ended rows are
// left untouched.
func (s *PostgresStore) EndConversation(ctx context.Context, sessionID string) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			status = 'ended',
			ended_at = $1,
			updated_at = $1
		WHERE session_id = $2 AND ended_at IS NULL
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("archive: failed to end conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves an archived conversation, or nil when the
// session was never archived.
func (s *PostgresStore) GetConversation(ctx context.Context, sessionID string) (*ConversationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var rec ConversationRecord
	var lastTurnAt, endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, status,
			   turn_count, user_message_count, assistant_message_count,
			   started_at, last_turn_at, ended_at
		FROM conversations
		WHERE session_id = $1
	`, sessionID).Scan(
		&rec.ID, &rec.SessionID, &rec.UserID, &rec.Status,
		&rec.TurnCount, &rec.UserMessageCount, &rec.AssistantMessageCount,
		&rec.StartedAt, &lastTurnAt, &endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: failed to get conversation: %w", err)
	}

	if lastTurnAt.Valid {
		rec.LastTurnAt = &lastTurnAt.Time
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}

// GetTurns retrieves archived turns in chronological order.
func (s *PostgresStore) GetTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, session_id, utterance, response, intent, confidence,
			   topic, next_action, created_at
		FROM conversation_turns
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.Utterance, &rec.Response,
			&rec.Intent, &rec.Confidence, &rec.Topic, &rec.NextAction,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("archive: failed to scan turn: %w", err)
		}
		turns = append(turns, rec)
	}
	return turns, rows.Err()
}
