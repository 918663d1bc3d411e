package archive

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavely/converse/internal/conversation"
)

func TestRecordTurnCreatesConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs("s1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO conversations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE conversations SET").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.RecordTurn(context.Background(), conversation.ArchivedTurn{
		SessionID:  "s1",
		UserID:     "u1",
		Utterance:  "What is my account balance?",
		Response:   "Could you share your account number? It looks like ACC123456.",
		Intent:     "account_inquiry",
		Confidence: 0.95,
		Topic:      "banking",
		NextAction: "parameter_collection",
		Timestamp:  time.Now().UTC(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTurnReusesConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT id FROM conversations").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))
	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE conversations SET").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.RecordTurn(context.Background(), conversation.ArchivedTurn{
		SessionID: "s1",
		UserID:    "u1",
		Utterance: "ACC123456",
		Response:  "Account ACC123456 is in good standing. Anything else I can check for you?",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE conversations SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.EndConversation(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConversation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	started := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "user_id", "status",
		"turn_count", "user_message_count", "assistant_message_count",
		"started_at", "last_turn_at", "ended_at",
	}).AddRow(uuid.New().String(), "s1", "u1", "active", 3, 3, 3, started, started, nil)

	mock.ExpectQuery("SELECT id, session_id, user_id, status").
		WithArgs("s1").
		WillReturnRows(rows)

	rec, err := store.GetConversation(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, 3, rec.TurnCount)
	assert.NotNil(t, rec.LastTurnAt)
	assert.Nil(t, rec.EndedAt)
}

func TestGetConversationMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT id, session_id, user_id, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec, err := store.GetConversation(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetTurns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "utterance", "response", "intent", "confidence",
		"topic", "next_action", "created_at",
	}).
		AddRow(uuid.New().String(), "s1", "hello", "How can I help you today?", "general_inquiry", 0.5, "general", "provide_service", now).
		AddRow(uuid.New().String(), "s1", "book an appointment", "What date works best for you?", "appointment_scheduling", 0.95, "scheduling", "parameter_collection", now)

	mock.ExpectQuery("SELECT id, session_id, utterance").
		WithArgs("s1", 10).
		WillReturnRows(rows)

	turns, err := store.GetTurns(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "general_inquiry", turns[0].Intent)
	assert.Equal(t, "scheduling", turns[1].Topic)
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *PostgresStore

	assert.NoError(t, store.RecordTurn(context.Background(), conversation.ArchivedTurn{SessionID: "s1"}))
	assert.NoError(t, store.EndConversation(context.Background(), "s1"))
	rec, err := store.GetConversation(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}
