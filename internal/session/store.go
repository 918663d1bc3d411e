package session

import (
	"context"
	"errors"
	"time"

	"github.com/wavely/converse/internal/dialogue"
)

// ErrNotFound indicates the session id has no stored state, either
// because it never existed or because its TTL elapsed.
var ErrNotFound = errors.New("session: not found")

// Store persists dialogue state keyed by session id. Entries expire
// after the TTL supplied to Put; single-key atomicity is all the
// orchestrator relies on — turn serialization happens above the store.
type Store interface {
	Get(ctx context.Context, sessionID string) (*dialogue.SessionState, error)
	Put(ctx context.Context, state *dialogue.SessionState, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}
