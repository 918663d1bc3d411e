package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/wavely/converse/internal/answer"
	appconfig "github.com/wavely/converse/internal/config"
	"github.com/wavely/converse/internal/conversation"
	"github.com/wavely/converse/internal/session"
	"github.com/wavely/converse/pkg/logging"
)

// BuildSessionStore selects the session backend named by SESSION_STORE.
// Redis and DynamoDB require their client; "memory" always works and is
// the development fallback.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, dynamoClient *dynamodb.Client, logger *logging.Logger) (session.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: session store %q requires a redis client", cfg.SessionStore)
		}
		return session.NewRedisStore(redisClient, nil), nil
	case "dynamodb":
		if dynamoClient == nil {
			return nil, fmt.Errorf("bootstrap: session store %q requires a dynamodb client", cfg.SessionStore)
		}
		return session.NewDynamoStore(dynamoClient, cfg.SessionTable, logger), nil
	case "memory":
		logger.Warn("using in-memory session store; state is lost on restart")
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}

// BuildGenerator wires the downstream answer generator. Without an API
// key the Noop generator is used and unmatched questions get the canned
// fallback reply.
func BuildGenerator(cfg *appconfig.Config, logger *logging.Logger) answer.Generator {
	if cfg == nil || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return answer.Noop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("answer generator enabled", "model", cfg.OpenAIModel)
	return answer.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
}

// BuildTranscriptStore wires Redis-backed transcripts, or nil when no
// Redis client is available (history endpoints then return empty).
func BuildTranscriptStore(cfg *appconfig.Config, redisClient *redis.Client) *conversation.TranscriptStore {
	if cfg == nil || redisClient == nil {
		return nil
	}
	return conversation.NewTranscriptStore(redisClient, cfg.TranscriptMaxMessages, cfg.SessionTTL)
}
