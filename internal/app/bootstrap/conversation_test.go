package bootstrap

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wavely/converse/internal/answer"
	appconfig "github.com/wavely/converse/internal/config"
	"github.com/wavely/converse/internal/session"
	"github.com/wavely/converse/pkg/logging"
)

func TestBuildSessionStoreMemory(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: "memory"}
	store, err := BuildSessionStore(cfg, nil, nil, logging.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestBuildSessionStoreRedisRequiresClient(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: "redis"}
	if _, err := BuildSessionStore(cfg, nil, nil, logging.Default()); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuildSessionStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &appconfig.Config{SessionStore: "redis"}
	store, err := BuildSessionStore(cfg, client, nil, logging.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*session.RedisStore); !ok {
		t.Fatalf("expected redis store, got %T", store)
	}
}

func TestBuildSessionStoreUnknown(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: "etcd"}
	if _, err := BuildSessionStore(cfg, nil, nil, logging.Default()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildGeneratorDefaultsToNoop(t *testing.T) {
	gen := BuildGenerator(&appconfig.Config{}, logging.Default())
	if _, ok := gen.(answer.Noop); !ok {
		t.Fatalf("expected noop generator, got %T", gen)
	}
}

func TestBuildGeneratorWithAPIKey(t *testing.T) {
	cfg := &appconfig.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}
	gen := BuildGenerator(cfg, logging.Default())
	if _, ok := gen.(answer.Noop); ok {
		t.Fatal("expected OpenAI generator, got noop")
	}
}

func TestBuildTranscriptStoreNilWithoutRedis(t *testing.T) {
	if store := BuildTranscriptStore(&appconfig.Config{}, nil); store != nil {
		t.Fatal("expected nil transcript store without redis")
	}
}
