package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/wavely/converse/pkg/logging"
)

// ErrCorpusUnavailable indicates the configuration source failed and no
// previously loaded corpus exists to fall back to.
var ErrCorpusUnavailable = errors.New("intent: corpus unavailable")

// Snapshot is one immutable published version of the corpus. In-flight
// scoring keeps the snapshot it started with; reloads swap the pointer.
type Snapshot struct {
	Corpus   *Corpus
	Version  uint64
	LoadedAt time.Time
}

// Provider is the injected, versioned configuration handle. Reload
// builds a whole new corpus and publishes it atomically; it never
// mutates a served snapshot in place.
type Provider struct {
	path    string
	logger  *logging.Logger
	version atomic.Uint64
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a provider seeded with the compiled-in default
// corpus. When path is non-empty the file is loaded immediately; a
// failed initial load logs a warning and keeps the defaults so the
// service still answers every utterance.
func NewProvider(path string, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Provider{path: path, logger: logger}
	p.publish(DefaultCorpus())

	if path != "" {
		if _, err := p.Reload(context.Background()); err != nil {
			logger.Warn("intent corpus load failed, serving built-in defaults",
				"path", path, "error", err)
		}
	}
	return p
}

// Snapshot returns the currently published corpus version.
func (p *Provider) Snapshot() *Snapshot {
	snap := p.current.Load()
	if snap == nil {
		// Only reachable if the provider was constructed without NewProvider.
		return &Snapshot{Corpus: DefaultCorpus(), LoadedAt: time.Now().UTC()}
	}
	return snap
}

// AllIntents returns the intent catalogue of the current snapshot.
func (p *Provider) AllIntents() []IntentDefinition {
	return p.Snapshot().Corpus.Intents()
}

// AllTopics returns the derived topics of the current snapshot.
func (p *Provider) AllTopics() []TopicDefinition {
	return p.Snapshot().Corpus.Topics()
}

// Reload re-reads the corpus file, rebuilds intents, topics, and the
// IDF table, and publishes them as one new snapshot. On failure the
// last good snapshot keeps serving and the error is returned.
func (p *Provider) Reload(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.path == "" {
		return p.publish(DefaultCorpus()), nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCorpusUnavailable, p.path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorpusUnavailable, p.path, err)
	}

	corpus, err := Build(file.Intents, file.Topics)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)
	}

	snap := p.publish(corpus)
	p.logger.Info("intent corpus reloaded",
		"version", snap.Version,
		"intents", len(corpus.Intents()),
		"topics", len(corpus.Topics()),
	)
	return snap, nil
}

func (p *Provider) publish(corpus *Corpus) *Snapshot {
	snap := &Snapshot{
		Corpus:   corpus,
		Version:  p.version.Add(1),
		LoadedAt: time.Now().UTC(),
	}
	p.current.Store(snap)
	return snap
}
