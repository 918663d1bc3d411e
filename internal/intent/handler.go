package intent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wavely/converse/internal/observability/metrics"
	"github.com/wavely/converse/pkg/logging"
)

// AdminHandler exposes corpus inspection and reload over HTTP.
type AdminHandler struct {
	provider *Provider
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
}

// NewAdminHandler creates the corpus admin handler. Metrics may be nil.
func NewAdminHandler(provider *Provider, m *metrics.ConversationMetrics, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{provider: provider, metrics: m, logger: logger}
}

type corpusStatus struct {
	Version  uint64    `json:"version"`
	Intents  int       `json:"intents"`
	Topics   int       `json:"topics"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Status handles GET /admin/corpus.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.provider.Snapshot()
	h.writeJSON(w, http.StatusOK, corpusStatus{
		Version:  snap.Version,
		Intents:  len(snap.Corpus.Intents()),
		Topics:   len(snap.Corpus.Topics()),
		LoadedAt: snap.LoadedAt,
	})
}

// Reload handles POST /admin/corpus/reload. A failed reload keeps the
// previous corpus serving and reports 502.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.provider.Reload(r.Context())
	if err != nil {
		h.metrics.ObserveCorpusReload("error")
		h.logger.Error("corpus reload failed", "error", err)
		http.Error(w, "Corpus reload failed; previous version still active", http.StatusBadGateway)
		return
	}
	h.metrics.ObserveCorpusReload("ok")
	h.writeJSON(w, http.StatusOK, corpusStatus{
		Version:  snap.Version,
		Intents:  len(snap.Corpus.Intents()),
		Topics:   len(snap.Corpus.Topics()),
		LoadedAt: snap.LoadedAt,
	})
}

func (h *AdminHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
