// Package router assembles the HTTP surface: conversation API, corpus
// admin, webchat, health, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wavely/converse/internal/conversation"
	httpmiddleware "github.com/wavely/converse/internal/http/middleware"
	"github.com/wavely/converse/internal/intent"
	"github.com/wavely/converse/internal/webchat"
	"github.com/wavely/converse/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	CorpusAdmin         *intent.AdminHandler
	WebchatHandler      *webchat.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConversationHandler != nil {
		r.Route("/api/conversation", func(api chi.Router) {
			api.Post("/message", cfg.ConversationHandler.Message)
			api.Get("/{sessionID}/history", cfg.ConversationHandler.History)
			api.Delete("/{sessionID}", cfg.ConversationHandler.End)
		})
	}

	if cfg.CorpusAdmin != nil {
		r.Route("/admin/corpus", func(admin chi.Router) {
			admin.Get("/", cfg.CorpusAdmin.Status)
			admin.Post("/reload", cfg.CorpusAdmin.Reload)
		})
	}

	if cfg.WebchatHandler != nil {
		r.Route("/webchat", func(wc chi.Router) {
			wc.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
			wc.Post("/message", cfg.WebchatHandler.HandleMessage)
			wc.Get("/history", cfg.WebchatHandler.HandleHistory)
		})
	}

	return r
}
