// Package api implements the HTTP layer for the newsletter backend. Handlers
// are methods on *Server. Each handler file is responsible for one resource
// group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/perchpress/newsletter-backend/internal/db"
	"github.com/perchpress/newsletter-backend/internal/email"
	"github.com/perchpress/newsletter-backend/internal/store"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string
}

// SubscriptionStore is the narrow store interface the handlers use.
// *store.Store is the production implementation; tests inject a stub.
type SubscriptionStore interface {
	StartSubscription(ctx context.Context, p store.StartSubscriptionParams) (db.Subscriber, error)
	ConfirmSubscription(ctx context.Context, token string) (db.Subscriber, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles single-query writes like the deliveries log.
	q db.Querier

	// store handles the atomic multi-step subscription writes.
	store SubscriptionStore

	// mailer sends the confirmation email.
	mailer email.Sender

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	q db.Querier,
	st SubscriptionStore,
	mailer email.Sender,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		q:      q,
		store:  st,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── Subscriptions ─────────────────────────────────────────────────────────
	r.Post("/subscriptions", s.handleSubscribe)
	r.Get("/subscriptions/confirm", s.handleConfirm)

	return r
}
