// Package httpapi exposes the reminder engine over a small local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/notification"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the contact store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the reminder HTTP API.
type Server struct {
	refresher app.Refresher
	publisher notification.Publisher
	db        Pinger
	capacity  int
	logger    *logrus.Entry
	router    chi.Router
	started   time.Time
}

func New(refresher app.Refresher, publisher notification.Publisher, db Pinger, capacity int, logger *logrus.Entry) *Server {
	s := &Server{
		refresher: refresher,
		publisher: publisher,
		db:        db,
		capacity:  capacity,
		logger:    logger,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/refresh", s.handleFullRefresh)
		r.Post("/contacts/{contactID}/refresh", s.handleContactRefresh)
		r.Get("/reservations", s.handleListReservations)
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
