package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gallery-dl-web/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the download manager over HTTP: a JSON API plus a
// server-sent-events stream of job updates. Every request is scoped to a
// session resolved by the session middleware.
type Server struct {
	sessions *usecase.SessionUseCase
	srv      *http.Server
	log      zerolog.Logger
}

func NewServer(port int, sessions *usecase.SessionUseCase, logger *zerolog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		log:      logger.With().Str("component", "web").Logger(),
	}
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.sessionMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/downloads", s.handleSubmit)
		r.Get("/downloads", s.handleList)
		r.Delete("/downloads", s.handleClear)
		r.Get("/downloads/{id}", s.handleGet)
		r.Post("/downloads/{id}/cancel", s.handleCancel)
		r.Delete("/downloads/{id}", s.handleDelete)
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		s.log.Info().Msg("http server terminated")
	}()

	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
