package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gallery-dl-web/internal/infra/metrics"
)

// MetricsServer serves the prometheus scrape endpoint on the admin port,
// separate from the session-scoped API.
type MetricsServer struct {
	srv *http.Server
	log zerolog.Logger
}

func NewMetricsServer(port int, logger *zerolog.Logger) *MetricsServer {
	metrics.Register()

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
		log: logger.With().Str("component", "metrics_server").Logger(),
	}
}

func (m *MetricsServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		m.srv.SetKeepAlivesEnabled(false)
		_ = m.srv.Shutdown(shutdownCtx)
		m.log.Info().Msg("metrics server terminated")
	}()

	m.log.Info().Str("addr", m.srv.Addr).Msg("serving metrics")
	if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
