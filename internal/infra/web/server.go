package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/infra/api"
	"telegram-virtual-number/internal/usecase"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ops endpoint: liveness, Prometheus metrics and admin top-up
// decisions for operators who are not in Telegram.
type Server struct {
	wallet usecase.WalletUseCase
	store  Pinger
	auth   *AuthManager
	log    *zerolog.Logger

	srv *http.Server
}

func NewServer(wallet usecase.WalletUseCase, store Pinger, auth *AuthManager, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	l := logger.With().Str("component", "ops-http").Logger()
	return &Server{wallet: wallet, store: store, auth: auth, log: &l}
}

// Routes builds the chi router; tests drive it through httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(s.log), api.RequestLog(s.log), api.Timeout(15*time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/topups/{id}/approve", s.handleDecide(true))
		r.Post("/topups/{id}/reject", s.handleDecide(false))
	})
	return r
}

// Start blocks serving on port until ctx is canceled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context, port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", port).Msg("ops http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
