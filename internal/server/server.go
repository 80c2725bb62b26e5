// Пакет server — HTTP-сервер каталога реплеев с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/replaystore/internal/api/handlers"
	"github.com/bigkaa/replaystore/internal/api/middleware"
	"github.com/bigkaa/replaystore/internal/config"
	"github.com/bigkaa/replaystore/internal/domain/model"
)

// Server — HTTP-сервер каталога реплеев.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает маршруты.
// auth — middleware аутентификации для /api/v1 (JWT или StaticActor).
// Health endpoints и /metrics доступны без аутентификации.
func NewRouter(
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	auth func(http.Handler) http.Handler,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware())

	r.Get("/health/live", health.HealthLive)
	r.Get("/health/ready", health.HealthReady)
	r.Get("/metrics", health.GetMetrics)

	adminOnly := middleware.RequireRole(model.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Route("/replays", func(r chi.Router) {
			r.Get("/", api.ListReplays)
			r.Post("/", api.CreateReplay)

			r.Post("/bulk/export", api.BulkExport)
			r.With(adminOnly).Post("/bulk/status", api.BulkStatus)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", api.GetReplay)
				r.Post("/rating/refresh", api.RefreshRating)
				r.With(adminOnly).Post("/reject", api.RejectReplay)
				r.With(adminOnly).Post("/details/refresh", api.RefreshDetails)
			})
		})

		r.With(adminOnly).Post("/maintenance/cleanup", api.RunCleanup)
	})

	return r
}

// New создаёт HTTP-сервер с переданным маршрутизатором.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и блокируется до отмены ctx (в main — по SIGINT/SIGTERM)
// или ошибки listener. После отмены выполняется graceful shutdown
// с ограничением cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
