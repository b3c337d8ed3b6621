package http

import (
	"context"
	"net/http"

	"github.com/capvault/capsearch/internal/cfg"
)

// Server — тонкая обертка над http.Server с таймаутами из конфигурации.
type Server struct {
	httpServer *http.Server
}

// NewServer создает HTTP сервер поверх переданного роутера.
func NewServer(handler http.Handler, cfg *cfg.HTTPConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run блокируется до остановки сервера.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Stop мягко завершает обслуживание текущих запросов.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
