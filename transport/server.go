package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP front of the hub.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(log *slog.Logger, addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// the normal outcome of Shutdown and is not reported as a failure.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and drains in-flight requests
// until ctx expires. Hijacked WebSockets are not tracked by the HTTP
// server; they end when the peer disconnects or the process exits, which
// in cmd/server follows immediately after Shutdown returns.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
