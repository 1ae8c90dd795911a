// Package server hosts the daemon's HTTP surfaces: the WebSocket relay
// endpoint and the admin/ops engine.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kofany/nexus-sub000/internal/bridge"
	"github.com/kofany/nexus-sub000/internal/config"
)

type Server struct {
	cfg    config.Config
	bridge *bridge.Bridge
	log    zerolog.Logger

	admin *http.Server
	ws    *http.Server
}

func New(cfg config.Config, b *bridge.Bridge, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, bridge: b, log: logger}
}

// Start binds the configured HTTP listeners and serves them in the
// background. An empty address disables that surface.
func (s *Server) Start() error {
	if addr := s.cfg.Relay.WSAddr; addr != "" {
		s.ws = &http.Server{
			Addr:              addr,
			Handler:           s.wsEngine(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go s.serve("websocket", s.ws)
	}
	if addr := s.cfg.Admin.Addr; addr != "" {
		s.admin = &http.Server{
			Addr:              addr,
			Handler:           s.adminEngine(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go s.serve("admin", s.admin)
	}
	return nil
}

func (s *Server) serve(name string, srv *http.Server) {
	s.log.Info().Str("surface", name).Str("addr", srv.Addr).Msg("http surface started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Str("surface", name).Msg("http surface failed")
	}
}

// Shutdown drains both HTTP surfaces.
func (s *Server) Shutdown(ctx context.Context) error {
	var first error
	for _, srv := range []*http.Server{s.ws, s.admin} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
