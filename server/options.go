package server

import (
	"log/slog"

	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/server/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithMetrics specifies the metrics manager for the server.
// When set, the metrics are exposed at /metrics
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) {
		s.metrics = m
	}
}
