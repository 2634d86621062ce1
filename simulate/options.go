package simulate

import (
	"log/slog"
	"time"

	"github.com/sig-0/credsim/metrics"
)

type Option func(s *Service)

// WithLogger specifies the logger for the service and its orchestrator
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithConcurrency specifies the maximum number of simultaneous simulation calls.
// Defaults to 4
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMetrics specifies the metrics manager the service records to
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the clock used to stamp consultations
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
