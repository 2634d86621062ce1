package upstream

import (
	"log/slog"
	"time"
)

type Option func(c *Client)

// WithLogger specifies the logger for the client
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout specifies the per-call timeout.
// Defaults to 30s
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		if t > 0 {
			c.timeout = t
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// This should only be enabled for sandbox upstreams with broken certificates
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecureSkipVerify = skip
	}
}
