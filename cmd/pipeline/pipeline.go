// Package pipeline assembles the consultation service from the configuration
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sig-0/credsim/cache"
	"github.com/sig-0/credsim/cache/redis"
	"github.com/sig-0/credsim/identifier"
	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/server/config"
	"github.com/sig-0/credsim/simulate"
	"github.com/sig-0/credsim/storage"
	"github.com/sig-0/credsim/upstream"
)

const (
	cachePrefix = "credsim:"
	pingTimeout = 5 * time.Second
)

// Build creates the consultation service on top of the given store.
// The returned cleanup function releases the service resources and is never nil
func Build(
	ctx context.Context,
	cfg *config.Config,
	store storage.Storage,
	logger *slog.Logger,
	m *metrics.Manager,
) (*simulate.Service, func(), error) {
	var (
		upstreamCfg   = cfg.Upstream
		simulationCfg = cfg.Simulation
		cleanup       = func() {}
	)

	if upstreamCfg == nil {
		upstreamCfg = config.DefaultUpstreamConfig()
	}

	if simulationCfg == nil {
		simulationCfg = config.DefaultSimulationConfig()
	}

	if upstreamCfg.InsecureSkipVerify {
		logger.Warn("upstream TLS verification is disabled")
	}

	client := upstream.NewClient(
		upstreamCfg.BaseURL,
		upstream.WithLogger(logger),
		upstream.WithTimeout(time.Duration(upstreamCfg.TimeoutSeconds)*time.Second),
		upstream.WithInsecureSkipVerify(upstreamCfg.InsecureSkipVerify),
	)

	var discoverer upstream.Discoverer = client

	// Set up the discovery cache, if any
	if c := cfg.Cache; c != nil && c.DiscoveryTTLSeconds > 0 {
		var (
			backend cache.Cache
			ttl     = time.Duration(c.DiscoveryTTLSeconds) * time.Second
		)

		switch c.RedisAddress {
		case "":
			backend = cache.NewMemory()

			logger.Info(
				"in-process discovery cache enabled",
				"ttl_seconds", c.DiscoveryTTLSeconds,
			)
		default:
			rc := redis.New(c.RedisAddress, cachePrefix)

			pingCtx, cancelFn := context.WithTimeout(ctx, pingTimeout)
			defer cancelFn()

			if err := rc.Ping(pingCtx); err != nil {
				_ = rc.Close()

				return nil, cleanup, fmt.Errorf("unable to reach redis: %w", err)
			}

			logger.Info(
				"redis discovery cache enabled",
				"address", c.RedisAddress,
				"ttl_seconds", c.DiscoveryTTLSeconds,
			)

			backend = rc

			cleanup = func() {
				if err := rc.Close(); err != nil {
					logger.Error(
						"unable to gracefully close redis client",
						"err", err,
					)
				}
			}
		}

		discoverer = upstream.NewCachedDiscoverer(client, backend, ttl, logger)
	}

	service := simulate.NewService(
		store,
		discoverer,
		client,
		identifier.NewGate(simulationCfg.AllowedIdentifiers),
		simulate.WithLogger(logger),
		simulate.WithConcurrency(simulationCfg.Concurrency),
		simulate.WithMetrics(m),
	)

	return service, cleanup, nil
}
