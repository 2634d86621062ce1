package upstream

import (
	"context"
	"io"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sig-0/credsim/cache"
	"github.com/sig-0/credsim/storage/types"
)

const discoveryKeyPrefix = "discovery:"

// Discoverer fetches the institutions available for a CPF
type Discoverer interface {
	Discover(ctx context.Context, cpf string) ([]*types.Institution, error)
}

// CachedDiscoverer caches successful discovery responses per CPF.
// Cache failures fall through to the wrapped discoverer
type CachedDiscoverer struct {
	next   Discoverer
	cache  cache.Cache
	logger *slog.Logger
	ttl    time.Duration
}

// NewCachedDiscoverer wraps the discoverer with the given cache
func NewCachedDiscoverer(
	next Discoverer,
	c cache.Cache,
	ttl time.Duration,
	logger *slog.Logger,
) *CachedDiscoverer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &CachedDiscoverer{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func (d *CachedDiscoverer) Discover(ctx context.Context, cpf string) ([]*types.Institution, error) {
	key := discoveryKeyPrefix + cpf

	raw, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		d.logger.Warn(
			"unable to read discovery cache",
			"err", err,
		)
	}

	if ok {
		var institutions []*types.Institution
		if err = json.Unmarshal(raw, &institutions); err == nil && len(institutions) > 0 {
			d.logger.Debug("discovery cache hit")

			return institutions, nil
		}
	}

	institutions, err := d.next.Discover(ctx, cpf)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(institutions)
	if err != nil {
		return institutions, nil
	}

	if err = d.cache.Set(ctx, key, encoded, d.ttl); err != nil {
		d.logger.Warn(
			"unable to write discovery cache",
			"err", err,
		)
	}

	return institutions, nil
}
