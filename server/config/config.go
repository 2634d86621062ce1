package config

import (
	"errors"
	"net/url"
	"os"
	"regexp"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/credsim/identifier"
)

const (
	DefaultListenAddress  = "0.0.0.0:8545"
	DefaultUpstreamURL    = "https://dev.gosat.org/api/v1/simulacao"
	DefaultTimeoutSeconds = 30
	DefaultConcurrency    = 4
	DefaultHistoryLimit   = 50
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidUpstreamURL   = errors.New("invalid upstream base URL")
	ErrInvalidTimeout       = errors.New("invalid upstream timeout")
	ErrInvalidConcurrency   = errors.New("invalid simulation concurrency")
	ErrInvalidHistoryLimit  = errors.New("invalid history limit")
	ErrEmptyAllowList       = errors.New("empty identifier allow-list")
	ErrInvalidCacheTTL      = errors.New("invalid cache TTL")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config defines the base-level server configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The upstream lending API settings
	Upstream *Upstream `toml:"upstream"`

	// The consultation pipeline settings
	Simulation *Simulation `toml:"simulation"`

	// The discovery cache settings
	Cache *Cache `toml:"cache"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`

	// Flag indicating if internal error details are echoed to callers
	ExposeErrors bool `toml:"expose_errors"`
}

// CORS defines the server CORS configuration
type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// Upstream defines the lending API client configuration
type Upstream struct {
	BaseURL            string `toml:"base_url"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Simulation defines the consultation pipeline configuration
type Simulation struct {
	// The identifiers accepted for consultation, in any format
	AllowedIdentifiers []string `toml:"allowed_identifiers"`

	// The maximum number of simultaneous simulation calls
	Concurrency int `toml:"concurrency"`

	// The number of records returned by the history endpoint
	HistoryLimit int `toml:"history_limit"`
}

// Cache defines the discovery cache configuration.
// The cache is disabled when the TTL is 0
type Cache struct {
	RedisAddress        string `toml:"redis_address"`
	DiscoveryTTLSeconds int    `toml:"discovery_ttl_seconds"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		ExposeErrors:  true,
		CORSConfig:    DefaultCORSConfig(),
		Upstream:      DefaultUpstreamConfig(),
		Simulation:    DefaultSimulationConfig(),
		Cache:         &Cache{},
	}
}

// DefaultCORSConfig returns the default CORS configuration (allow all)
func DefaultCORSConfig() *CORS {
	return &CORS{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}
}

// DefaultUpstreamConfig returns the default lending API configuration
func DefaultUpstreamConfig() *Upstream {
	return &Upstream{
		BaseURL:            DefaultUpstreamURL,
		TimeoutSeconds:     DefaultTimeoutSeconds,
		InsecureSkipVerify: false,
	}
}

// DefaultSimulationConfig returns the default pipeline configuration
func DefaultSimulationConfig() *Simulation {
	return &Simulation{
		AllowedIdentifiers: append([]string(nil), identifier.DefaultAllowed...),
		Concurrency:        DefaultConcurrency,
		HistoryLimit:       DefaultHistoryLimit,
	}
}

// ValidateConfig validates the server configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	// Validate the upstream
	if u := config.Upstream; u != nil {
		parsed, err := url.Parse(u.BaseURL)
		if err != nil || parsed.Host == "" ||
			(parsed.Scheme != "http" && parsed.Scheme != "https") {
			return ErrInvalidUpstreamURL
		}

		if u.TimeoutSeconds <= 0 {
			return ErrInvalidTimeout
		}
	}

	// Validate the pipeline
	if s := config.Simulation; s != nil {
		if s.Concurrency <= 0 {
			return ErrInvalidConcurrency
		}

		if s.HistoryLimit <= 0 {
			return ErrInvalidHistoryLimit
		}

		if len(identifier.NewGate(s.AllowedIdentifiers).Accepted()) == 0 {
			return ErrEmptyAllowList
		}
	}

	// Validate the cache
	if c := config.Cache; c != nil && c.DiscoveryTTLSeconds < 0 {
		return ErrInvalidCacheTTL
	}

	return nil
}

// Read reads the configuration from the given path.
// Options missing from the file keep their default values
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it on top of the defaults
	cfg := DefaultConfig()

	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
