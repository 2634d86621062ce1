// Package flags binds the command-line overrides of the server configuration.
// Only the flags set on the command line (or through the environment) are
// applied, on top of the defaults or the configuration file
package flags

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/sig-0/credsim/server/config"
)

// Overrides holds the configuration values set through flags
type Overrides struct {
	listenAddress      *string
	upstreamURL        *string
	upstreamTimeout    *int
	insecureSkipVerify *bool
}

// RegisterListen registers the listen address flag
func (o *Overrides) RegisterListen(fs *flag.FlagSet) {
	fs.Func(
		"listen",
		fmt.Sprintf("the IP:PORT URL for the server (default %s)", config.DefaultListenAddress),
		func(v string) error {
			o.listenAddress = &v

			return nil
		},
	)
}

// RegisterUpstream registers the upstream API flags
func (o *Overrides) RegisterUpstream(fs *flag.FlagSet) {
	fs.Func(
		"upstream-url",
		fmt.Sprintf("the base URL of the lending simulation API (default %s)", config.DefaultUpstreamURL),
		func(v string) error {
			o.upstreamURL = &v

			return nil
		},
	)

	fs.Func(
		"upstream-timeout",
		fmt.Sprintf("the per-call upstream timeout, in seconds (default %d)", config.DefaultTimeoutSeconds),
		func(v string) error {
			timeout, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid timeout %q", v)
			}

			o.upstreamTimeout = &timeout

			return nil
		},
	)

	fs.BoolFunc(
		"insecure-skip-verify",
		"disables upstream TLS certificate verification (testing only)",
		func(v string) error {
			skip, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid flag value %q", v)
			}

			o.insecureSkipVerify = &skip

			return nil
		},
	)
}

// Apply writes the set flag values into the given configuration
func (o *Overrides) Apply(cfg *config.Config) {
	if o.listenAddress != nil {
		cfg.ListenAddress = *o.listenAddress
	}

	if o.upstreamURL == nil && o.upstreamTimeout == nil && o.insecureSkipVerify == nil {
		return
	}

	if cfg.Upstream == nil {
		cfg.Upstream = config.DefaultUpstreamConfig()
	}

	if o.upstreamURL != nil {
		cfg.Upstream.BaseURL = *o.upstreamURL
	}

	if o.upstreamTimeout != nil {
		cfg.Upstream.TimeoutSeconds = *o.upstreamTimeout
	}

	if o.insecureSkipVerify != nil {
		cfg.Upstream.InsecureSkipVerify = *o.insecureSkipVerify
	}
}
