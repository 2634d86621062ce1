package serve

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/credsim/server/config"
)

const testConfig = `
listen_address = "127.0.0.1:7000"

[upstream]
base_url = "https://file.example/api"
timeout_seconds = 12
insecure_skip_verify = true

[simulation]
allowed_identifiers = ["33333333333"]
concurrency = 2
history_limit = 10
`

// writeConfig writes the given TOML configuration to a temporary file
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// parseServeCfg parses the args through the serve flags
func parseServeCfg(t *testing.T, args ...string) *serveCfg {
	t.Helper()

	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg.registerFlags(fs)

	require.NoError(t, fs.Parse(args))

	return cfg
}

func TestServeCfg_LoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override the config file", func(t *testing.T) {
		t.Parallel()

		cfg := parseServeCfg(
			t,
			"-config", writeConfig(t, testConfig),
			"-listen", "127.0.0.1:9999",
			"-upstream-url", "http://flag.example",
			"-upstream-timeout", "5",
			"-insecure-skip-verify=false",
		)

		require.NoError(t, cfg.loadConfig())

		assert.Equal(t, "127.0.0.1:9999", cfg.config.ListenAddress)
		assert.Equal(t, "http://flag.example", cfg.config.Upstream.BaseURL)
		assert.Equal(t, 5, cfg.config.Upstream.TimeoutSeconds)
		assert.False(t, cfg.config.Upstream.InsecureSkipVerify)

		// Values without a flag come from the file
		assert.Equal(t, []string{"33333333333"}, cfg.config.Simulation.AllowedIdentifiers)
		assert.Equal(t, 2, cfg.config.Simulation.Concurrency)
	})

	t.Run("config file without flags", func(t *testing.T) {
		t.Parallel()

		cfg := parseServeCfg(t, "-config", writeConfig(t, testConfig))

		require.NoError(t, cfg.loadConfig())

		assert.Equal(t, "127.0.0.1:7000", cfg.config.ListenAddress)
		assert.Equal(t, "https://file.example/api", cfg.config.Upstream.BaseURL)
		assert.Equal(t, 12, cfg.config.Upstream.TimeoutSeconds)
		assert.True(t, cfg.config.Upstream.InsecureSkipVerify)
	})

	t.Run("flags without a config file", func(t *testing.T) {
		t.Parallel()

		cfg := parseServeCfg(t, "-upstream-url", "http://flag.example")

		require.NoError(t, cfg.loadConfig())

		assert.Equal(t, config.DefaultListenAddress, cfg.config.ListenAddress)
		assert.Equal(t, "http://flag.example", cfg.config.Upstream.BaseURL)
		assert.Equal(t, config.DefaultTimeoutSeconds, cfg.config.Upstream.TimeoutSeconds)
		assert.False(t, cfg.config.Upstream.InsecureSkipVerify)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		cfg := parseServeCfg(t, "-config", filepath.Join(t.TempDir(), "missing.toml"))

		assert.Error(t, cfg.loadConfig())
	})
}
