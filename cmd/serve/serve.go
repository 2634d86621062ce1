package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/credsim/cmd/env"
	"github.com/sig-0/credsim/cmd/flags"
	"github.com/sig-0/credsim/cmd/pipeline"
	"github.com/sig-0/credsim/metrics"
	"github.com/sig-0/credsim/server"
	"github.com/sig-0/credsim/server/config"
	"github.com/sig-0/credsim/storage"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	config    *config.Config
	overrides flags.Overrides

	configPath string
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the credsim backend",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeSQLiteCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	c.overrides.RegisterListen(fs)
	c.overrides.RegisterUpstream(fs)
}

// loadConfig reads the server configuration file, if any,
// and applies the flag overrides on top of it
func (c *serveCfg) loadConfig() error {
	if c.configPath != "" {
		serverCfg, err := config.Read(c.configPath)
		if err != nil {
			return fmt.Errorf("unable to read server config, %w", err)
		}

		c.config = serverCfg
	}

	c.overrides.Apply(c.config)

	return nil
}

// newLogger creates the command logger, and loads the .env file
func newLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	return logger
}

// run serves the consultation API on top of the given store, until
// the context is canceled or a termination signal is received [BLOCKING]
func (c *serveCfg) run(ctx context.Context, store storage.Storage, logger *slog.Logger) error {
	m := metrics.NewManager()

	service, cleanup, err := pipeline.Build(ctx, c.config, store, logger, m)
	if err != nil {
		return fmt.Errorf("unable to create consultation service, %w", err)
	}

	defer cleanup()

	// Create the server instance
	s, err := server.New(
		store,
		service,
		server.WithLogger(logger),
		server.WithConfig(c.config),
		server.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	return group.Wait()
}
