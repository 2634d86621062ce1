package serve

import (
	"context"
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/credsim/cmd/env"
	"github.com/sig-0/credsim/storage/sqlite"
)

const defaultSQLitePath = "credsim.db"

type serveSQLiteCfg struct {
	rootCfg *serveCfg

	path string
}

// newServeSQLiteCmd creates the serve sqlite command
func newServeSQLiteCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveSQLiteCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("sqlite", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	fs.StringVar(
		&cfg.path,
		"db",
		defaultSQLitePath,
		"the path to the SQLite database file",
	)

	return &ffcli.Command{
		Name:       "sqlite",
		ShortUsage: "serve sqlite [flags]",
		LongHelp:   "Serves the credsim backend, using an embedded SQLite datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveSQLiteCfg) exec(ctx context.Context, _ []string) error {
	// Read the server configuration, if any
	if err := c.rootCfg.loadConfig(); err != nil {
		return err
	}

	logger := newLogger()

	store, err := sqlite.Open(ctx, c.path)
	if err != nil {
		return fmt.Errorf("unable to open SQLite store: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(
				"unable to gracefully close SQLite store",
				"err", err,
			)
		}
	}()

	logger.Info(
		"SQLite store opened",
		"path", c.path,
	)

	return c.rootCfg.run(ctx, store, logger)
}
