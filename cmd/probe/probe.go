package probe

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/credsim/cmd/env"
	"github.com/sig-0/credsim/cmd/flags"
	"github.com/sig-0/credsim/cmd/pipeline"
	"github.com/sig-0/credsim/identifier"
	"github.com/sig-0/credsim/server/config"
	"github.com/sig-0/credsim/storage/memory"
	"github.com/sig-0/credsim/storage/types"
	"github.com/sig-0/credsim/upstream"
)

var errMissingCPF = errors.New("a single CPF argument is required")

// probeCfg wraps the probe configuration
type probeCfg struct {
	config    *config.Config
	out       io.Writer
	overrides flags.Overrides

	configPath string
	full       bool
	verbose    bool
}

// discoveryReport is the probe output for a discovery run
type discoveryReport struct {
	CPF              string               `json:"cpf"`
	Error            string               `json:"error,omitempty"`
	Institutions     []*types.Institution `json:"instituicoes"`
	InstitutionCount int                  `json:"instituicoes_count"`
	Success          bool                 `json:"success"`
}

// NewProbeCmd creates the probe subcommand
func NewProbeCmd() *ffcli.Command {
	cfg := newProbeCfg(os.Stdout)

	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "probe",
		ShortUsage: "probe [flags] <cpf>",
		LongHelp: "Probes the lending API for the given CPF, printing the discovered institutions. " +
			"With -full, runs the whole consultation against an in-memory store",
		FlagSet: fs,
		Exec:    cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func newProbeCfg(out io.Writer) *probeCfg {
	return &probeCfg{
		config: config.DefaultConfig(),
		out:    out,
	}
}

func (c *probeCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	c.overrides.RegisterUpstream(fs)

	fs.BoolVar(
		&c.full,
		"full",
		false,
		"runs the whole consultation instead of the discovery only",
	)

	fs.BoolVar(
		&c.verbose,
		"verbose",
		false,
		"logs the upstream calls to stderr",
	)
}

func (c *probeCfg) exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errMissingCPF
	}

	// Read the configuration, if any
	if c.configPath != "" {
		cfg, err := config.Read(c.configPath)
		if err != nil {
			return fmt.Errorf("unable to read config, %w", err)
		}

		c.config = cfg
	}

	c.overrides.Apply(c.config)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if c.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if c.full {
		return c.consult(ctx, args[0], logger)
	}

	return c.discover(ctx, args[0], logger)
}

// discover runs the institution discovery only, bypassing the allow-list
func (c *probeCfg) discover(ctx context.Context, rawCPF string, logger *slog.Logger) error {
	upstreamCfg := c.config.Upstream
	if upstreamCfg == nil {
		upstreamCfg = config.DefaultUpstreamConfig()
	}

	client := upstream.NewClient(
		upstreamCfg.BaseURL,
		upstream.WithLogger(logger),
		upstream.WithTimeout(time.Duration(upstreamCfg.TimeoutSeconds)*time.Second),
		upstream.WithInsecureSkipVerify(upstreamCfg.InsecureSkipVerify),
	)

	cpf := identifier.Normalize(rawCPF)

	report := discoveryReport{
		CPF:          cpf,
		Institutions: []*types.Institution{},
	}

	institutions, err := client.Discover(ctx, cpf)
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Success = true
		report.Institutions = institutions
		report.InstitutionCount = len(institutions)
	}

	return c.print(report)
}

// consult runs the full consultation against a throwaway store
func (c *probeCfg) consult(ctx context.Context, rawCPF string, logger *slog.Logger) error {
	service, cleanup, err := pipeline.Build(ctx, c.config, memory.NewStorage(), logger, nil)
	if err != nil {
		return fmt.Errorf("unable to create consultation service, %w", err)
	}

	defer cleanup()

	result, err := service.Consult(ctx, rawCPF)
	if err != nil {
		return fmt.Errorf("consultation failed: %w", err)
	}

	return c.print(result)
}

// print writes v as indented JSON
func (c *probeCfg) print(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode output: %w", err)
	}

	_, err = fmt.Fprintln(c.out, string(encoded))

	return err
}
