package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-snapshot/internal/config"
	"github.com/contactkeval/option-snapshot/internal/data"
	"github.com/contactkeval/option-snapshot/internal/logger"
	"github.com/contactkeval/option-snapshot/internal/report"
	"github.com/contactkeval/option-snapshot/internal/snapshot"
)

// app holds the process collaborators so tests can swap them.
type app struct {
	stdout      io.Writer
	stderr      io.Writer
	now         func() time.Time
	newProvider func(*config.Config) (data.Provider, error)

	pretty  bool
	emitted bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		now:         time.Now,
		newProvider: data.New,
	}
}

// rootOptions holds flag values.
type rootOptions struct {
	configPath string
	envFile    string
	maxDays    float64
	expiries   int
	provider   string
	secondary  string
	verbosity  int
	logFormat  string
	pretty     bool
	csvPath    string
}

// execute runs the command and guarantees exactly one document on stdout,
// including when cobra rejects the arguments before the command runs.
func execute(ctx context.Context, a *app, args []string) {
	logger.SetOutput(a.stderr)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("optsnap: %v", rec)
		}
		if !a.emitted {
			a.emit(report.Empty(a.now()))
		}
	}()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stderr)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "optsnap SYMBOL [MAX_DAYS] [EXPIRIES]",
		Short: "Print an option chain snapshot as JSON",
		Long: `Fetch the option chain of SYMBOL for the nearest expirations within
MAX_DAYS days (default 30), keep up to EXPIRIES expirations (default 5,
clamped to 3..8) and print the rows with ATM implied volatility, put/call
volume ratio and straddle-implied move as one JSON document.

Examples:
  optsnap AAPL                        # 30 days, 5 expirations
  optsnap AAPL 45 8 --pretty          # wider window, indented output
  optsnap SPY --provider massive      # Massive snapshot API
  optsnap SPY --csv rows.csv          # also export rows as CSV`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	f.Float64Var(&opts.maxDays, "max-days", config.DefaultMaxDays, "maximum days to expiration")
	f.IntVar(&opts.expiries, "expiries", config.DefaultExpiries, "number of expirations to keep (3..8)")
	f.StringVarP(&opts.provider, "provider", "p", "", "data provider: yahoo, massive, local or synthetic")
	f.StringVar(&opts.secondary, "secondary", "", "fallback data provider")
	f.IntVarP(&opts.verbosity, "verbosity", "v", config.DefaultVerbosity, "log verbosity 0..3 (error, info, debug, trace)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	f.BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	f.StringVar(&opts.csvPath, "csv", "", "also write the rows to this CSV file")

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts rootOptions, args []string) error {
	if opts.envFile != "" {
		if err := config.LoadEnv(opts.envFile); err != nil {
			logger.Errorf("%v", err)
		}
	}

	cfg, err := config.LoadWithDefaults(opts.configPath)
	if err != nil {
		return err
	}

	req, err := applyOverrides(cmd, cfg, opts, args)
	a.pretty = cfg.Output.Pretty

	logger.SetVerbosity(cfg.Log.Verbosity)
	logger.SetFormat(cfg.Log.Format)

	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	prov, err := a.newProvider(cfg)
	if err != nil {
		return err
	}

	doc := snapshot.NewRunner(prov).WithClock(a.now).Run(cmd.Context(), req)

	if cfg.Output.CSVPath != "" {
		if err := report.WriteCSV(cfg.Output.CSVPath, doc.Rows); err != nil {
			logger.Errorf("csv export: %v", err)
		}
	}

	a.emit(doc)
	return nil
}

// applyOverrides layers flags, then positional arguments, over cfg and
// returns the snapshot request.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts rootOptions, args []string) (snapshot.Request, error) {
	flags := cmd.Flags()
	if flags.Changed("max-days") {
		cfg.Snapshot.MaxDays = opts.maxDays
	}
	if flags.Changed("expiries") {
		cfg.Snapshot.Expiries = opts.expiries
	}
	if opts.provider != "" {
		cfg.Provider.Primary = opts.provider
	}
	if opts.secondary != "" {
		cfg.Provider.Secondary = opts.secondary
	}
	if flags.Changed("verbosity") {
		cfg.Log.Verbosity = opts.verbosity
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.pretty {
		cfg.Output.Pretty = true
	}
	if opts.csvPath != "" {
		cfg.Output.CSVPath = opts.csvPath
	}

	if len(args) == 0 {
		return snapshot.Request{}, fmt.Errorf("symbol is required")
	}
	if len(args) > 3 {
		return snapshot.Request{}, fmt.Errorf("expected at most 3 arguments, got %d", len(args))
	}
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return snapshot.Request{}, fmt.Errorf("invalid MAX_DAYS %q: %w", args[1], err)
		}
		cfg.Snapshot.MaxDays = v
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return snapshot.Request{}, fmt.Errorf("invalid EXPIRIES %q: %w", args[2], err)
		}
		cfg.Snapshot.Expiries = n
	}
	cfg.Snapshot.Expiries = config.ClampExpiries(cfg.Snapshot.Expiries)

	return snapshot.Request{
		Symbol:   args[0],
		MaxDays:  cfg.Snapshot.MaxDays,
		Expiries: cfg.Snapshot.Expiries,
	}, nil
}

// emit writes doc, or the degenerate document when doc cannot be encoded.
// The document is encoded in full before anything reaches stdout.
func (a *app) emit(doc *report.Document) {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, doc, a.pretty); err != nil {
		logger.Errorf("%v", err)
		buf.Reset()
		if err := report.WriteJSON(&buf, report.Empty(a.now()), a.pretty); err != nil {
			logger.Errorf("%v", err)
			return
		}
	}
	if _, err := a.stdout.Write(buf.Bytes()); err != nil {
		logger.Errorf("write document: %v", err)
		return
	}
	a.emitted = true
}
