package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	goflags "github.com/jessevdk/go-flags"

	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/adapters/sink"
	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/label"
	"github.com/okian/pitwall/internal/synth"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const stdoutPath = "-"

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Stderr.WriteString("pitwall: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// run parses args and executes the matched subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var globals GlobalFlags
	e := &env{ctx: ctx, globals: &globals, stdout: stdout, stderr: stderr}

	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "pitwall"
	parser.LongDescription = "Point-in-time feature engineering for race outcome models."

	if _, err := parser.AddCommand("build", "Build the training matrix",
		"Read the CSV tables, compute leakage-free rolling features and write the labeled matrix.",
		&BuildCommand{env: e}); err != nil {
		return err
	}
	if _, err := parser.AddCommand("describe", "List feature columns",
		"Print every feature column with its dimension, statistic and window policy.",
		&DescribeCommand{env: e}); err != nil {
		return err
	}
	if _, err := parser.AddCommand("synth", "Write a synthetic dataset",
		"Write deterministic results, races and qualifying tables for smoke runs.",
		&SynthCommand{env: e}); err != nil {
		return err
	}

	// logs go to stderr until a command has loaded its config
	if err := logger.Init(logger.WithWriter(stderr)); err != nil {
		return err
	}

	_, err := parser.ParseArgs(args)
	var flagsErr *goflags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
		_, _ = io.WriteString(stdout, flagsErr.Message+"\n")
		return nil
	}
	return err
}

// setup loads configuration and applies the logging settings.
func (e *env) setup() (*config.Config, error) {
	cfg, err := config.Load(e.ctx, e.globals.Config)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(e.stderr)); err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if e.globals.LogLevel != "" {
		level = e.globals.LogLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(e.ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// Execute implements the go-flags Commander interface for BuildCommand.
func (c *BuildCommand) Execute(_ []string) error {
	cfg, err := c.env.setup()
	if err != nil {
		return err
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	if c.Output != "" {
		cfg.Output = c.Output
	}
	if c.Window != 0 {
		cfg.WindowSize = c.Window
	}
	if c.Target != "" {
		cfg.Target = c.Target
	}
	if c.Workers != 0 {
		cfg.WorkerCount = c.Workers
	}
	if c.MetricsFile != "" {
		cfg.MetricsFile = c.MetricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rule, err := label.RuleByName(cfg.Target)
	if err != nil {
		return err
	}

	ctx := c.env.ctx
	log := logger.Get()
	svc := app.New(
		app.WithLogger(log.Named("pipeline")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithNAValues(cfg.NAValues),
	)
	res, err := svc.BuildFeatures(ctx, app.Request{
		Source:     source.NewCSVSource(cfg.DataDir),
		Dimensions: features.Default(cfg.FinishedStatus),
		Raw:        features.Raw(),
		WindowSize: cfg.WindowSize,
		Target:     rule,
		Eligibility: label.Eligibility{
			MinYear:           cfg.MinYear,
			MaxYear:           cfg.MaxYear,
			RequireGrid:       cfg.RequireGrid,
			RequireQualifying: cfg.RequireQualifying,
		},
	})
	if err != nil {
		return err
	}

	if cfg.Output == stdoutPath {
		err = sink.WriteCSV(ctx, c.env.stdout, res.Matrix)
	} else {
		err = sink.WriteFile(ctx, cfg.Output, res.Matrix)
	}
	if err != nil {
		return err
	}

	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Error(ctx, "metrics export failed", logger.String("path", cfg.MetricsFile), logger.Error(err))
	}

	log.Info(ctx, "matrix written",
		logger.String("run_id", res.RunID),
		logger.String("output", cfg.Output),
		logger.Int("rows", len(res.Matrix.Rows)),
		logger.Int("unparsable", total(res.Report.Unparsable)),
		logger.Int("duplicates", res.Report.Duplicates),
		logger.Int("failed_entities", len(res.Failures)),
	)
	return nil
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Execute implements the go-flags Commander interface for DescribeCommand.
func (c *DescribeCommand) Execute(_ []string) error {
	cfg, err := c.env.setup()
	if err != nil {
		return err
	}
	window := cfg.WindowSize
	if c.Window > 0 {
		window = c.Window
	}
	cols := features.Describe(features.Raw(), features.Default(cfg.FinishedStatus), window)

	if c.JSON {
		enc := json.NewEncoder(c.env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cols)
	}

	tw := tabwriter.NewWriter(c.env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tDIMENSION\tKIND\tPOLICY\tWINDOW")
	for _, col := range cols {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", col.Name, col.Dimension, col.Kind, col.Policy, col.Window)
	}
	return tw.Flush()
}

// Execute implements the go-flags Commander interface for SynthCommand.
func (c *SynthCommand) Execute(_ []string) error {
	cfg := synth.DefaultConfig()
	cfg.Seasons = c.Seasons
	cfg.Rounds = c.Rounds
	cfg.Seed = c.Seed
	if cfg.Seasons < 1 || cfg.Rounds < 1 {
		return fmt.Errorf("%w: seasons and rounds must be positive", config.ErrInvalidConfig)
	}
	return synth.WriteDir(c.env.ctx, c.Dir, synth.Generate(cfg))
}
