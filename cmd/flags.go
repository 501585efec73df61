package main

import (
	"context"
	"io"
)

// GlobalFlags apply to every subcommand.
type GlobalFlags struct {
	Config   string `long:"config" short:"c" description:"Path to YAML config file (defaults to $PITWALL_CONFIG)"`
	LogLevel string `long:"log-level" description:"Override log level: debug, info, warn, error"`
}

// BuildCommand builds the training matrix from CSV tables.
type BuildCommand struct {
	DataDir     string `long:"data-dir" short:"d" description:"Directory holding results.csv, races.csv and qualifying.csv"`
	Output      string `long:"output" short:"o" description:"Matrix CSV path, - for stdout"`
	Window      int    `long:"window" short:"w" description:"Look-back window of bounded statistics"`
	Target      string `long:"target" short:"t" description:"Target rule: win or points"`
	Workers     int    `long:"workers" description:"Number of aggregation workers"`
	MetricsFile string `long:"metrics-file" description:"Write a Prometheus textfile after the run"`

	env *env
}

// DescribeCommand prints the declared feature columns.
type DescribeCommand struct {
	JSON   bool `long:"json" description:"Output in JSON format"`
	Window int  `long:"window" short:"w" description:"Window shown for bounded statistics"`

	env *env
}

// SynthCommand writes a synthetic dataset.
type SynthCommand struct {
	Dir     string `long:"dir" required:"true" description:"Output directory"`
	Seasons int    `long:"seasons" default:"3" description:"Number of seasons"`
	Rounds  int    `long:"rounds" default:"12" description:"Rounds per season"`
	Seed    int64  `long:"seed" default:"42" description:"Random seed"`

	env *env
}

// env carries what Execute needs but go-flags cannot pass.
type env struct {
	ctx     context.Context
	globals *GlobalFlags
	stdout  io.Writer
	stderr  io.Writer
}
