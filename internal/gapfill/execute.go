package gapfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/solofill/internal/sessionconfig"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/internal/timeseries"
	"github.com/wonny/solofill/pkg/logger"
)

// Sinks receive the statistics of a finished session; nil sinks are skipped
type Sinks struct {
	Store     stats.Store
	Publisher *stats.Publisher
}

// Defaults fill toolchain settings a session file leaves empty
type Defaults struct {
	WorkDir string
	BinDir  string
}

// CSVOptions returns the record layout described by a session config
func CSVOptions(cfg *sessionconfig.Config) timeseries.CSVOptions {
	return timeseries.CSVOptions{
		DateTimeColumn: cfg.Input.DateTimeColumn,
		DateTimeFormat: cfg.Input.DateTimeFormat,
		MissingValue:   cfg.Session.MissingValue,
		TimeStep:       cfg.TimeStep(),
	}
}

// LoadSession loads a session file and applies the toolchain defaults
func LoadSession(path string, defaults Defaults) (*sessionconfig.Config, error) {
	cfg, _, err := sessionconfig.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Toolchain.WorkDir == "" {
		cfg.Toolchain.WorkDir = defaults.WorkDir
	}
	if cfg.Toolchain.BinDir == "" {
		cfg.Toolchain.BinDir = defaults.BinDir
	}
	return cfg, nil
}

// RunFile loads a session file and runs it with RunConfig
func RunFile(ctx context.Context, path string, defaults Defaults, opts Options, sinks Sinks, log *logger.Logger) (*Result, error) {
	cfg, err := LoadSession(path, defaults)
	if err != nil {
		return nil, err
	}
	return RunConfig(ctx, cfg, opts, sinks, log)
}

// RunConfig loads the session's record, runs the session, writes the filled
// record and the statistics CSV, then hands the statistics to sinks.
// The result is returned whenever the session started, even alongside an error.
func RunConfig(ctx context.Context, cfg *sessionconfig.Config, opts Options, sinks Sinks, log *logger.Logger) (*Result, error) {
	csvOpts := CSVOptions(cfg)
	store, err := timeseries.ReadCSVFile(cfg.Input.Path, csvOpts)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	sess, err := NewSession(cfg, store, log, opts)
	if err != nil {
		return nil, err
	}

	res, runErr := sess.Run(ctx)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if cfg.Output.Path != "" {
		if err := timeseries.WriteCSVFile(cfg.Output.Path, store, csvOpts); err != nil {
			errs = append(errs, fmt.Errorf("write filled record: %w", err))
		}
	}
	if cfg.Output.StatsPath != "" {
		if err := stats.WriteCSVFile(cfg.Output.StatsPath, res.Records); err != nil {
			errs = append(errs, err)
		}
	}

	// a cancelled run is still persisted
	persistCtx := context.WithoutCancel(ctx)
	if sinks.Store != nil {
		if err := sinks.Store.SaveSession(persistCtx, res.Stats()); err != nil {
			errs = append(errs, err)
		}
	}
	if sinks.Publisher != nil {
		if err := sinks.Publisher.Publish(persistCtx, res.Stats()); err != nil {
			errs = append(errs, err)
		}
	}

	return res, errors.Join(errs...)
}
