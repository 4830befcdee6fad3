package gapfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/sessionconfig"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/internal/timeseries"
	"github.com/wonny/solofill/internal/toolchain"
	"github.com/wonny/solofill/internal/window"
	"github.com/wonny/solofill/pkg/logger"
)

// Options customise a session; zero values select the defaults
type Options struct {
	ID      string                     // default: a new UUID
	Adapter contracts.ToolchainAdapter // default: toolchain.Adapter over the configured work area
	Runner  toolchain.Runner           // used by the default adapter, default: toolchain.ExecRunner
	Events  contracts.EventSink        // default: discard
}

// Session owns everything one gap-filling run needs
// ⭐ SSOT: no package-level state; all run state hangs off a Session
type Session struct {
	ID         string
	cfg        *sessionconfig.Config
	configHash string
	store      *timeseries.Store
	aggregator *stats.Aggregator
	adapter    contracts.ToolchainAdapter
	events     contracts.EventSink
	logger     *logger.Logger
}

// Result holds the outcome of a session run.
// It is returned even when individual outputs failed.
type Result struct {
	SessionID      string                          `json:"session_id"`
	Site           string                          `json:"site"`
	ConfigHash     string                          `json:"config_hash"`
	Strategy       string                          `json:"strategy"`
	StartedAt      time.Time                       `json:"started_at"`
	FinishedAt     time.Time                       `json:"finished_at"`
	Windows        int                             `json:"windows"`
	SkippedWindows int                             `json:"skipped_windows"`
	Outputs        []OutputResult                  `json:"outputs"`
	AutoComplete   AutoCompleteResult              `json:"auto_complete"`
	Records        []contracts.FitStatisticsRecord `json:"records"`
	Warnings       []error                         `json:"-"`
}

// Failures counts the failed (output, window) runs of both passes
func (r *Result) Failures() int {
	n := 0
	for _, o := range r.Outputs {
		if o.Status == StatusFailed {
			n++
		}
	}
	for _, o := range r.AutoComplete.Runs {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Stats converts the result into its persisted form
func (r *Result) Stats() stats.SessionStats {
	return stats.SessionStats{
		Session: stats.SessionMeta{
			ID:         r.SessionID,
			SiteName:   r.Site,
			ConfigHash: r.ConfigHash,
			Strategy:   r.Strategy,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Records:    len(r.Records),
			Failures:   r.Failures(),
		},
		Records: r.Records,
	}
}

// NewSession creates a session over a loaded record
func NewSession(cfg *sessionconfig.Config, store *timeseries.Store, log *logger.Logger, opts Options) (*Session, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("session needs a config and a record: %w", contracts.ErrConfiguration)
	}

	hash, err := sessionconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash session config: %w", err)
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	adapter := opts.Adapter
	if adapter == nil {
		layout := toolchain.NewLayout(cfg.Toolchain.WorkDir, cfg.Toolchain.BinDir)
		adapter = toolchain.NewAdapter(layout, opts.Runner, store.MissingValue(), store.IsMissing, log.Zerolog())
	}

	events := opts.Events
	if events == nil {
		events = contracts.NopEventSink{}
	}

	return &Session{
		ID:         id,
		cfg:        cfg,
		configHash: hash,
		store:      store,
		aggregator: stats.NewAggregator(log.Zerolog()),
		adapter:    adapter,
		events:     events,
		logger: log.WithFields(map[string]interface{}{
			"session_id": id,
			"site":       cfg.Session.SiteName,
		}),
	}, nil
}

// Store returns the record being filled
func (s *Session) Store() *timeseries.Store {
	return s.store
}

// Aggregator returns the statistics collected so far
func (s *Session) Aggregator() *stats.Aggregator {
	return s.aggregator
}

// Jobs builds one job per configured output whose labels exist in the record.
// Outputs with unknown labels are reported as configuration failures.
func (s *Session) Jobs() ([]contracts.GapFillJob, []OutputResult) {
	var jobs []contracts.GapFillJob
	var rejected []OutputResult
	for _, o := range s.cfg.Outputs {
		job := contracts.GapFillJob{
			Output:   o.Output,
			Target:   o.Target,
			Drivers:  append([]string(nil), o.Drivers...),
			Settings: s.cfg.SettingsFor(o),
		}
		if err := s.checkLabels(job); err != nil {
			rejected = append(rejected, OutputResult{
				Output: o.Output,
				Status: StatusFailed,
				Err:    contracts.NewGapFillError(contracts.ErrConfiguration, o.Output, contracts.Window{}, err),
			})
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rejected
}

func (s *Session) checkLabels(job contracts.GapFillJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	for _, label := range append([]string{job.Target}, job.Drivers...) {
		if _, ok := s.store.Get(label); !ok {
			return fmt.Errorf("series %q not in record: %w", label, contracts.ErrConfiguration)
		}
	}
	return nil
}

// Run executes the main pass over every planned window and, for the monthly
// and daily strategies, the autocomplete pass. Cancellation is checked
// between windows and between outputs; the partial result is returned with
// the context error.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		SessionID:  s.ID,
		Site:       s.cfg.Session.SiteName,
		ConfigHash: s.configHash,
		Strategy:   s.cfg.Window.Strategy,
		StartedAt:  time.Now(),
	}

	s.logger.WithFields(map[string]interface{}{
		"strategy":    s.cfg.Window.Strategy,
		"outputs":     len(s.cfg.Outputs),
		"samples":     s.store.Len(),
		"min_percent": s.cfg.Window.MinPercent,
	}).Info("Starting gap-filling session")

	for _, w := range sessionconfig.Warn(s.cfg) {
		s.logger.WithField("code", w.Code).Warn(w.Message)
	}

	params, err := window.ParamsFromConfig(s.cfg)
	if err != nil {
		return s.finish(res), fmt.Errorf("%w: %w", contracts.ErrConfiguration, err)
	}
	planner, err := window.NewPlanner(s.store, params, s.logger.Zerolog())
	if err != nil {
		return s.finish(res), err
	}

	jobs, rejected := s.Jobs()
	res.Outputs = append(res.Outputs, rejected...)
	for _, r := range rejected {
		s.logger.WithError(r.Err).Error("Output rejected")
	}

	orch := NewOrchestrator(s.store, s.adapter, s.aggregator, s.events, s.cfg.Window.MinPercent, s.logger).
		WithSession(s.ID, s.cfg.Session.SiteName)

	filled := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			res.SkippedWindows = planner.Skipped()
			return s.finish(res), err
		}
		w, ok := planner.Next()
		if !ok {
			break
		}
		res.Windows++
		s.logger.WithField("window", w.String()).Info("Processing window")
		orch.emit(contracts.EventWindowStarted, "", w, "")

		for _, out := range orch.RunWindow(ctx, w, jobs) {
			res.Outputs = append(res.Outputs, out)
			res.Warnings = append(res.Warnings, out.Warnings...)
			if out.Status == StatusFilled {
				filled[out.Output] = true
			}
		}
	}
	res.SkippedWindows = planner.Skipped()

	if s.cfg.Window.AutoComplete && s.cfg.Window.Strategy != sessionconfig.StrategyManual {
		var pending []contracts.GapFillJob
		for _, job := range jobs {
			if filled[job.Output] {
				pending = append(pending, job)
			} else {
				s.logger.WithField("output", job.Output).Info("Output never filled in main pass, skipping autocomplete")
			}
		}
		ac := NewAutoCompleter(orch, s.store, s.cfg.SamplesPerDay(), s.cfg.Window.MinPercent, s.logger)
		res.AutoComplete = ac.Run(ctx, pending)
		for _, run := range res.AutoComplete.Runs {
			res.Warnings = append(res.Warnings, run.Warnings...)
		}
	}

	return s.finish(res), ctx.Err()
}

func (s *Session) finish(res *Result) *Result {
	res.FinishedAt = time.Now()
	res.Records = s.aggregator.All()

	s.logger.WithFields(map[string]interface{}{
		"windows":  res.Windows,
		"records":  len(res.Records),
		"failures": res.Failures(),
		"duration": res.FinishedAt.Sub(res.StartedAt).Seconds(),
	}).Info("Gap-filling session completed")

	s.events.Emit(contracts.ProgressEvent{
		Type:      contracts.EventSessionCompleted,
		SessionID: s.ID,
		Site:      s.cfg.Session.SiteName,
		Message:   fmt.Sprintf("%d records, %d failures", len(res.Records), res.Failures()),
		Time:      res.FinishedAt,
	})
	return res
}
