package gapfill

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/internal/timeseries"
	"github.com/wonny/solofill/pkg/logger"
)

// Status is the outcome of one (output, window) run
type Status string

const (
	StatusFilled  Status = "filled"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// OutputResult is the outcome of one (output, window) run
type OutputResult struct {
	Output   string           `json:"output"`
	Window   contracts.Window `json:"window"`
	Status   Status           `json:"status"`
	Nodes    int              `json:"nodes,omitempty"`
	Filled   int              `json:"filled"` // rows written by stage 3
	Err      error            `json:"-"`
	Warnings []error          `json:"-"`
}

// Orchestrator runs the three toolchain stages for one output over one window
// ⭐ SSOT: the per-output gap-filling sequence lives only here
type Orchestrator struct {
	store      *timeseries.Store
	adapter    contracts.ToolchainAdapter
	sink       contracts.StatisticsSink
	events     contracts.EventSink
	minPercent float64

	sessionID string
	site      string

	logger *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	store *timeseries.Store,
	adapter contracts.ToolchainAdapter,
	sink contracts.StatisticsSink,
	events contracts.EventSink,
	minPercent float64,
	logger *logger.Logger,
) *Orchestrator {
	if events == nil {
		events = contracts.NopEventSink{}
	}
	return &Orchestrator{
		store:      store,
		adapter:    adapter,
		sink:       sink,
		events:     events,
		minPercent: minPercent,
		logger:     logger,
	}
}

// WithSession tags emitted events with the session id and site
func (o *Orchestrator) WithSession(sessionID, site string) *Orchestrator {
	o.sessionID = sessionID
	o.site = site
	return o
}

// MinimumPoints is the guard threshold for n samples: ceil(n × percent / 100)
func MinimumPoints(n int, percent float64) int {
	return int(math.Ceil(float64(n) * percent / 100))
}

// RunWindow runs every job over the window in order.
// Cancellation is honoured between outputs only.
func (o *Orchestrator) RunWindow(ctx context.Context, w contracts.Window, jobs []contracts.GapFillJob) []OutputResult {
	results := make([]OutputResult, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		job.Window = w
		results = append(results, o.Run(ctx, job))
	}
	return results
}

// Run fills one output over the job window.
// A guard skip appends a sentinel record; a failure leaves the output series untouched.
func (o *Orchestrator) Run(ctx context.Context, job contracts.GapFillJob) OutputResult {
	w := job.Window
	res := OutputResult{Output: job.Output, Window: w}
	log := o.logger.WithFields(map[string]interface{}{
		"output": job.Output,
		"window": w.String(),
	})

	fail := func(kind error, err error) OutputResult {
		res.Status = StatusFailed
		res.Err = contracts.NewGapFillError(kind, job.Output, w, err)
		log.WithError(res.Err).Error("Output aborted for this window")
		o.emit(contracts.EventOutputFailed, job.Output, w, res.Err.Error())
		return res
	}

	if err := job.Validate(); err != nil {
		return fail(contracts.ErrConfiguration, err)
	}

	// 1. Resolve data
	if _, err := o.store.EnsureOutput(job.Output, job.Target); err != nil {
		return fail(contracts.ErrConfiguration, err)
	}
	drivers := make([][]float64, 0, len(job.Drivers)+1)
	for _, label := range job.Drivers {
		col, err := o.store.Slice(label, w)
		if err != nil {
			return fail(contracts.ErrConfiguration, err)
		}
		drivers = append(drivers, col)
	}
	target, err := o.store.Slice(job.Target, w)
	if err != nil {
		return fail(contracts.ErrConfiguration, err)
	}

	// 2. Guard
	good := o.store.CountGood(job.Target, w.StartIndex, w.EndIndex)
	need := MinimumPoints(w.Length(), o.minPercent)
	if good < need {
		rec := contracts.SkippedRecord(job.Output, w, o.store.MissingValue())
		o.sink.Append(rec)
		res.Status = StatusSkipped
		res.Err = contracts.NewGapFillError(contracts.ErrInsufficientData, job.Output, w,
			fmt.Errorf("%d good target points, need %d", good, need))
		log.WithFields(map[string]interface{}{
			"good": good,
			"need": need,
		}).Info("Less than the minimum number of good target points, skipping")
		o.emit(contracts.EventOutputSkipped, job.Output, w, res.Err.Error())
		return res
	}

	// 3. Nodes and 4. descriptors
	res.Nodes = job.Settings.ResolveNodes(len(job.Drivers))
	if err := o.adapter.WriteDescriptors(job, res.Nodes); err != nil {
		return fail(contracts.ErrToolchainInvocation, fmt.Errorf("write descriptors: %w", err))
	}

	// 5-7. Stages
	withTarget := append(drivers[:len(drivers):len(drivers)], target)
	var final contracts.ToolchainRunResult
	for _, stage := range contracts.AllStages() {
		cols := drivers
		if stage.UsesTarget() {
			cols = withTarget
		}

		start := time.Now()
		run := o.adapter.Run(ctx, stage, cols, w.StartIndex)
		if run.Warning != nil {
			res.Warnings = append(res.Warnings, run.Warning)
		}
		if !run.Success {
			return fail(contracts.ErrToolchainInvocation, run.Err)
		}
		log.WithFields(map[string]interface{}{
			"stage":    stage.String(),
			"duration": time.Since(start).Seconds(),
		}).Debug("Stage completed")
		final = run
	}

	if err := o.store.Scatter(job.Output, final.RowIndex, final.Values); err != nil {
		return fail(contracts.ErrToolchainInvocation, err)
	}
	res.Filled = len(final.RowIndex)

	// 8. Statistics
	mod, err := o.store.Slice(job.Output, w)
	if err != nil {
		return fail(contracts.ErrConfiguration, err)
	}
	rec := stats.ComputeFit(job.Output, w, target, mod, o.store.IsMissing, o.store.MissingValue())
	o.sink.Append(rec)

	res.Status = StatusFilled
	log.WithFields(map[string]interface{}{
		"nodes":      res.Nodes,
		"filled":     res.Filled,
		"num_points": rec.NumPoints,
		"r":          rec.R,
	}).Info("Output filled")
	o.emit(contracts.EventOutputFilled, job.Output, w, fmt.Sprintf("%d rows modelled", res.Filled))

	return res
}

func (o *Orchestrator) emit(t contracts.EventType, output string, w contracts.Window, msg string) {
	win := w
	o.events.Emit(contracts.ProgressEvent{
		Type:      t,
		SessionID: o.sessionID,
		Site:      o.site,
		Output:    output,
		Window:    &win,
		Message:   msg,
		Time:      time.Now(),
	})
}
