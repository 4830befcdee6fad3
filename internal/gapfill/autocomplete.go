package gapfill

import (
	"context"
	"fmt"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/timeseries"
	"github.com/wonny/solofill/pkg/logger"
)

// AutoCompleteResult summarises one autocomplete pass
type AutoCompleteResult struct {
	Gaps       int            `json:"gaps"`
	Filled     int            `json:"filled"`
	Exhausted  int            `json:"exhausted"`
	Expansions int            `json:"expansions"`
	Runs       []OutputResult `json:"runs"`
	Errors     []error        `json:"-"`
}

// AutoCompleter fills the gaps left after the main pass by growing a window
// around each gap until it holds enough good target points
type AutoCompleter struct {
	orch       *Orchestrator
	store      *timeseries.Store
	step       int // samples added per side on each expansion
	minPercent float64
	logger     *logger.Logger
}

// NewAutoCompleter creates an autocompleter; step is the number of samples per day
func NewAutoCompleter(orch *Orchestrator, store *timeseries.Store, step int, minPercent float64, logger *logger.Logger) *AutoCompleter {
	if step < 1 {
		step = 1
	}
	return &AutoCompleter{
		orch:       orch,
		store:      store,
		step:       step,
		minPercent: minPercent,
		logger:     logger,
	}
}

// Expand grows [r.Start, r.End] by step samples per side until label has at
// least MinimumPoints of the grown window in good values. ok is false when the
// whole record was reached first. Expansions never exceed ceil(n / step).
func (a *AutoCompleter) Expand(label string, r timeseries.Region) (si, ei, expansions int, ok bool) {
	return a.expand(a.store.GoodCounts(label), r)
}

func (a *AutoCompleter) expand(good timeseries.GoodCounts, r timeseries.Region) (si, ei, expansions int, ok bool) {
	last := a.store.Len() - 1
	si, ei = r.Start, r.End
	for good.Between(si, ei) < MinimumPoints(ei-si+1, a.minPercent) {
		if si == 0 && ei == last {
			return si, ei, expansions, false
		}
		si = max(si-a.step, 0)
		ei = min(ei+a.step, last)
		expansions++
	}
	return si, ei, expansions, true
}

// Run processes the gaps of each job's output in ascending time order.
// The output series is rescanned after every fill; a cursor past the last
// handled gap guarantees termination.
func (a *AutoCompleter) Run(ctx context.Context, jobs []contracts.GapFillJob) AutoCompleteResult {
	var res AutoCompleteResult
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		a.runOutput(ctx, job, &res)
	}
	a.logger.WithFields(map[string]interface{}{
		"gaps":       res.Gaps,
		"filled":     res.Filled,
		"exhausted":  res.Exhausted,
		"expansions": res.Expansions,
	}).Info("Autocomplete finished")
	return res
}

func (a *AutoCompleter) runOutput(ctx context.Context, job contracts.GapFillJob, res *AutoCompleteResult) {
	log := a.logger.WithField("output", job.Output)
	good := a.store.GoodCounts(job.Target)
	cursor := 0

	for ctx.Err() == nil {
		region, found := a.nextRegion(job.Output, cursor)
		if !found {
			return
		}
		cursor = region.End + 1
		res.Gaps++

		si, ei, n, ok := a.expand(good, region)
		res.Expansions += n
		gap := a.store.Window(region.Start, region.End)

		if !ok {
			err := contracts.NewGapFillError(contracts.ErrExhaustedWindow, job.Output, gap,
				fmt.Errorf("%d good %s points over the whole record, need %d",
					good.Between(si, ei), job.Target, MinimumPoints(ei-si+1, a.minPercent)))
			res.Exhausted++
			res.Errors = append(res.Errors, err)
			log.WithError(err).Warn("Unable to find enough good points for gap, skipping")
			a.orch.emit(contracts.EventGapExhausted, job.Output, gap, err.Error())
			continue
		}

		job.Window = a.store.Window(si, ei)
		log.WithFields(map[string]interface{}{
			"gap":        gap.String(),
			"window":     job.Window.String(),
			"expansions": n,
		}).Info("Filling gap")

		run := a.orch.Run(ctx, job)
		res.Runs = append(res.Runs, run)
		if run.Status == StatusFilled {
			res.Filled++
			if job.Output == job.Target {
				good = a.store.GoodCounts(job.Target)
			}
		} else if run.Err != nil {
			res.Errors = append(res.Errors, run.Err)
		}
	}
}

// nextRegion returns the first missing region of label starting at or after cursor
func (a *AutoCompleter) nextRegion(label string, cursor int) (timeseries.Region, bool) {
	for _, r := range a.store.MissingRegions(label) {
		if r.Start >= cursor {
			return r, true
		}
		// a fill may leave the tail of an earlier region behind the cursor
		if r.End >= cursor {
			return timeseries.Region{Start: cursor, End: r.End}, true
		}
	}
	return timeseries.Region{}, false
}
