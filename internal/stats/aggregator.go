package stats

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonny/solofill/internal/contracts"
)

// OutputSummary condenses the records of one output
type OutputSummary struct {
	Output  string `json:"output"`
	Runs    int    `json:"runs"`
	Skipped int    `json:"skipped"`
	Points  int    `json:"points"`
}

// Aggregator accumulates fit records in run order.
// Records are never discarded or deduplicated. Safe for concurrent readers.
type Aggregator struct {
	mu      sync.RWMutex
	records []contracts.FitStatisticsRecord
	log     zerolog.Logger
}

// NewAggregator creates an empty aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "stats.aggregator").Logger(),
	}
}

// Append implements contracts.StatisticsSink
func (a *Aggregator) Append(rec contracts.FitStatisticsRecord) {
	a.mu.Lock()
	a.records = append(a.records, rec)
	n := len(a.records)
	a.mu.Unlock()

	a.log.Debug().
		Str("output", rec.Output).
		Int("num_points", rec.NumPoints).
		Int("seq", n).
		Msg("fit record appended")
}

// Len returns the number of records
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// All returns a copy of every record in run order
func (a *Aggregator) All() []contracts.FitStatisticsRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]contracts.FitStatisticsRecord, len(a.records))
	copy(out, a.records)
	return out
}

// ByOutput returns the records of one output in run order
func (a *Aggregator) ByOutput(output string) []contracts.FitStatisticsRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []contracts.FitStatisticsRecord
	for _, r := range a.records {
		if r.Output == output {
			out = append(out, r)
		}
	}
	return out
}

// Outputs returns the output labels in order of first appearance
func (a *Aggregator) Outputs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range a.records {
		if !seen[r.Output] {
			seen[r.Output] = true
			out = append(out, r.Output)
		}
	}
	return out
}

// Summary returns one summary per output in order of first appearance
func (a *Aggregator) Summary() []OutputSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	index := make(map[string]int)
	var out []OutputSummary
	for _, r := range a.records {
		i, ok := index[r.Output]
		if !ok {
			i = len(out)
			index[r.Output] = i
			out = append(out, OutputSummary{Output: r.Output})
		}
		out[i].Runs++
		if r.IsSkipped() {
			out[i].Skipped++
		}
		out[i].Points += r.NumPoints
	}
	return out
}

var _ contracts.StatisticsSink = (*Aggregator)(nil)
