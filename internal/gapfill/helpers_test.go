package gapfill

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/timeseries"
	"github.com/wonny/solofill/pkg/config"
	"github.com/wonny/solofill/pkg/logger"
)

const missing = -9999.0

var base = time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// newStore builds an n-sample half-hourly record with drivers Ta and Sws.
// Fc is the sum of the drivers wherever good(i) is true.
func newStore(t *testing.T, n int, good func(i int) bool) *timeseries.Store {
	t.Helper()

	times := make([]time.Time, n)
	ta := make([]float64, n)
	sws := make([]float64, n)
	fc := make([]float64, n)
	fe := make([]float64, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * 30 * time.Minute)
		ta[i] = float64(i % 48)
		sws[i] = 0.5
		fc[i] = missing
		if good(i) {
			fc[i] = ta[i] + sws[i]
		}
		fe[i] = missing
	}

	s := timeseries.New(times, 30*time.Minute, missing)
	require.NoError(t, s.Add(&timeseries.Series{Label: "Ta", Data: ta}))
	require.NoError(t, s.Add(&timeseries.Series{Label: "Sws", Data: sws}))
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc", Data: fc, Attr: map[string]string{"long_name": "CO2 flux", "units": "umol/m^2/s"}}))
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fe", Data: fe}))
	return s
}

func all(int) bool { return true }

func fcJob() contracts.GapFillJob {
	return contracts.GapFillJob{
		Output:  "Fc_SOLO",
		Target:  "Fc",
		Drivers: []string{"Ta", "Sws"},
		Settings: contracts.SoloSettings{
			Nodes:        contracts.AutoNodes,
			Training:     500,
			NDAFactor:    5,
			LearningRate: 0.01,
			Iterations:   500,
		},
	}
}

// fakeAdapter models every retained stage-3 row as the sum of its drivers
type fakeAdapter struct {
	mu        sync.Mutex
	isMissing func(float64) bool
	fail      map[contracts.Stage]bool
	calls     []contracts.Stage
	nodes     []int
}

func newFakeAdapter(s *timeseries.Store) *fakeAdapter {
	return &fakeAdapter{isMissing: s.IsMissing, fail: map[contracts.Stage]bool{}}
}

func (f *fakeAdapter) WriteDescriptors(_ contracts.GapFillJob, nodes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, nodes)
	return nil
}

func (f *fakeAdapter) Run(_ context.Context, stage contracts.Stage, columns [][]float64, offset int) contracts.ToolchainRunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stage)

	res := contracts.ToolchainRunResult{Stage: stage}
	if f.fail[stage] {
		res.ExitCode = 1
		res.Err = fmt.Errorf("%s: %w: %s not produced", stage, contracts.ErrToolchainInvocation, stage.Artifact())
		return res
	}
	res.Success = true
	res.ArtifactPath = stage.Artifact()
	if stage != contracts.StageSeqSOLO {
		return res
	}

	drivers := columns[:len(columns)-1]
rows:
	for row := range columns[0] {
		sum := 0.0
		for _, col := range drivers {
			if f.isMissing(col[row]) {
				continue rows
			}
			sum += col[row]
		}
		res.Values = append(res.Values, sum)
		res.RowIndex = append(res.RowIndex, offset+row)
	}
	return res
}

func (f *fakeAdapter) stages() []contracts.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.Stage(nil), f.calls...)
}

// recordingSink keeps every emitted event
type recordingSink struct {
	mu     sync.Mutex
	events []contracts.ProgressEvent
}

func (r *recordingSink) Emit(ev contracts.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) count(t contracts.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
