package gapfill

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/internal/timeseries"
)

func newOrchestrator(s *timeseries.Store, a contracts.ToolchainAdapter, minPercent float64) (*Orchestrator, *stats.Aggregator, *recordingSink) {
	agg := stats.NewAggregator(zerolog.Nop())
	sink := &recordingSink{}
	return NewOrchestrator(s, a, agg, sink, minPercent, testLogger()).WithSession("s1", "test"), agg, sink
}

func TestMinimumPoints(t *testing.T) {
	tests := []struct {
		n       int
		percent float64
		want    int
	}{
		{96, 50, 48},
		{97, 50, 49},
		{3, 20, 1},
		{100, 100, 100},
		{0, 50, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MinimumPoints(tt.n, tt.percent), "n=%d percent=%v", tt.n, tt.percent)
	}
}

func TestOrchestrator_CoverageGuard(t *testing.T) {
	// 480 half-hourly samples, 2-day window, min_percent 50 -> 48 points needed
	tests := []struct {
		name       string
		goodPoints int
		want       Status
	}{
		{"10 percent coverage skipped", 10, StatusSkipped},
		{"one below threshold skipped", 47, StatusSkipped},
		{"exactly at threshold proceeds", 48, StatusFilled},
		{"60 percent coverage proceeds", 58, StatusFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, 480, func(i int) bool { return i < tt.goodPoints })
			a := newFakeAdapter(s)
			orch, agg, sink := newOrchestrator(s, a, 50)

			job := fcJob()
			job.Window = s.Window(0, 95)
			res := orch.Run(context.Background(), job)

			assert.Equal(t, tt.want, res.Status)
			require.Equal(t, 1, agg.Len())
			rec := agg.All()[0]

			if tt.want == StatusSkipped {
				assert.True(t, errors.Is(res.Err, contracts.ErrInsufficientData))
				assert.Empty(t, a.stages())
				assert.True(t, rec.IsSkipped())
				for _, v := range rec.Metrics() {
					assert.Equal(t, missing, v)
				}
				assert.Equal(t, 1, sink.count(contracts.EventOutputSkipped))
				return
			}

			assert.NoError(t, res.Err)
			assert.Equal(t, contracts.AllStages(), a.stages())
			assert.Equal(t, 96, res.Filled)
			assert.Equal(t, tt.goodPoints, rec.NumPoints)
			assert.Equal(t, float64(96-tt.goodPoints), rec.NumFilled)
			assert.InDelta(t, 1, rec.R, 1e-9)
			assert.InDelta(t, 1, rec.Slope, 1e-9)
			assert.Equal(t, 1, sink.count(contracts.EventOutputFilled))
		})
	}
}

func TestOrchestrator_ScattersAtAbsoluteRows(t *testing.T) {
	s := newStore(t, 480, all)
	ta, _ := s.Get("Ta")
	ta.Data[150] = missing

	a := newFakeAdapter(s)
	orch, _, _ := newOrchestrator(s, a, 50)

	job := fcJob()
	job.Window = s.Window(100, 199)
	res := orch.Run(context.Background(), job)
	require.Equal(t, StatusFilled, res.Status)
	assert.Equal(t, 99, res.Filled)

	out, ok := s.Get("Fc_SOLO")
	require.True(t, ok)
	for i := 0; i < s.Len(); i++ {
		switch {
		case i == 150 || i < 100 || i > 199:
			assert.True(t, s.IsMissing(out.Data[i]), "row %d should stay missing", i)
			assert.NotEqual(t, contracts.FlagModelled, out.Flag[i])
		default:
			assert.Equal(t, ta.Data[i]+0.5, out.Data[i], "row %d", i)
			assert.Equal(t, contracts.FlagModelled, out.Flag[i])
		}
	}
	assert.Equal(t, "CO2 flux"+timeseries.ModelledSuffix, out.Attr["long_name"])
	assert.Equal(t, "umol/m^2/s", out.Attr["units"])
}

func TestOrchestrator_MissingStageThreeArtifact(t *testing.T) {
	s := newStore(t, 480, all)
	a := newFakeAdapter(s)
	a.fail[contracts.StageSeqSOLO] = true
	orch, agg, sink := newOrchestrator(s, a, 50)

	job := fcJob()
	job.Window = s.Window(0, 95)

	_, err := s.EnsureOutput(job.Output, job.Target)
	require.NoError(t, err)
	before, err := s.Slice(job.Output, s.Window(0, s.Len()-1))
	require.NoError(t, err)

	res := orch.Run(context.Background(), job)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, contracts.ErrToolchainInvocation))
	var gfErr *contracts.GapFillError
	require.True(t, errors.As(res.Err, &gfErr))
	assert.Equal(t, "Fc_SOLO", gfErr.Output)

	after, err := s.Slice(job.Output, s.Window(0, s.Len()-1))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, agg.Len())
	assert.Equal(t, 1, sink.count(contracts.EventOutputFailed))
}

func TestOrchestrator_StageOneFailureStopsOutput(t *testing.T) {
	s := newStore(t, 480, all)
	a := newFakeAdapter(s)
	a.fail[contracts.StageSOFM] = true
	orch, _, _ := newOrchestrator(s, a, 50)

	job := fcJob()
	job.Window = s.Window(0, 95)
	res := orch.Run(context.Background(), job)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []contracts.Stage{contracts.StageSOFM}, a.stages())
}

func TestOrchestrator_NodeResolution(t *testing.T) {
	s := newStore(t, 480, all)
	a := newFakeAdapter(s)
	orch, _, _ := newOrchestrator(s, a, 50)

	job := fcJob()
	job.Window = s.Window(0, 95)
	res := orch.Run(context.Background(), job)
	assert.Equal(t, 3, res.Nodes)

	job.Settings.Nodes = 7
	res = orch.Run(context.Background(), job)
	assert.Equal(t, 7, res.Nodes)
	assert.Equal(t, []int{3, 7}, a.nodes)
}

func TestOrchestrator_UnknownDriver(t *testing.T) {
	s := newStore(t, 480, all)
	a := newFakeAdapter(s)
	orch, agg, _ := newOrchestrator(s, a, 50)

	job := fcJob()
	job.Drivers = []string{"Ta", "Nope"}
	job.Window = s.Window(0, 95)
	res := orch.Run(context.Background(), job)

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, errors.Is(res.Err, contracts.ErrConfiguration))
	assert.Equal(t, 0, agg.Len())
	assert.Empty(t, a.stages())
}

func TestOrchestrator_RunWindowStopsOnCancel(t *testing.T) {
	s := newStore(t, 480, all)
	a := newFakeAdapter(s)
	orch, _, _ := newOrchestrator(s, a, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := orch.RunWindow(ctx, s.Window(0, 95), []contracts.GapFillJob{fcJob(), fcJob()})
	assert.Empty(t, results)
}
