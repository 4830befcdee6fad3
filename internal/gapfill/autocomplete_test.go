package gapfill

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/timeseries"
)

// addFilledOutput adds Fc_SOLO as a copy of Fc, as if the main pass had filled it
func addFilledOutput(t *testing.T, s *timeseries.Store) {
	t.Helper()
	fc, ok := s.Get("Fc")
	require.True(t, ok)
	data := append([]float64(nil), fc.Data...)
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc_SOLO", Data: data}))
}

func isolatedGap(i int) bool { return i < 500 || i > 502 }

func TestAutoCompleter_IsolatedGap(t *testing.T) {
	// 1000 samples, 48 per day, min_percent 20, gap at [500, 502]
	s := newStore(t, 1000, isolatedGap)
	addFilledOutput(t, s)
	a := newFakeAdapter(s)
	orch, agg, _ := newOrchestrator(s, a, 20)

	ac := NewAutoCompleter(orch, s, 48, 20, testLogger())
	res := ac.Run(context.Background(), []contracts.GapFillJob{fcJob()})

	assert.Equal(t, 1, res.Gaps)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 0, res.Exhausted)
	assert.Equal(t, 1, res.Expansions)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, 452, res.Runs[0].Window.StartIndex)
	assert.Equal(t, 550, res.Runs[0].Window.EndIndex)

	out, _ := s.Get("Fc_SOLO")
	for i := 500; i <= 502; i++ {
		assert.False(t, s.IsMissing(out.Data[i]), "row %d still missing", i)
		assert.Equal(t, contracts.FlagModelled, out.Flag[i])
	}
	assert.Empty(t, s.MissingRegions("Fc_SOLO"))
	assert.Equal(t, 1, agg.Len())
}

func TestAutoCompleter_Deterministic(t *testing.T) {
	run := func() []contracts.Window {
		s := newStore(t, 1000, isolatedGap)
		addFilledOutput(t, s)
		orch, _, _ := newOrchestrator(s, newFakeAdapter(s), 20)
		res := NewAutoCompleter(orch, s, 48, 20, testLogger()).Run(context.Background(), []contracts.GapFillJob{fcJob()})

		var windows []contracts.Window
		for _, r := range res.Runs {
			windows = append(windows, r.Window)
		}
		return windows
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("expansion windows differ between runs (-first +second):\n%s", diff)
	}
}

func TestAutoCompleter_ExhaustedWindow(t *testing.T) {
	n := 300
	s := newStore(t, n, func(int) bool { return false })
	fc, _ := s.Get("Fc")
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	data[100], data[101], data[102] = missing, missing, missing
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc_SOLO", Data: data, Attr: fc.Attr}))

	a := newFakeAdapter(s)
	orch, agg, sink := newOrchestrator(s, a, 20)
	res := NewAutoCompleter(orch, s, 48, 20, testLogger()).Run(context.Background(), []contracts.GapFillJob{fcJob()})

	assert.Equal(t, 1, res.Gaps)
	assert.Equal(t, 1, res.Exhausted)
	assert.Equal(t, 0, res.Filled)
	assert.LessOrEqual(t, res.Expansions, int(math.Ceil(float64(n)/48)))
	require.Len(t, res.Errors, 1)
	assert.True(t, errors.Is(res.Errors[0], contracts.ErrExhaustedWindow))
	assert.Empty(t, a.stages())
	assert.Equal(t, 0, agg.Len())
	assert.Equal(t, 1, sink.count(contracts.EventGapExhausted))
}

func TestAutoCompleter_TerminatesWhenDriversLeaveGap(t *testing.T) {
	s := newStore(t, 1000, isolatedGap)
	addFilledOutput(t, s)
	ta, _ := s.Get("Ta")
	ta.Data[501] = missing

	orch, _, _ := newOrchestrator(s, newFakeAdapter(s), 20)
	res := NewAutoCompleter(orch, s, 48, 20, testLogger()).Run(context.Background(), []contracts.GapFillJob{fcJob()})

	// row 501 cannot be modelled; the pass still ends after one gap
	assert.Equal(t, 1, res.Gaps)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, []timeseries.Region{{Start: 501, End: 501}}, s.MissingRegions("Fc_SOLO"))
}

func TestAutoCompleter_SparseTargetIsExhausted(t *testing.T) {
	// target good on every 10th row only; a window never reaches 50 %
	n := 1000
	s := newStore(t, n, func(i int) bool { return i%10 == 0 })
	fc, _ := s.Get("Fc")
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	data[501], data[502] = missing, missing
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc_SOLO", Data: data, Attr: fc.Attr}))

	a := newFakeAdapter(s)
	orch, agg, sink := newOrchestrator(s, a, 50)
	res := NewAutoCompleter(orch, s, 48, 50, testLogger()).Run(context.Background(), []contracts.GapFillJob{fcJob()})

	assert.Equal(t, 1, res.Gaps)
	assert.Equal(t, 1, res.Exhausted)
	assert.Empty(t, res.Runs)
	assert.LessOrEqual(t, res.Expansions, int(math.Ceil(float64(n)/48)))
	require.Len(t, res.Errors, 1)
	assert.True(t, errors.Is(res.Errors[0], contracts.ErrExhaustedWindow))
	assert.Empty(t, a.stages())
	assert.Equal(t, 0, agg.Len())
	assert.Equal(t, 1, sink.count(contracts.EventGapExhausted))
	assert.Zero(t, sink.count(contracts.EventOutputSkipped))
}

func TestAutoCompleter_Expand(t *testing.T) {
	// first 120 of 200 rows good
	s := newStore(t, 200, func(i int) bool { return i < 120 })

	tests := []struct {
		name       string
		minPercent float64
		region     timeseries.Region
		wantSI     int
		wantEI     int
		expansions int
		ok         bool
	}{
		{"already enough", 50, timeseries.Region{Start: 0, End: 9}, 0, 9, 0, true},
		{"one step", 40, timeseries.Region{Start: 120, End: 123}, 72, 171, 1, true},
		{"threshold grows with window", 50, timeseries.Region{Start: 150, End: 151}, 6, 199, 3, true},
		{"whole record short", 70, timeseries.Region{Start: 150, End: 160}, 0, 199, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch, _, _ := newOrchestrator(s, newFakeAdapter(s), tt.minPercent)
			ac := NewAutoCompleter(orch, s, 48, tt.minPercent, testLogger())

			si, ei, n, ok := ac.Expand("Fc", tt.region)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantSI, si)
			assert.Equal(t, tt.wantEI, ei)
			assert.Equal(t, tt.expansions, n)
			if ok {
				assert.GreaterOrEqual(t, s.CountGood("Fc", si, ei), MinimumPoints(ei-si+1, tt.minPercent))
			}
		})
	}
}
