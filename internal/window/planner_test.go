package window

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/sessionconfig"
	"github.com/wonny/solofill/internal/timeseries"
)

var base = time.Date(2015, 1, 1, 0, 30, 0, 0, time.UTC)

func record(t *testing.T, n int) *timeseries.Store {
	t.Helper()
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * 30 * time.Minute)
	}
	s := timeseries.New(times, 30*time.Minute, -9999)
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc", Data: make([]float64, n)}))
	return s
}

func plan(t *testing.T, s *timeseries.Store, p Params) ([]contracts.Window, *Planner) {
	t.Helper()
	planner, err := NewPlanner(s, p, zerolog.Nop())
	require.NoError(t, err)
	return planner.All(), planner
}

func TestPlanner_ManualWholeRecord(t *testing.T) {
	s := record(t, 480)
	windows, _ := plan(t, s, Params{Strategy: sessionconfig.StrategyManual})

	require.Len(t, windows, 1)
	assert.Equal(t, 0, windows[0].StartIndex)
	assert.Equal(t, 479, windows[0].EndIndex)
}

func TestPlanner_ManualRange(t *testing.T) {
	s := record(t, 480)
	windows, _ := plan(t, s, Params{
		Strategy: sessionconfig.StrategyManual,
		Start:    base.Add(48 * 30 * time.Minute),
		End:      base.Add(143 * 30 * time.Minute),
	})

	require.Len(t, windows, 1)
	assert.Equal(t, 48, windows[0].StartIndex)
	assert.Equal(t, 143, windows[0].EndIndex)
	assert.Equal(t, 96, windows[0].Length())
}

func TestPlanner_ManualInvertedIsSkipped(t *testing.T) {
	s := record(t, 480)
	windows, planner := plan(t, s, Params{
		Strategy: sessionconfig.StrategyManual,
		Start:    base.Add(100 * 30 * time.Minute),
		End:      base.Add(50 * 30 * time.Minute),
	})

	assert.Empty(t, windows)
	assert.Equal(t, 1, planner.Skipped())

	// exhausted planners stay exhausted
	_, ok := planner.Next()
	assert.False(t, ok)
}

func TestPlanner_DailyCoversRecord(t *testing.T) {
	// 10 days of half-hourly data
	s := record(t, 480)
	windows, _ := plan(t, s, Params{Strategy: sessionconfig.StrategyDaily, Days: 3})

	require.Len(t, windows, 4)
	assert.Equal(t, 0, windows[0].StartIndex)
	assert.Equal(t, 144, windows[0].EndIndex)
	for i := 1; i < len(windows); i++ {
		// consecutive windows share their boundary sample only
		assert.Equal(t, windows[i-1].EndIndex, windows[i].StartIndex)
	}
	last := windows[len(windows)-1]
	assert.Equal(t, 479, last.EndIndex)
	assert.False(t, last.End.After(s.Times()[479]))
}

func TestPlanner_MonthlyClipsLastWindow(t *testing.T) {
	// 1 Jan 00:30 to 15 Mar
	s := record(t, (31+28+14)*48)
	windows, _ := plan(t, s, Params{Strategy: sessionconfig.StrategyMonthly, Months: 1})

	require.Len(t, windows, 3)
	assert.Equal(t, time.February, windows[0].End.Month())
	assert.Equal(t, time.March, windows[1].End.Month())
	assert.Equal(t, s.Len()-1, windows[2].EndIndex)

	covered := make([]bool, s.Len())
	for _, w := range windows {
		for i := w.StartIndex; i <= w.EndIndex; i++ {
			covered[i] = true
		}
	}
	for i, c := range covered {
		assert.True(t, c, "sample %d not covered", i)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"mid month", time.Date(2015, 1, 15, 0, 30, 0, 0, time.UTC), 1, time.Date(2015, 2, 15, 0, 30, 0, 0, time.UTC)},
		{"31 Jan into leap Feb", time.Date(2024, 1, 31, 0, 30, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 30, 0, 0, time.UTC)},
		{"31 Jan into Feb", time.Date(2015, 1, 31, 12, 0, 0, 0, time.UTC), 1, time.Date(2015, 2, 28, 12, 0, 0, 0, time.UTC)},
		{"31 Mar into Jun", time.Date(2015, 3, 31, 0, 0, 0, 0, time.UTC), 3, time.Date(2015, 6, 30, 0, 0, 0, 0, time.UTC)},
		{"30 Nov across year", time.Date(2015, 11, 30, 0, 0, 0, 0, time.UTC), 3, time.Date(2016, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"31 Aug into Sep", time.Date(2015, 8, 31, 23, 30, 0, 0, time.UTC), 1, time.Date(2015, 9, 30, 23, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addMonths(tt.in, tt.n))
		})
	}
}

func TestPlanner_MonthlyFromMonthEnd(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 30, 0, 0, time.UTC)
	n := 70 * 48
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * 30 * time.Minute)
	}
	s := timeseries.New(times, 30*time.Minute, -9999)
	require.NoError(t, s.Add(&timeseries.Series{Label: "Fc", Data: make([]float64, n)}))

	windows, _ := plan(t, s, Params{Strategy: sessionconfig.StrategyMonthly, Months: 1})

	require.Len(t, windows, 3)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 30, 0, 0, time.UTC), windows[0].End)
	assert.Equal(t, time.Date(2024, 3, 29, 0, 30, 0, 0, time.UTC), windows[1].End)
	assert.Equal(t, s.Len()-1, windows[2].EndIndex)
}

func TestPlanner_StartDateAfterRecord(t *testing.T) {
	s := record(t, 96)
	windows, _ := plan(t, s, Params{
		Strategy: sessionconfig.StrategyDaily,
		Days:     1,
		Start:    base.AddDate(1, 0, 0),
	})
	assert.Empty(t, windows)
}

func TestNewPlanner_InvalidParams(t *testing.T) {
	s := record(t, 48)

	_, err := NewPlanner(s, Params{Strategy: "weekly"}, zerolog.Nop())
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	_, err = NewPlanner(s, Params{Strategy: sessionconfig.StrategyMonthly}, zerolog.Nop())
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := sessionconfig.Default()
	cfg.Window.Strategy = sessionconfig.StrategyMonthly
	cfg.Window.StartDate = "2015-02-01 00:00"

	p, err := ParamsFromConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 2, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.True(t, p.End.IsZero())
	assert.Equal(t, 1, p.Months)
}
