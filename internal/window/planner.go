package window

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/sessionconfig"
	"github.com/wonny/solofill/internal/timeseries"
)

// Params selects the windowing strategy
type Params struct {
	Strategy string    // sessionconfig.StrategyManual / Monthly / Daily
	Start    time.Time // zero = first timestamp of the record
	End      time.Time // manual only, zero = last timestamp of the record
	Months   int
	Days     int
}

// ParamsFromConfig extracts planner parameters from a session config
func ParamsFromConfig(cfg *sessionconfig.Config) (Params, error) {
	p := Params{
		Strategy: cfg.Window.Strategy,
		Months:   cfg.Window.Months,
		Days:     cfg.Window.Days,
	}
	start, ok, err := cfg.StartTime()
	if err != nil {
		return p, fmt.Errorf("window.start_date: %w", err)
	}
	if ok {
		p.Start = start
	}
	end, ok, err := cfg.EndTime()
	if err != nil {
		return p, fmt.Errorf("window.end_date: %w", err)
	}
	if ok {
		p.End = end
	}
	return p, nil
}

// Planner yields the ordered windows of one session.
// It is finite and cannot be restarted.
type Planner struct {
	store  *timeseries.Store
	params Params
	log    zerolog.Logger

	cursor  time.Time
	done    bool
	skipped int
}

// NewPlanner creates a planner over the store's time base
func NewPlanner(store *timeseries.Store, params Params, log zerolog.Logger) (*Planner, error) {
	switch params.Strategy {
	case sessionconfig.StrategyManual:
	case sessionconfig.StrategyMonthly:
		if params.Months < 1 {
			return nil, fmt.Errorf("monthly strategy needs months >= 1: %w", contracts.ErrConfiguration)
		}
	case sessionconfig.StrategyDaily:
		if params.Days < 1 {
			return nil, fmt.Errorf("daily strategy needs days >= 1: %w", contracts.ErrConfiguration)
		}
	default:
		return nil, fmt.Errorf("unknown window strategy %q: %w", params.Strategy, contracts.ErrConfiguration)
	}

	p := &Planner{
		store:  store,
		params: params,
		log:    log.With().Str("component", "planner").Str("strategy", params.Strategy).Logger(),
		done:   store.Len() == 0,
	}
	if !p.done {
		p.cursor = params.Start
		if p.cursor.IsZero() {
			p.cursor = store.Times()[0]
		}
	}
	return p, nil
}

// Next returns the next processable window; ok is false once exhausted.
// Windows whose start index is not before their end index are logged and skipped.
func (p *Planner) Next() (contracts.Window, bool) {
	for !p.done {
		w, ok := p.advance()
		if !ok {
			p.done = true
			break
		}
		if w.IsEmpty() {
			p.skipped++
			p.log.Warn().
				Int("start_index", w.StartIndex).
				Int("end_index", w.EndIndex).
				Msg("window end index not after start index, skipping")
			continue
		}
		return w, true
	}
	return contracts.Window{}, false
}

// Skipped returns the number of empty windows skipped so far
func (p *Planner) Skipped() int {
	return p.skipped
}

// All drains the planner
func (p *Planner) All() []contracts.Window {
	var out []contracts.Window
	for {
		w, ok := p.Next()
		if !ok {
			return out
		}
		out = append(out, w)
	}
}

func (p *Planner) advance() (contracts.Window, bool) {
	times := p.store.Times()
	recordEnd := times[len(times)-1]

	if p.params.Strategy == sessionconfig.StrategyManual {
		p.done = true
		start, end := p.cursor, p.params.End
		if end.IsZero() {
			end = recordEnd
		}
		if p.params.Start.IsZero() && p.params.End.IsZero() {
			p.log.Warn().Msg("no start and end date given, using the whole record as one window")
		}
		return p.store.Resolve(start, end), true
	}

	if !p.cursor.Before(recordEnd) {
		return contracts.Window{}, false
	}

	start := p.cursor
	var end time.Time
	if p.params.Strategy == sessionconfig.StrategyMonthly {
		end = addMonths(start, p.params.Months)
	} else {
		end = start.AddDate(0, 0, p.params.Days)
	}
	if end.After(recordEnd) {
		end = recordEnd
	}
	p.cursor = end

	return p.store.Resolve(start, end), true
}

// addMonths moves t by n calendar months, clamping the day to the end of the
// target month so 31 Jan plus one month is 28 or 29 Feb.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}
