package timeseries

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/solofill/internal/contracts"
)

// Eps is the tolerance used when comparing against the missing-value sentinel
const Eps = 1e-6

// ModelledSuffix is appended once to long_name of a filled output series
const ModelledSuffix = ", modeled by SOLO"

// Series is one labelled variable on the store's time base
type Series struct {
	Label string
	Data  []float64
	Flag  []int32
	Attr  map[string]string
}

// Store holds every series of a record on one shared time base
// ⭐ SSOT: all series have len(times) samples, enforced by Add
type Store struct {
	times   []time.Time
	step    time.Duration
	missing float64
	series  map[string]*Series
	order   []string
}

// New creates an empty store over the given time base
func New(times []time.Time, step time.Duration, missing float64) *Store {
	return &Store{
		times:   times,
		step:    step,
		missing: missing,
		series:  make(map[string]*Series),
	}
}

// Len returns the number of samples in the record
func (s *Store) Len() int { return len(s.times) }

// Times returns the shared time base
func (s *Store) Times() []time.Time { return s.times }

// TimeStep returns the sampling interval
func (s *Store) TimeStep() time.Duration { return s.step }

// MissingValue returns the sentinel
func (s *Store) MissingValue() float64 { return s.missing }

// Labels returns the series labels in insertion order
func (s *Store) Labels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Add inserts or replaces a series
func (s *Store) Add(series *Series) error {
	if len(series.Data) != len(s.times) {
		return fmt.Errorf("series %s: %d samples, record has %d", series.Label, len(series.Data), len(s.times))
	}
	if series.Flag == nil {
		series.Flag = make([]int32, len(series.Data))
		for i, v := range series.Data {
			if s.IsMissing(v) {
				series.Flag[i] = 1
			}
		}
	}
	if len(series.Flag) != len(series.Data) {
		return fmt.Errorf("series %s: %d flags for %d samples", series.Label, len(series.Flag), len(series.Data))
	}
	if series.Attr == nil {
		series.Attr = make(map[string]string)
	}
	if _, ok := s.series[series.Label]; !ok {
		s.order = append(s.order, series.Label)
	}
	s.series[series.Label] = series
	return nil
}

// Get returns the series with the given label
func (s *Store) Get(label string) (*Series, bool) {
	series, ok := s.series[label]
	return series, ok
}

// MustGet returns the series or an ErrConfiguration error naming the label
func (s *Store) MustGet(label string) (*Series, error) {
	series, ok := s.series[label]
	if !ok {
		return nil, fmt.Errorf("series %q not in record: %w", label, contracts.ErrConfiguration)
	}
	return series, nil
}

// EnsureOutput returns the output series, creating it all-missing with the
// target's attributes when the record does not carry it yet
func (s *Store) EnsureOutput(output, target string) (*Series, error) {
	if series, ok := s.series[output]; ok {
		return series, nil
	}
	tgt, err := s.MustGet(target)
	if err != nil {
		return nil, err
	}

	series := &Series{
		Label: output,
		Data:  make([]float64, s.Len()),
		Flag:  make([]int32, s.Len()),
		Attr:  make(map[string]string, len(tgt.Attr)),
	}
	for i := range series.Data {
		series.Data[i] = s.missing
		series.Flag[i] = 1
	}
	for k, v := range tgt.Attr {
		series.Attr[k] = v
	}
	if series.Attr["long_name"] == "" {
		series.Attr["long_name"] = target
	}
	return series, s.Add(series)
}

// IsMissing reports whether v stands for "no data"
func (s *Store) IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v-s.missing) < Eps
}

// Slice returns a copy of the series values inside the window
func (s *Store) Slice(label string, w contracts.Window) ([]float64, error) {
	series, err := s.MustGet(label)
	if err != nil {
		return nil, err
	}
	if w.StartIndex < 0 || w.EndIndex >= s.Len() || w.EndIndex < w.StartIndex {
		return nil, fmt.Errorf("window [%d:%d] outside record of %d samples", w.StartIndex, w.EndIndex, s.Len())
	}
	out := make([]float64, w.Length())
	copy(out, series.Data[w.StartIndex:w.EndIndex+1])
	return out, nil
}

// CountGood counts non-missing values of label in [si, ei]
func (s *Store) CountGood(label string, si, ei int) int {
	series, ok := s.series[label]
	if !ok {
		return 0
	}
	si, ei = s.clamp(si), s.clamp(ei)
	n := 0
	for i := si; i <= ei; i++ {
		if !s.IsMissing(series.Data[i]) {
			n++
		}
	}
	return n
}

// GoodCounts holds cumulative good-value counts of one series.
// The series must not change while the counts are in use.
type GoodCounts []int

// GoodCounts returns the running count of good values of label;
// an unknown label counts as all missing
func (s *Store) GoodCounts(label string) GoodCounts {
	c := make(GoodCounts, len(s.times)+1)
	series, ok := s.series[label]
	for i := range s.times {
		c[i+1] = c[i]
		if ok && !s.IsMissing(series.Data[i]) {
			c[i+1]++
		}
	}
	return c
}

// Between returns the number of good values in [si, ei], clamped to the record
func (c GoodCounts) Between(si, ei int) int {
	last := len(c) - 2
	if last < 0 {
		return 0
	}
	si, ei = min(max(si, 0), last), min(max(ei, 0), last)
	if ei < si {
		return 0
	}
	return c[ei+1] - c[si]
}

// Scatter writes values at the absolute rows and flags each as modelled.
// The first write to a series also marks its long_name.
func (s *Store) Scatter(label string, rows []int, values []float64) error {
	series, err := s.MustGet(label)
	if err != nil {
		return err
	}
	if len(rows) != len(values) {
		return fmt.Errorf("scatter %s: %d rows for %d values", label, len(rows), len(values))
	}
	for _, r := range rows {
		if r < 0 || r >= s.Len() {
			return fmt.Errorf("scatter %s: row %d outside record", label, r)
		}
	}
	for i, r := range rows {
		series.Data[r] = values[i]
		series.Flag[r] = contracts.FlagModelled
	}
	if !strings.HasSuffix(series.Attr["long_name"], ModelledSuffix) {
		series.Attr["long_name"] += ModelledSuffix
	}
	return nil
}

// StartIndex returns the first index whose time is at or after t
func (s *Store) StartIndex(t time.Time) int {
	i := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(t) })
	return s.clamp(i)
}

// EndIndex returns the last index whose time is at or before t
func (s *Store) EndIndex(t time.Time) int {
	i := sort.Search(len(s.times), func(i int) bool { return s.times[i].After(t) })
	return s.clamp(i - 1)
}

// Window builds a window over the absolute indices [si, ei], clamped to the record
func (s *Store) Window(si, ei int) contracts.Window {
	si, ei = s.clamp(si), s.clamp(ei)
	w := contracts.Window{StartIndex: si, EndIndex: ei}
	if s.Len() > 0 {
		w.Start = s.times[si]
		w.End = s.times[ei]
	}
	return w
}

// Resolve maps a time range onto record indices
func (s *Store) Resolve(start, end time.Time) contracts.Window {
	return s.Window(s.StartIndex(start), s.EndIndex(end))
}

func (s *Store) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if n := s.Len(); i >= n {
		if n == 0 {
			return 0
		}
		return n - 1
	}
	return i
}

// Region is a contiguous run of missing samples, inclusive at both ends
type Region struct {
	Start int
	End   int
}

// Length returns the number of samples in the region
func (r Region) Length() int { return r.End - r.Start + 1 }

// MissingRegions scans label for contiguous missing runs in ascending order
func (s *Store) MissingRegions(label string) []Region {
	series, ok := s.series[label]
	if !ok {
		return nil
	}
	var regions []Region
	start := -1
	for i, v := range series.Data {
		if s.IsMissing(v) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			regions = append(regions, Region{Start: start, End: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		regions = append(regions, Region{Start: start, End: len(series.Data) - 1})
	}
	return regions
}
