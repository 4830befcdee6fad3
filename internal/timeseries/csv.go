package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FlagSuffix names the quality-flag column of a series in CSV files
const FlagSuffix = "_QCFlag"

// CSVOptions describes the layout of a record file
type CSVOptions struct {
	DateTimeColumn string
	DateTimeFormat string
	MissingValue   float64
	TimeStep       time.Duration // 0 = infer from the first two rows
}

// ReadCSVFile opens path and reads a record from it
func ReadCSVFile(path string, opts CSVOptions) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record: %w", err)
	}
	defer f.Close()

	store, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// ReadCSV reads a record with one timestamp column and one column per series.
// Columns named "<label>_QCFlag" are read as the flags of <label>. Empty and
// unparsable cells become the missing-value sentinel.
func ReadCSV(r io.Reader, opts CSVOptions) (*Store, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	timeCol := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == opts.DateTimeColumn {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("datetime column %q not found", opts.DateTimeColumn)
	}

	var times []time.Time
	columns := make([][]string, len(header))
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t, err := time.Parse(opts.DateTimeFormat, strings.TrimSpace(row[timeCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		times = append(times, t)
		for i, cell := range row {
			columns[i] = append(columns[i], cell)
		}
	}
	if len(times) == 0 {
		return nil, errors.New("record has no rows")
	}

	step, err := checkTimeBase(times, opts.TimeStep)
	if err != nil {
		return nil, err
	}

	store := New(times, step, opts.MissingValue)
	flags := make(map[string][]int32)
	for i, label := range header {
		if i == timeCol || !strings.HasSuffix(label, FlagSuffix) {
			continue
		}
		f := make([]int32, len(times))
		for j, cell := range columns[i] {
			v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 32)
			if err == nil {
				f[j] = int32(v)
			}
		}
		flags[strings.TrimSuffix(label, FlagSuffix)] = f
	}

	for i, label := range header {
		if i == timeCol || strings.HasSuffix(label, FlagSuffix) {
			continue
		}
		data := make([]float64, len(times))
		for j, cell := range columns[i] {
			data[j] = parseValue(cell, opts.MissingValue)
		}
		if err := store.Add(&Series{Label: label, Data: data, Flag: flags[label]}); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func parseValue(cell string, missing float64) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return missing
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || v != v {
		return missing
	}
	return v
}

// checkTimeBase verifies the timestamps are evenly spaced and returns the step
func checkTimeBase(times []time.Time, step time.Duration) (time.Duration, error) {
	if len(times) < 2 {
		if step == 0 {
			return 0, errors.New("cannot infer time step from a single row")
		}
		return step, nil
	}
	if step == 0 {
		step = times[1].Sub(times[0])
	}
	if step <= 0 {
		return 0, fmt.Errorf("time step must be positive, got %v", step)
	}
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d != step {
			return 0, fmt.Errorf("row %d: gap of %v between timestamps, expected %v", i+2, d, step)
		}
	}
	return step, nil
}

// WriteCSVFile writes the store to path, creating parent directories
func WriteCSVFile(path string, s *Store, opts CSVOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if err := WriteCSV(f, s, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes the timestamp column, every series, then every flag column
func WriteCSV(w io.Writer, s *Store, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	labels := s.Labels()

	header := make([]string, 0, 1+2*len(labels))
	header = append(header, opts.DateTimeColumn)
	header = append(header, labels...)
	for _, l := range labels {
		header = append(header, l+FlagSuffix)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, t := range s.Times() {
		row[0] = t.Format(opts.DateTimeFormat)
		for j, l := range labels {
			series, _ := s.Get(l)
			row[1+j] = FormatValue(series.Data[i])
			row[1+len(labels)+j] = strconv.FormatInt(int64(series.Flag[i]), 10)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatValue renders v in the shortest decimal form that parses back to v
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
