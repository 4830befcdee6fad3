package toolchain

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// filterColumns returns how many leading columns must be free of missing
// values for a row to be retained. Stage 3 keeps rows with a missing target
// so the simulator can model them.
func filterColumns(ncols int, keepMissingTarget bool) int {
	if keepMissingTarget {
		return ncols - 1
	}
	return ncols
}

// retainedRows returns the row positions whose first nfilter columns are all present
func retainedRows(columns [][]float64, nfilter int, isMissing func(float64) bool) []int {
	if len(columns) == 0 {
		return nil
	}
	n := len(columns[0])
	keep := make([]int, 0, n)
rows:
	for i := 0; i < n; i++ {
		for c := 0; c < nfilter; c++ {
			if isMissing(columns[c][i]) {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	return keep
}

// writeDataFile writes the retained rows as comma-separated values.
// Output depends only on the inputs, so reruns produce identical files.
func writeDataFile(path string, columns [][]float64, keep []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	var sb strings.Builder
	for _, i := range keep {
		sb.Reset()
		for c := range columns {
			if c > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(formatNumber(columns[c][i]))
		}
		sb.WriteByte('\n')
		if _, err := w.WriteString(sb.String()); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readSecondColumn parses a whitespace-separated numeric file and returns its
// second column, one value per non-empty line
func readSecondColumn(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []float64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected at least 2 columns, got %d", line, len(fields))
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
