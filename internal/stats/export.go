package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/timeseries"
)

// ExportHeader returns the column names of the statistics CSV
func ExportHeader() []string {
	header := []string{"seq", "output", "start_date", "end_date", "num_points"}
	return append(header, contracts.MetricNames()...)
}

// WriteCSV writes records in run order, one row each
func WriteCSV(w io.Writer, records []contracts.FitStatisticsRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader()); err != nil {
		return err
	}

	for i, r := range records {
		row := []string{
			strconv.Itoa(i + 1),
			r.Output,
			r.Start.Format(contracts.DateTimeLayout),
			r.End.Format(contracts.DateTimeLayout),
			strconv.Itoa(r.NumPoints),
		}
		for _, v := range r.Metrics() {
			row = append(row, timeseries.FormatValue(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the statistics CSV to path
func WriteCSVFile(path string, records []contracts.FitStatisticsRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create stats directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write stats file: %w", err)
	}
	return f.Close()
}
