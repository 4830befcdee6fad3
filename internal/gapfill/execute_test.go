package gapfill

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/internal/timeseries"
)

func writeRecord(t *testing.T, path string, n int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("DateTime,Ta,Sws,Fc\n")
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * 30 * time.Minute).Format("2006-01-02 15:04")
		ta := float64(i % 48)
		fc := "-9999"
		if i%4 != 0 {
			fc = fmt.Sprint(ta + 0.5)
		}
		fmt.Fprintf(&sb, "%s,%v,0.5,%s\n", ts, ta, fc)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, filepath.Join(dir, "in.csv"), 144)

	session := fmt.Sprintf(`
session:
  site_name: Test Site
  time_step: 30
window:
  strategy: daily
  days: 1
  min_percent: 50
outputs:
  - output: Fc_SOLO
    target: Fc
    drivers: [Ta, Sws]
input:
  path: %[1]s/in.csv
output:
  path: %[1]s/out/filled.csv
  stats_path: %[1]s/out/stats.csv
`, filepath.ToSlash(dir))
	sessionPath := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(sessionPath, []byte(session), 0o644))

	res, err := RunFile(context.Background(), sessionPath,
		Defaults{WorkDir: filepath.Join(dir, "work")},
		Options{Runner: sumRunner{}}, Sinks{}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Windows)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 0, res.Failures())

	f, err := os.Open(filepath.Join(dir, "out", "filled.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 145)
	// timestamp, four series, four flags
	require.Len(t, rows[0], 9)
	assert.Equal(t, []string{"DateTime", "Ta", "Sws", "Fc", "Fc_SOLO"}, rows[0][:5])
	assert.Equal(t, "Fc_SOLO"+timeseries.FlagSuffix, rows[0][8])
	assert.Equal(t, "0.5", rows[1][4])
	assert.Equal(t, "30", rows[1][8])

	statsFile, err := os.ReadFile(filepath.Join(dir, "out", "stats.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(statsFile), strings.Join(stats.ExportHeader(), ",")))

	assert.DirExists(t, filepath.Join(dir, "work", "solo", "inf"))
}

func TestRunFile_InvalidSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window:\n  strategy: weekly\n"), 0o644))

	res, err := RunFile(context.Background(), path, Defaults{}, Options{}, Sinks{}, testLogger())
	assert.Error(t, err)
	assert.Nil(t, res)
}
