package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/solofill/internal/contracts"
)

// Adapter drives the three executables through the file protocol
// ⭐ SSOT: the only code that touches the work area files
type Adapter struct {
	layout    Layout
	runner    Runner
	missing   float64
	isMissing func(float64) bool
	log       zerolog.Logger
}

// NewAdapter creates an adapter over a work area.
// isMissing decides which values are stripped from data files.
func NewAdapter(layout Layout, runner Runner, missing float64, isMissing func(float64) bool, log zerolog.Logger) *Adapter {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Adapter{
		layout:    layout,
		runner:    runner,
		missing:   missing,
		isMissing: isMissing,
		log:       log.With().Str("component", "toolchain").Logger(),
	}
}

// Layout returns the work area layout
func (a *Adapter) Layout() Layout {
	return a.layout
}

// WriteDescriptors implements contracts.ToolchainAdapter
func (a *Adapter) WriteDescriptors(job contracts.GapFillJob, nodes int) error {
	if err := a.layout.EnsureDirs(); err != nil {
		return err
	}
	return WriteDescriptors(a.layout, ParamsFor(job.Settings, nodes, a.missing))
}

// Run implements contracts.ToolchainAdapter.
// columns are drivers first then, for stages 2 and 3, the target; offset is
// the absolute record index of row 0.
func (a *Adapter) Run(_ context.Context, stage contracts.Stage, columns [][]float64, offset int) contracts.ToolchainRunResult {
	res := contracts.ToolchainRunResult{Stage: stage, ExitCode: -1}
	log := a.log.With().Str("stage", stage.String()).Logger()

	if err := validateColumns(stage, columns); err != nil {
		res.Err = fmt.Errorf("%s: %w: %w", stage, contracts.ErrToolchainInvocation, err)
		return res
	}

	keep := retainedRows(columns, filterColumns(len(columns), stage == contracts.StageSeqSOLO), a.isMissing)
	if dropped := len(columns[0]) - len(keep); dropped > 0 {
		ev := log.Debug()
		if stage == contracts.StageSOFM {
			ev = log.Info()
		}
		ev.Int("dropped", dropped).Int("retained", len(keep)).Msg("rows with missing values removed")
	}
	if len(keep) == 0 {
		res.Err = fmt.Errorf("%s: %w: no rows left after removing missing values", stage, contracts.ErrToolchainInvocation)
		return res
	}

	if err := a.layout.EnsureDirs(); err != nil {
		res.Err = fmt.Errorf("%s: %w: %w", stage, contracts.ErrToolchainInvocation, err)
		return res
	}
	if err := writeDataFile(a.layout.Abs(a.layout.Input(stage)), columns, keep); err != nil {
		res.Err = fmt.Errorf("%s: %w: write data file: %w", stage, contracts.ErrToolchainInvocation, err)
		return res
	}

	artifact := a.layout.Abs(a.layout.Artifact(stage))
	if err := os.Remove(artifact); err != nil && !errors.Is(err, fs.ErrNotExist) {
		res.Err = fmt.Errorf("%s: %w: remove stale artifact: %w", stage, contracts.ErrToolchainInvocation, err)
		return res
	}

	exitCode, runErr := a.invoke(stage)
	res.ExitCode = exitCode

	_, statErr := os.Stat(artifact)
	res.Success = statErr == nil
	if (exitCode == 0) != res.Success {
		res.Warning = fmt.Errorf("%s: %w: exit code %d, artifact present=%v", stage, contracts.ErrExitCodeMismatch, exitCode, res.Success)
		log.Warn().Err(res.Warning).Msg("exit status disagrees with artifact")
	}

	if !res.Success {
		cause := fmt.Errorf("%s not produced", a.layout.Artifact(stage))
		if runErr != nil {
			cause = fmt.Errorf("%w (%v)", cause, runErr)
		}
		res.Err = fmt.Errorf("%s: %w: %w", stage, contracts.ErrToolchainInvocation, cause)
		log.Error().Err(res.Err).Int("exit_code", exitCode).Msg("stage did not run correctly, check the log files")
		return res
	}
	res.ArtifactPath = a.layout.Artifact(stage)

	if stage != contracts.StageSeqSOLO {
		return res
	}

	values, err := readSecondColumn(artifact)
	if err != nil {
		res.Success = false
		res.Err = fmt.Errorf("%s: %w: parse %s: %w", stage, contracts.ErrToolchainInvocation, res.ArtifactPath, err)
		return res
	}
	if len(values) != len(keep) {
		res.Success = false
		res.Err = fmt.Errorf("%s: %w: %d modelled values for %d input rows", stage, contracts.ErrToolchainInvocation, len(values), len(keep))
		return res
	}

	res.Values = values
	res.RowIndex = make([]int, len(keep))
	for i, k := range keep {
		res.RowIndex[i] = offset + k
	}
	return res
}

// invoke runs one executable with its descriptor, stdout captured to the stage log
func (a *Adapter) invoke(stage contracts.Stage) (int, error) {
	exe, err := a.layout.Executable(stage)
	if err != nil {
		return -1, err
	}
	logFile, err := os.Create(a.layout.Abs(a.layout.Log(stage)))
	if err != nil {
		return -1, fmt.Errorf("create stage log: %w", err)
	}
	defer logFile.Close()

	root, err := filepath.Abs(a.layout.Root)
	if err != nil {
		return -1, err
	}

	start := time.Now()
	code, err := a.runner.Run(exe, a.layout.Descriptor(stage), root, logFile)
	a.log.Debug().
		Str("stage", stage.String()).
		Int("exit_code", code).
		Dur("elapsed", time.Since(start)).
		Msg("stage finished")
	return code, err
}

func validateColumns(stage contracts.Stage, columns [][]float64) error {
	need := 1
	if stage.UsesTarget() {
		need = 2
	}
	if len(columns) < need {
		return fmt.Errorf("%d columns, need at least %d", len(columns), need)
	}
	for i := 1; i < len(columns); i++ {
		if len(columns[i]) != len(columns[0]) {
			return fmt.Errorf("column %d has %d rows, column 0 has %d", i, len(columns[i]), len(columns[0]))
		}
	}
	return nil
}

var _ contracts.ToolchainAdapter = (*Adapter)(nil)
