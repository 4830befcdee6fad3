package contracts

import "fmt"

// AutoNodes marks a node count resolved from the driver count
const AutoNodes = 0

// SoloSettings holds the hyperparameters handed to the toolchain descriptors
type SoloSettings struct {
	Nodes        int     `json:"nodes"` // AutoNodes = drivers + 1
	Training     int     `json:"training"`
	NDAFactor    int     `json:"nda_factor"`
	LearningRate float64 `json:"learning_rate"`
	Iterations   int     `json:"iterations"`
}

// ResolveNodes returns the node count for the given number of drivers
func (s SoloSettings) ResolveNodes(drivers int) int {
	if s.Nodes == AutoNodes {
		return drivers + 1
	}
	return s.Nodes
}

// GapFillJob is one (output, window) unit of work
// Created by the planner loop or the autocomplete pass and consumed once.
type GapFillJob struct {
	Output   string       `json:"output"`
	Target   string       `json:"target"`
	Drivers  []string     `json:"drivers"`
	Window   Window       `json:"window"`
	Settings SoloSettings `json:"settings"`
}

// Validate checks the job can be handed to the toolchain
func (j GapFillJob) Validate() error {
	if j.Output == "" {
		return fmt.Errorf("output label is empty: %w", ErrConfiguration)
	}
	if j.Target == "" {
		return fmt.Errorf("%s: target label is empty: %w", j.Output, ErrConfiguration)
	}
	if len(j.Drivers) == 0 {
		return fmt.Errorf("%s: no drivers: %w", j.Output, ErrConfiguration)
	}
	if j.Settings.ResolveNodes(len(j.Drivers)) <= 0 {
		return fmt.Errorf("%s: node count must be > 0: %w", j.Output, ErrConfiguration)
	}
	return nil
}

// ToolchainRunResult is produced once per executable invocation
type ToolchainRunResult struct {
	Stage        Stage  `json:"stage"`
	Success      bool   `json:"success"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Err          error  `json:"-"` // nil on success, wraps ErrToolchainInvocation otherwise
	ExitCode     int    `json:"exit_code"`
	Warning      error  `json:"-"` // wraps ErrExitCodeMismatch when exit status disagrees with the artifact

	// Stage 3 only: modelled values in filtered-row order and the
	// absolute record index of each retained row.
	Values   []float64 `json:"-"`
	RowIndex []int     `json:"-"`
}
