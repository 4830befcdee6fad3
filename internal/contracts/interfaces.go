package contracts

import "context"

// ToolchainAdapter runs one external stage over the rows of a job
// ⭐ SSOT: the only way the pipeline reaches the external executables
type ToolchainAdapter interface {
	// WriteDescriptors writes the three stage descriptors for the job's settings
	WriteDescriptors(job GapFillJob, nodes int) error

	// Run serialises the filtered rows, invokes the stage and checks its artifact.
	// columns holds drivers first and, for stages 2/3, the target last; each
	// column spans the job window. Failures are reported in the result.
	Run(ctx context.Context, stage Stage, columns [][]float64, offset int) ToolchainRunResult
}

// StatisticsSink receives fit records in run order
type StatisticsSink interface {
	Append(rec FitStatisticsRecord)
}

// EventSink receives progress events; implementations must not block
type EventSink interface {
	Emit(ev ProgressEvent)
}

// NopEventSink discards every event
type NopEventSink struct{}

// Emit implements EventSink
func (NopEventSink) Emit(ProgressEvent) {}
