package contracts

// Toolchain stage definitions (SSOT)
// Every log line, descriptor and persisted row uses these constants.
//
// Toolchain flow per (output, window):
//   sofm → solo → seqsolo
//   map trainer  primary trainer  sequential simulator

// Stage represents one external toolchain executable
type Stage string

const (
	// StageSOFM stage 1: self-organising feature map over driver rows
	// Input: drivers only. Artifact: sofm_4.out
	StageSOFM Stage = "sofm"

	// StageSOLO stage 2: primary trainer over driver+target rows
	// Input: drivers then target. Artifact: eigenValue.out
	StageSOLO Stage = "solo"

	// StageSeqSOLO stage 3: sequential simulator producing modelled values
	// Input: same layout as stage 2. Artifact: seqOut2.out
	StageSeqSOLO Stage = "seqsolo"
)

// AllStages returns the stages in execution order
func AllStages() []Stage {
	return []Stage{StageSOFM, StageSOLO, StageSeqSOLO}
}

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Number returns the 1-based position of the stage (0 if unknown)
func (s Stage) Number() int {
	switch s {
	case StageSOFM:
		return 1
	case StageSOLO:
		return 2
	case StageSeqSOLO:
		return 3
	default:
		return 0
	}
}

// Artifact returns the name of the file whose presence signals success
func (s Stage) Artifact() string {
	switch s {
	case StageSOFM:
		return "sofm_4.out"
	case StageSOLO:
		return "eigenValue.out"
	case StageSeqSOLO:
		return "seqOut2.out"
	default:
		return ""
	}
}

// UsesTarget reports whether the stage's data file carries the target column
func (s Stage) UsesTarget() bool {
	return s == StageSOLO || s == StageSeqSOLO
}

// IsValid checks if the stage is known
func (s Stage) IsValid() bool {
	return s.Number() != 0
}
