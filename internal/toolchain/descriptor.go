package toolchain

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/timeseries"
)

// Fixed descriptor constants
const (
	sofmScreenInterval = 20
	sofmWeightSpacing  = 0.01
	sofmSeed           = 1234
	sofmWriteInterval  = 50
	soloSeed           = 5678
	seqsoloSeed        = 9100
)

// DescriptorParams are the values written into the three descriptors
type DescriptorParams struct {
	Nodes        int
	Training     int
	NDAFactor    int
	LearningRate float64
	Iterations   int
	MissingValue float64
}

// ParamsFor builds descriptor values from resolved job settings
func ParamsFor(s contracts.SoloSettings, nodes int, missing float64) DescriptorParams {
	return DescriptorParams{
		Nodes:        nodes,
		Training:     s.Training,
		NDAFactor:    s.NDAFactor,
		LearningRate: s.LearningRate,
		Iterations:   s.Iterations,
		MissingValue: missing,
	}
}

var sofmTrailer = []string{
	"### Comment lines ###",
	"Line 1: No. of nodes - default is the number of drivers plus 1 (changeable via GUI if used)",
	"Line 2: No. of training iterations - default is 500 (changeable via GUI if used)",
	"Line 3: No. of iterations per screen output - default is 20",
	"Line 4: Spacing between initial weights - default is 0.01",
	"Line 5: Seed for random number generator - default is 1234",
	"Line 6: input data filename with path relative to current directory",
	"Line 7: first output filename with path relative to current directory",
	"Line 8: second output filename with path relative to current directory",
	"Line 9: third output filename with path relative to current directory",
	"Line 10: fourth output filename with path relative to current directory (used by SOLO)",
	"Line 11: No. iterations per write of weights to screen - default is 50",
}

var soloTrailer = []string{
	"### Comment lines ###",
	"Line 1: No. of nodes - default is the number of drivers plus 1 (changeable via GUI if used)",
	"Line 2: multiplier for minimum number of points per node (NdaFactor) - default is 5 (ie 5*(no. of drivers+1) (changeable via GUI if used)",
	"Line 3: fourth output file from SOFM, used as input to SOLO",
	"Line 4: input data filename with path relative to current directory",
	"Line 5: type of run (\"training\" or \"simulation\", always \"training\" for SOLO)",
	"Line 6: seed for random number generator - default is 5678",
	"Line 7: \"calThreshold\", not used by SOLO",
	"Lines 8 to 18: output files from SOLO with path relative to current directory",
}

var seqsoloTrailer = []string{
	"### Comment lines ###",
	"Line 1: No. of nodes - default is the number of drivers plus 1 (changeable via GUI if used)",
	"Line 2: NdaFactor - not used by SEQSOLO, default value is 0",
	"Line 3: learning rate - default value 0.01 (must be between 0.0 1nd 1.0, changeable via GUI if used)",
	"Line 4: number of iterations for sequential training, default value is 500 (changeable via GUI if used)",
	"Line 5: fourth output file from SOFM, used as input file by SEQSOLO",
	"Line 6: input data filename with path relative to current directory",
	"Line 7: type of run (\"training\" or \"simulation\", always \"simulation\" for SEQSOLO)",
	"Line 8: seed for random number generator - default is 9100",
	"Line 9: \"calThreshold\" - minimum number of data points for SOLO node to be used in simulation, default value is 0 (use all nodes)",
	"Lines 10 to 21: output files from SEQSOLO with path relative to current directory",
	"Line 22: missing data value, default value is c.missing_value.0",
}

var soloOutputs = []string{
	"eigenValue.out", "eigenVector.out", "accumErr.out", "accumRR.out",
	"trainProcess.out", "freqTable.out", "hidOutputWt.out", "errorMap.out",
	"finResult.out", "trainWin.out", "trainWout.out",
}

var seqsoloOutputs = []string{
	"eigenValue.out", "eigenVector.out", "trainWout.out", "freqTable.out",
	"errorMap.out", "finResult.out", "trainingRMSE.out", "seqOut0.out",
	"seqOut1.out", "seqOut2.out", "seqHidOutW.out", "seqFreqMap.out",
}

// RenderDescriptor returns the descriptor text of a stage
func RenderDescriptor(l Layout, stage contracts.Stage, p DescriptorParams) (string, error) {
	var lines []string
	sofmMap := l.Output("sofm_4.out")

	switch stage {
	case contracts.StageSOFM:
		lines = []string{
			strconv.Itoa(p.Nodes),
			strconv.Itoa(p.Training),
			strconv.Itoa(sofmScreenInterval),
			formatNumber(sofmWeightSpacing),
			strconv.Itoa(sofmSeed),
			l.Input(stage),
			l.Output("sofm_1.out"),
			l.Output("sofm_2.out"),
			l.Output("sofm_3.out"),
			sofmMap,
			strconv.Itoa(sofmWriteInterval),
		}
		lines = append(lines, sofmTrailer...)

	case contracts.StageSOLO:
		lines = []string{
			strconv.Itoa(p.Nodes),
			strconv.Itoa(p.NDAFactor),
			sofmMap,
			l.Input(stage),
			"training",
			strconv.Itoa(soloSeed),
			"0",
		}
		for _, o := range soloOutputs {
			lines = append(lines, l.Output(o))
		}
		lines = append(lines, soloTrailer...)

	case contracts.StageSeqSOLO:
		lines = []string{
			strconv.Itoa(p.Nodes),
			"0",
			formatNumber(p.LearningRate),
			strconv.Itoa(p.Iterations),
			sofmMap,
			l.Input(stage),
			"simulation",
			strconv.Itoa(seqsoloSeed),
			"0",
		}
		for _, o := range seqsoloOutputs {
			lines = append(lines, l.Output(o))
		}
		lines = append(lines, formatNumber(p.MissingValue))
		lines = append(lines, seqsoloTrailer...)

	default:
		return "", fmt.Errorf("unknown stage %q: %w", stage, contracts.ErrConfiguration)
	}

	return strings.Join(lines, "\n") + "\n", nil
}

// WriteDescriptors writes the descriptors of all three stages
func WriteDescriptors(l Layout, p DescriptorParams) error {
	for _, stage := range contracts.AllStages() {
		text, err := RenderDescriptor(l, stage, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(l.Abs(l.Descriptor(stage)), []byte(text), 0o644); err != nil {
			return fmt.Errorf("write %s descriptor: %w", stage, err)
		}
	}
	return nil
}

func formatNumber(v float64) string {
	return timeseries.FormatValue(v)
}
