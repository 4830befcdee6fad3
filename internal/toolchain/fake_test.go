package toolchain

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// fakeRunner imitates the executables: it records each call and writes the
// stage artifact unless told otherwise
type fakeRunner struct {
	calls     []string
	exitCode  map[string]int
	noOutput  map[string]bool
	badOutput map[string]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		exitCode:  map[string]int{},
		noOutput:  map[string]bool{},
		badOutput: map[string]string{},
	}
}

func (f *fakeRunner) Run(exe, arg, dir string, out io.Writer) (int, error) {
	stage := strings.TrimSuffix(filepath.Base(exe), ".exe")
	f.calls = append(f.calls, stage)
	fmt.Fprintf(out, "%s %s\n", stage, arg)

	code := f.exitCode[stage]
	if f.noOutput[stage] {
		return code, nil
	}

	outDir := filepath.Join(dir, "solo", "output")
	switch stage {
	case "sofm":
		return code, os.WriteFile(filepath.Join(outDir, "sofm_4.out"), []byte("map\n"), 0o644)
	case "solo":
		return code, os.WriteFile(filepath.Join(outDir, "eigenValue.out"), []byte("1 2\n"), 0o644)
	case "seqsolo":
		if body, ok := f.badOutput[stage]; ok {
			return code, os.WriteFile(filepath.Join(outDir, "seqOut2.out"), []byte(body), 0o644)
		}
		return code, writeSeqOut(filepath.Join(dir, "solo", "input", "seqsolo_input.csv"), filepath.Join(outDir, "seqOut2.out"))
	}
	return -1, fmt.Errorf("unknown executable %s", exe)
}

// writeSeqOut models each row as the sum of its driver columns
func writeSeqOut(in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	var sb strings.Builder
	sc := bufio.NewScanner(src)
	row := 0
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ",")
		sum := 0.0
		for _, fld := range fields[:len(fields)-1] {
			var v float64
			fmt.Sscan(fld, &v)
			sum += v
		}
		row++
		fmt.Fprintf(&sb, "%d %g %s\n", row, sum, fields[len(fields)-1])
	}
	return os.WriteFile(out, []byte(sb.String()), 0o644)
}
