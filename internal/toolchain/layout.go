package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/wonny/solofill/internal/contracts"
)

// Fixed directories under the work area root. Descriptors reference files by
// these relative paths and every executable runs with the root as working
// directory.
const (
	InfDir    = "solo/inf"
	InputDir  = "solo/input"
	OutputDir = "solo/output"
	LogDir    = "solo/log"

	DefaultBinDir = "solo/bin"
)

// Layout locates the toolchain work area
type Layout struct {
	Root   string
	BinDir string // relative to Root
}

// NewLayout creates a layout; an empty binDir means DefaultBinDir
func NewLayout(root, binDir string) Layout {
	if root == "" {
		root = "."
	}
	if binDir == "" {
		binDir = DefaultBinDir
	}
	return Layout{Root: root, BinDir: binDir}
}

// Descriptor returns the relative path of the stage descriptor
func (l Layout) Descriptor(stage contracts.Stage) string {
	return InfDir + "/" + stage.String() + ".inf"
}

// Input returns the relative path of the stage data file
func (l Layout) Input(stage contracts.Stage) string {
	return InputDir + "/" + stage.String() + "_input.csv"
}

// Output returns the relative path of a named toolchain output
func (l Layout) Output(name string) string {
	return OutputDir + "/" + name
}

// Artifact returns the relative path of the stage's success artifact
func (l Layout) Artifact(stage contracts.Stage) string {
	return l.Output(stage.Artifact())
}

// Log returns the relative path receiving the stage's stdout
func (l Layout) Log(stage contracts.Stage) string {
	return LogDir + "/" + stage.String() + ".log"
}

// Executable returns the absolute path of the stage executable
func (l Layout) Executable(stage contracts.Stage) (string, error) {
	name := stage.String()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Abs(filepath.Join(l.Root, filepath.FromSlash(l.BinDir), name))
}

// Abs joins a relative layout path onto the root
func (l Layout) Abs(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// Dirs returns the directories the toolchain exchanges files through
func (l Layout) Dirs() []string {
	return []string{InfDir, InputDir, OutputDir, LogDir}
}

// EnsureDirs creates the exchange directories
func (l Layout) EnsureDirs() error {
	for _, d := range l.Dirs() {
		if err := os.MkdirAll(l.Abs(d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Problem is one failed work-area compliance check
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Fixed   bool   `json:"fixed"`
}

// Check verifies the work area: exchange directories present and the three
// executables present. With fix, missing directories are created;
// missing executables can only be reported.
func (l Layout) Check(fix bool) []Problem {
	var problems []Problem

	for _, d := range l.Dirs() {
		info, err := os.Stat(l.Abs(d))
		if err == nil && info.IsDir() {
			continue
		}
		p := Problem{Path: d, Message: "directory missing"}
		if err == nil {
			p.Message = "not a directory"
		} else if fix {
			if mkErr := os.MkdirAll(l.Abs(d), 0o755); mkErr == nil {
				p.Fixed = true
			} else {
				p.Message = mkErr.Error()
			}
		}
		problems = append(problems, p)
	}

	for _, stage := range contracts.AllStages() {
		exe, err := l.Executable(stage)
		if err != nil {
			problems = append(problems, Problem{Path: stage.String(), Message: err.Error()})
			continue
		}
		info, err := os.Stat(exe)
		switch {
		case err != nil:
			problems = append(problems, Problem{Path: exe, Message: "executable missing"})
		case info.IsDir():
			problems = append(problems, Problem{Path: exe, Message: "is a directory"})
		case runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0:
			problems = append(problems, Problem{Path: exe, Message: "not executable"})
		}
	}

	return problems
}
