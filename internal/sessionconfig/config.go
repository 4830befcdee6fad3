package sessionconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/solofill/internal/contracts"
)

// Window strategies
const (
	StrategyManual  = "manual"
	StrategyMonthly = "monthly"
	StrategyDaily   = "daily"
)

// Config is the full configuration of one gap-filling session
type Config struct {
	Session   Session      `yaml:"session" json:"session"`
	Window    WindowConfig `yaml:"window" json:"window"`
	Solo      Solo         `yaml:"solo" json:"solo"`
	Toolchain Toolchain    `yaml:"toolchain" json:"toolchain"`
	Outputs   []Output     `yaml:"outputs" json:"outputs"`
	Input     Input        `yaml:"input" json:"input"`
	Output    OutputFiles  `yaml:"output" json:"output"`
}

// Session describes the record being filled
type Session struct {
	SiteName     string  `yaml:"site_name" json:"site_name"`
	TimeStep     int     `yaml:"time_step" json:"time_step"` // minutes
	MissingValue float64 `yaml:"missing_value" json:"missing_value"`
}

// WindowConfig selects how the record is cut into windows
type WindowConfig struct {
	Strategy     string  `yaml:"strategy" json:"strategy"`
	StartDate    string  `yaml:"start_date" json:"start_date"`
	EndDate      string  `yaml:"end_date" json:"end_date"`
	Months       int     `yaml:"months" json:"months"`
	Days         int     `yaml:"days" json:"days"`
	AutoComplete bool    `yaml:"auto_complete" json:"auto_complete"`
	MinPercent   float64 `yaml:"min_percent" json:"min_percent"`
}

// Solo holds the session-wide toolchain hyperparameters
type Solo struct {
	Nodes        NodeCount `yaml:"nodes" json:"nodes"`
	Training     int       `yaml:"training" json:"training"`
	NDAFactor    int       `yaml:"nda_factor" json:"nda_factor"`
	LearningRate float64   `yaml:"learning_rate" json:"learning_rate"`
	Iterations   int       `yaml:"iterations" json:"iterations"`
}

// Toolchain locates the work area and executables
type Toolchain struct {
	WorkDir string `yaml:"work_dir" json:"work_dir"`
	BinDir  string `yaml:"bin_dir" json:"bin_dir"` // relative to WorkDir
}

// Output is one series to fill
type Output struct {
	Output   string          `yaml:"output" json:"output"`
	Target   string          `yaml:"target" json:"target"`
	Drivers  []string        `yaml:"drivers" json:"drivers"`
	Settings *OutputSettings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// OutputSettings overrides Solo for a single output; nil fields inherit
type OutputSettings struct {
	Nodes        *NodeCount `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Training     *int       `yaml:"training,omitempty" json:"training,omitempty"`
	NDAFactor    *int       `yaml:"nda_factor,omitempty" json:"nda_factor,omitempty"`
	LearningRate *float64   `yaml:"learning_rate,omitempty" json:"learning_rate,omitempty"`
	Iterations   *int       `yaml:"iterations,omitempty" json:"iterations,omitempty"`
}

// Input is the CSV record to read
type Input struct {
	Path           string `yaml:"path" json:"path"`
	DateTimeColumn string `yaml:"datetime_column" json:"datetime_column"`
	DateTimeFormat string `yaml:"datetime_format" json:"datetime_format"`
}

// OutputFiles are the CSV files written after the session
type OutputFiles struct {
	Path      string `yaml:"path" json:"path"`
	StatsPath string `yaml:"stats_path" json:"stats_path"`
}

// NodeCount is "auto" (drivers + 1) or a fixed positive integer.
// The zero value means auto.
type NodeCount int

// UnmarshalYAML accepts "auto" or an integer
func (n *NodeCount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: nodes must be \"auto\" or an integer", value.Line)
	}
	if strings.EqualFold(strings.TrimSpace(value.Value), "auto") {
		*n = NodeCount(contracts.AutoNodes)
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: nodes must be \"auto\" or an integer, got %q", value.Line, value.Value)
	}
	if v <= 0 {
		return fmt.Errorf("line %d: nodes must be > 0, got %d", value.Line, v)
	}
	*n = NodeCount(v)
	return nil
}

// IsAuto reports whether the node count follows the driver count
func (n NodeCount) IsAuto() bool {
	return int(n) == contracts.AutoNodes
}

// String returns "auto" or the integer
func (n NodeCount) String() string {
	if n.IsAuto() {
		return "auto"
	}
	return strconv.Itoa(int(n))
}

// Default returns a Config holding every default value.
// Load decodes the YAML document over it.
func Default() Config {
	return Config{
		Session: Session{
			TimeStep:     30,
			MissingValue: -9999,
		},
		Window: WindowConfig{
			Strategy:     StrategyManual,
			Months:       1,
			Days:         90,
			AutoComplete: true,
			MinPercent:   50,
		},
		Solo: Solo{
			Nodes:        NodeCount(contracts.AutoNodes),
			Training:     500,
			NDAFactor:    5,
			LearningRate: 0.01,
			Iterations:   500,
		},
		Input: Input{
			DateTimeColumn: "DateTime",
			DateTimeFormat: contracts.DateTimeLayout,
		},
	}
}

// Settings returns the session-wide toolchain settings
func (c *Config) Settings() contracts.SoloSettings {
	return contracts.SoloSettings{
		Nodes:        int(c.Solo.Nodes),
		Training:     c.Solo.Training,
		NDAFactor:    c.Solo.NDAFactor,
		LearningRate: c.Solo.LearningRate,
		Iterations:   c.Solo.Iterations,
	}
}

// SettingsFor applies the output's overrides on top of the session settings
func (c *Config) SettingsFor(o Output) contracts.SoloSettings {
	s := c.Settings()
	if o.Settings == nil {
		return s
	}
	if o.Settings.Nodes != nil {
		s.Nodes = int(*o.Settings.Nodes)
	}
	if o.Settings.Training != nil {
		s.Training = *o.Settings.Training
	}
	if o.Settings.NDAFactor != nil {
		s.NDAFactor = *o.Settings.NDAFactor
	}
	if o.Settings.LearningRate != nil {
		s.LearningRate = *o.Settings.LearningRate
	}
	if o.Settings.Iterations != nil {
		s.Iterations = *o.Settings.Iterations
	}
	return s
}

// FindOutput returns the output entry with the given label
func (c *Config) FindOutput(label string) (Output, bool) {
	for _, o := range c.Outputs {
		if o.Output == label {
			return o, true
		}
	}
	return Output{}, false
}

// SamplesPerHour is 60 / time_step rounded to the nearest integer
func (c *Config) SamplesPerHour() int {
	return int(math.Floor(60/float64(c.Session.TimeStep) + 0.5))
}

// SamplesPerDay is the autocomplete expansion step
func (c *Config) SamplesPerDay() int {
	return 24 * c.SamplesPerHour()
}

// TimeStep returns the sampling interval
func (c *Config) TimeStep() time.Duration {
	return time.Duration(c.Session.TimeStep) * time.Minute
}

// StartTime parses window.start_date; ok is false when it is empty
func (c *Config) StartTime() (t time.Time, ok bool, err error) {
	return c.parseDate(c.Window.StartDate)
}

// EndTime parses window.end_date; ok is false when it is empty
func (c *Config) EndTime() (t time.Time, ok bool, err error) {
	return c.parseDate(c.Window.EndDate)
}

func (c *Config) parseDate(s string) (time.Time, bool, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(c.Input.DateTimeFormat, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
