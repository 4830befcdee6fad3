package sessionconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load("testdata/howard.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, yamlData)

	assert.Equal(t, "Howard Springs", cfg.Session.SiteName)
	assert.Equal(t, StrategyMonthly, cfg.Window.Strategy)
	assert.True(t, cfg.Solo.Nodes.IsAuto())
	assert.Equal(t, "auto", cfg.Solo.Nodes.String())
	require.Len(t, cfg.Outputs, 2)

	// defaults survive keys the file leaves out
	assert.Equal(t, 90, cfg.Window.Days)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// same config -> same hash
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestSettingsFor(t *testing.T) {
	cfg, _, err := Load("testdata/howard.yaml")
	require.NoError(t, err)

	fc, ok := cfg.FindOutput("Fc_SOLO")
	require.True(t, ok)
	s := cfg.SettingsFor(fc)
	assert.Equal(t, 6, s.ResolveNodes(len(fc.Drivers)))
	assert.Equal(t, 500, s.Iterations)

	fe, ok := cfg.FindOutput("Fe_SOLO")
	require.True(t, ok)
	s = cfg.SettingsFor(fe)
	assert.Equal(t, 6, s.ResolveNodes(len(fe.Drivers)))
	assert.Equal(t, 800, s.Iterations)
	assert.Equal(t, 500, s.Training)
	assert.InDelta(t, 0.01, s.LearningRate, 1e-12)

	_, ok = cfg.FindOutput("missing")
	assert.False(t, ok)
}

func TestSamplingConstants(t *testing.T) {
	tests := []struct {
		timeStep int
		perHour  int
		perDay   int
	}{
		{30, 2, 48},
		{60, 1, 24},
		{15, 4, 96},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Session.TimeStep = tt.timeStep
		assert.Equal(t, tt.perHour, cfg.SamplesPerHour())
		assert.Equal(t, tt.perDay, cfg.SamplesPerDay())
	}
}

const minimal = `
outputs:
  - output: Fc_SOLO
    target: Fc
    drivers: [Fsd]
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, StrategyManual, cfg.Window.Strategy)
	assert.Equal(t, -9999.0, cfg.Session.MissingValue)
	assert.Equal(t, 30, cfg.Session.TimeStep)
	assert.Equal(t, 50.0, cfg.Window.MinPercent)
	assert.Equal(t, 500, cfg.Solo.Training)
	assert.Equal(t, 5, cfg.Solo.NDAFactor)

	_, ok, err := cfg.StartTime()
	require.NoError(t, err)
	assert.False(t, ok)

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "IMPLICIT_WHOLE_RECORD")
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(minimal + "\nsolo:\n  nodez: 4\n"))
	assert.Error(t, err)
}

func TestParse_Nodes(t *testing.T) {
	cfg, err := Parse([]byte(minimal + "solo:\n  nodes: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, NodeCount(7), cfg.Solo.Nodes)

	_, err = Parse([]byte(minimal + "solo:\n  nodes: many\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(minimal + "solo:\n  nodes: -1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad strategy", func(c *Config) { c.Window.Strategy = "weekly" }, "window.strategy"},
		{"zero months", func(c *Config) { c.Window.Strategy = StrategyMonthly; c.Window.Months = 0 }, "window.months"},
		{"zero days", func(c *Config) { c.Window.Strategy = StrategyDaily; c.Window.Days = 0 }, "window.days"},
		{"min percent", func(c *Config) { c.Window.MinPercent = 0 }, "window.min_percent"},
		{"time step", func(c *Config) { c.Session.TimeStep = 7 }, "session.time_step"},
		{"learning rate", func(c *Config) { c.Solo.LearningRate = 1.5 }, "solo.learning_rate"},
		{"bad start date", func(c *Config) { c.Window.StartDate = "01/01/2015" }, "window.start_date"},
		{"end date on monthly", func(c *Config) {
			c.Window.Strategy = StrategyMonthly
			c.Window.EndDate = "2015-02-01 00:00"
		}, "window.end_date"},
		{"no outputs", func(c *Config) { c.Outputs = nil }, "outputs"},
		{"no drivers", func(c *Config) { c.Outputs[0].Drivers = nil }, "outputs[0].drivers"},
		{"target is output", func(c *Config) { c.Outputs[0].Target = "Fc_SOLO" }, "outputs[0].target"},
		{"driver is target", func(c *Config) { c.Outputs[0].Drivers = []string{"Fc"} }, "outputs[0].drivers[0]"},
		{"duplicate output", func(c *Config) { c.Outputs = append(c.Outputs, c.Outputs[0]) }, "outputs[1].output"},
		{"override iterations", func(c *Config) {
			zero := 0
			c.Outputs[0].Settings = &OutputSettings{Iterations: &zero}
		}, "outputs[0].settings.iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(minimal))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWarn_HighNodes(t *testing.T) {
	cfg, err := Parse([]byte(minimal + "solo:\n  nodes: 40\n"))
	require.NoError(t, err)

	warnings := Warn(cfg)
	found := false
	for _, w := range warnings {
		if w.Code == "HIGH_NODES" {
			found = true
		}
	}
	assert.True(t, found)
}
