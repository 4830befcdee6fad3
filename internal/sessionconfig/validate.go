package sessionconfig

import (
	"fmt"
	"strings"
)

// ValidationError stops the session before any window runs
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but questionable setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Session ===
	if cfg.Session.TimeStep <= 0 || 1440%cfg.Session.TimeStep != 0 {
		return ValidationError{"session.time_step", "must be a positive divisor of 1440 minutes"}
	}

	// === Window ===
	switch cfg.Window.Strategy {
	case StrategyManual:
	case StrategyMonthly:
		if cfg.Window.Months < 1 {
			return ValidationError{"window.months", "must be >= 1"}
		}
	case StrategyDaily:
		if cfg.Window.Days < 1 {
			return ValidationError{"window.days", "must be >= 1"}
		}
	default:
		return ValidationError{"window.strategy", fmt.Sprintf("must be one of %s, %s, %s", StrategyManual, StrategyMonthly, StrategyDaily)}
	}
	if cfg.Window.MinPercent <= 0 || cfg.Window.MinPercent > 100 {
		return ValidationError{"window.min_percent", "must be in (0, 100]"}
	}
	if _, _, err := cfg.StartTime(); err != nil {
		return ValidationError{"window.start_date", fmt.Sprintf("does not match %q", cfg.Input.DateTimeFormat)}
	}
	if _, _, err := cfg.EndTime(); err != nil {
		return ValidationError{"window.end_date", fmt.Sprintf("does not match %q", cfg.Input.DateTimeFormat)}
	}
	if cfg.Window.EndDate != "" && cfg.Window.Strategy != StrategyManual {
		return ValidationError{"window.end_date", "only valid for the manual strategy"}
	}

	// === Solo ===
	if err := validateSolo("solo", cfg.Solo.Training, cfg.Solo.NDAFactor, cfg.Solo.LearningRate, cfg.Solo.Iterations); err != nil {
		return err
	}

	// === Outputs ===
	if len(cfg.Outputs) == 0 {
		return ValidationError{"outputs", "at least one output is required"}
	}
	seen := make(map[string]bool, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		field := fmt.Sprintf("outputs[%d]", i)
		if strings.TrimSpace(o.Output) == "" {
			return ValidationError{field + ".output", "required"}
		}
		if seen[o.Output] {
			return ValidationError{field + ".output", fmt.Sprintf("duplicate output %q", o.Output)}
		}
		seen[o.Output] = true

		if strings.TrimSpace(o.Target) == "" {
			return ValidationError{field + ".target", "required"}
		}
		if o.Target == o.Output {
			return ValidationError{field + ".target", "must differ from output"}
		}
		if len(o.Drivers) == 0 {
			return ValidationError{field + ".drivers", "at least one driver is required"}
		}
		for j, d := range o.Drivers {
			if d == o.Output || d == o.Target {
				return ValidationError{fmt.Sprintf("%s.drivers[%d]", field, j), "must differ from output and target"}
			}
		}

		s := cfg.SettingsFor(o)
		if err := validateSolo(field+".settings", s.Training, s.NDAFactor, s.LearningRate, s.Iterations); err != nil {
			return err
		}
	}

	// === Input ===
	if cfg.Input.DateTimeColumn == "" {
		return ValidationError{"input.datetime_column", "required"}
	}
	if cfg.Input.DateTimeFormat == "" {
		return ValidationError{"input.datetime_format", "required"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Window.MinPercent < 20 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MIN_PERCENT",
			Message: fmt.Sprintf("min_percent=%.0f: windows with very sparse targets will be trained", cfg.Window.MinPercent),
		})
	}

	for _, o := range cfg.Outputs {
		s := cfg.SettingsFor(o)
		if s.Nodes != 0 && s.Nodes > 4*(len(o.Drivers)+1) {
			warnings = append(warnings, Warning{
				Code:    "HIGH_NODES",
				Message: fmt.Sprintf("%s: nodes=%d is far above drivers+1=%d", o.Output, s.Nodes, len(o.Drivers)+1),
			})
		}
	}

	if cfg.Window.Strategy == StrategyManual && cfg.Window.StartDate == "" && cfg.Window.EndDate == "" {
		warnings = append(warnings, Warning{
			Code:    "IMPLICIT_WHOLE_RECORD",
			Message: "manual window without start_date/end_date: the whole record is one window",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateSolo(field string, training, ndaFactor int, learningRate float64, iterations int) error {
	if training <= 0 {
		return ValidationError{field + ".training", "must be > 0"}
	}
	if ndaFactor <= 0 {
		return ValidationError{field + ".nda_factor", "must be > 0"}
	}
	if learningRate <= 0 || learningRate > 1 {
		return ValidationError{field + ".learning_rate", "must be in (0, 1]"}
	}
	if iterations <= 0 {
		return ValidationError{field + ".iterations", "must be > 0"}
	}
	return nil
}
