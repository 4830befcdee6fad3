package contracts

import "time"

// FlagModelled is the quality flag written next to every modelled value
const FlagModelled int32 = 30

// FitStatisticsRecord is the fit quality of one (output, window) run
// ⭐ SSOT: appended once per run, never mutated, kept in run order
type FitStatisticsRecord struct {
	Output    string    `json:"output"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	NumPoints int       `json:"num_points"` // observations used in the fit, 0 = guard skip
	NumFilled float64   `json:"num_filled"` // modelled minus observed count
	Bias      float64   `json:"bias"`
	FracBias  float64   `json:"frac_bias"`
	RMSE      float64   `json:"rmse"`
	NMSE      float64   `json:"nmse"`
	VarObs    float64   `json:"var_obs"`
	VarMod    float64   `json:"var_mod"`
	VarRatio  float64   `json:"var_ratio"`
	AvgObs    float64   `json:"avg_obs"`
	AvgMod    float64   `json:"avg_mod"`
	Slope     float64   `json:"slope"`
	Offset    float64   `json:"offset"`
	R         float64   `json:"r"`
}

// SkippedRecord returns the record appended for a guard skip:
// zero points and every other metric set to the missing-value sentinel
func SkippedRecord(output string, w Window, missing float64) FitStatisticsRecord {
	return FitStatisticsRecord{
		Output:    output,
		Start:     w.Start,
		End:       w.End,
		NumPoints: 0,
		NumFilled: missing,
		Bias:      missing,
		FracBias:  missing,
		RMSE:      missing,
		NMSE:      missing,
		VarObs:    missing,
		VarMod:    missing,
		VarRatio:  missing,
		AvgObs:    missing,
		AvgMod:    missing,
		Slope:     missing,
		Offset:    missing,
		R:         missing,
	}
}

// IsSkipped reports whether the record stands for a guard skip
func (r FitStatisticsRecord) IsSkipped() bool {
	return r.NumPoints == 0
}

// Metrics returns the numeric metrics in export column order
func (r FitStatisticsRecord) Metrics() []float64 {
	return []float64{
		r.NumFilled, r.Bias, r.FracBias, r.RMSE, r.NMSE,
		r.VarObs, r.VarMod, r.VarRatio, r.AvgObs, r.AvgMod,
		r.Slope, r.Offset, r.R,
	}
}

// MetricNames returns the column names matching Metrics
func MetricNames() []string {
	return []string{
		"num_filled", "bias", "frac_bias", "rmse", "nmse",
		"var_obs", "var_mod", "var_ratio", "avg_obs", "avg_mod",
		"slope", "offset", "r",
	}
}
