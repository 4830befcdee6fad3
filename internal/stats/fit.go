package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/solofill/internal/contracts"
)

// ComputeFit compares observed and modelled values over one window.
//
// Paired metrics (bias, RMSE, NMSE, regression, correlation) use the samples
// where both series are present. Counts, averages and variances use each
// series' own present samples. Metrics that cannot be computed are set to
// the missing-value sentinel.
func ComputeFit(output string, w contracts.Window, obs, mod []float64, isMissing func(float64) bool, missing float64) contracts.FitStatisticsRecord {
	rec := contracts.FitStatisticsRecord{
		Output: output,
		Start:  w.Start,
		End:    w.End,
	}

	var obsAll, modAll, obsPair, modPair []float64
	for i := range obs {
		o, okO := obs[i], !isMissing(obs[i])
		var mv float64
		okM := i < len(mod) && !isMissing(mod[i])
		if okM {
			mv = mod[i]
			modAll = append(modAll, mv)
		}
		if okO {
			obsAll = append(obsAll, o)
		}
		if okO && okM {
			obsPair = append(obsPair, o)
			modPair = append(modPair, mv)
		}
	}

	rec.NumPoints = len(obsAll)
	rec.NumFilled = float64(len(modAll) - len(obsAll))

	trap := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return missing
		}
		return v
	}

	n := float64(len(obsPair))
	if n > 0 {
		diff := make([]float64, len(obsPair))
		floats.SubTo(diff, modPair, obsPair)
		bias := stat.Mean(diff, nil)
		rmse := math.Sqrt(floats.Dot(diff, diff) / n)
		avgPair := 0.5 * (stat.Mean(obsPair, nil) + stat.Mean(modPair, nil))
		rec.Bias = trap(bias)
		rec.FracBias = trap(bias / avgPair)
		rec.RMSE = trap(rmse)

		lo, hi := minMax(obsAll)
		rec.NMSE = trap(rmse / (hi - lo))

		slope, offset := linearFit(modPair, obsPair)
		rec.Slope = trap(slope)
		rec.Offset = trap(offset)
		rec.R = trap(stat.Correlation(modPair, obsPair, nil))
	} else {
		rec.Bias, rec.FracBias, rec.RMSE, rec.NMSE = missing, missing, missing, missing
		rec.Slope, rec.Offset, rec.R = missing, missing, missing
	}

	rec.AvgObs = trap(mean(obsAll))
	rec.AvgMod = trap(mean(modAll))
	rec.VarObs = trap(variance(obsAll))
	rec.VarMod = trap(variance(modAll))
	if rec.VarObs == missing || rec.VarMod == missing {
		rec.VarRatio = missing
	} else {
		rec.VarRatio = trap(rec.VarObs / rec.VarMod)
	}

	return rec
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// variance is the population variance
func variance(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(x, nil)
	return v
}

func minMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(x), floats.Max(x)
}

// linearFit returns the least-squares slope and intercept of y on x
func linearFit(x, y []float64) (float64, float64) {
	offset, slope := stat.LinearRegression(x, y, nil, false)
	return slope, offset
}
