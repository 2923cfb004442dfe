// Package stats is the pure numeric kernel behind the analytics engine.
// Every function is deterministic, allocation-light, and safe on degenerate
// input: insufficient data yields empty output, never an error.
package stats

import "math"

const epsilon = 1e-9

// SaturatedZ is reported for a point whose leave-one-out baseline has zero
// spread but whose value deviates from it. The true z is unbounded; the
// sentinel keeps the value finite and well above any severity threshold.
const SaturatedZ = 99.0

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// SampleStdDev returns the sample (n-1) standard deviation, 0 when the
// series has fewer than two points.
func SampleStdDev(series []float64) float64 {
	n := len(series)
	if n < 2 {
		return 0
	}
	m := Mean(series)
	ss := 0.0
	for _, v := range series {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// ZScores returns one z-score per point, each measured against the
// leave-one-out baseline of the remaining points. Returns nil when the
// series has fewer than three points or no spread at all, so callers
// never divide by zero on degenerate input.
func ZScores(series []float64) []float64 {
	if len(series) < 3 || SampleStdDev(series) < epsilon {
		return nil
	}

	zs := make([]float64, len(series))
	rest := make([]float64, 0, len(series)-1)
	for i, v := range series {
		rest = rest[:0]
		for j, w := range series {
			if j != i {
				rest = append(rest, w)
			}
		}
		m := Mean(rest)
		sd := SampleStdDev(rest)
		switch {
		case sd >= epsilon:
			zs[i] = (v - m) / sd
		case math.Abs(v-m) > epsilon:
			// Flat baseline, deviating point: unambiguous outlier.
			zs[i] = SaturatedZ
		default:
			zs[i] = 0
		}
	}
	return zs
}

// TrendPercent compares the spend of two chronological halves.
// A zero baseline with any current spend reads as +100%.
func TrendPercent(firstHalf, secondHalf float64) float64 {
	if firstHalf < epsilon {
		if secondHalf > epsilon {
			return 100.0
		}
		return 0.0
	}
	return (secondHalf - firstHalf) / firstHalf * 100.0
}

// ForecastNextPeriod projects spend over horizonDays using the mean of the
// last seven days, or of all available days when history is shorter. The
// bounds are the projection at mean∓stdev of the same lookback window.
// This is a deliberately simple moving-average model: no seasonality.
func ForecastNextPeriod(dailyTotals []float64, horizonDays int) (avg, projected, lower, upper float64) {
	if len(dailyTotals) == 0 || horizonDays <= 0 {
		return 0, 0, 0, 0
	}

	window := dailyTotals
	if len(window) > 7 {
		window = window[len(window)-7:]
	}

	avg = Mean(window)
	sd := SampleStdDev(window)
	h := float64(horizonDays)

	projected = avg * h
	lower = math.Max(0, avg-sd) * h
	upper = (avg + sd) * h
	return avg, projected, lower, upper
}
