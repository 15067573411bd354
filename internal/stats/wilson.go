package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WilsonInterval calculates the Wilson score confidence interval for a
// binomial proportion. It's more accurate for small samples than the normal
// approximation.
func WilsonInterval(successes, trials int64, confidence float64) (lower, upper float64) {
	if trials == 0 {
		return 0, 0
	}

	z := ZScore(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	lower = center - spread
	upper = center + spread

	// Clamp to [0, 1]
	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}

	return lower, upper
}

// ZScore returns the two-sided z-score for a given confidence level,
// e.g. 0.95 -> 1.96, 0.99 -> 2.576.
func ZScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 0
	}
	return distuv.UnitNormal.Quantile((1 + confidence) / 2)
}
