package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TwoProportionZTest compares conversion counts between two variants using a
// pooled two-proportion z-test. It returns the z statistic and the two-sided
// p-value. With no data on either side the test is inconclusive (p = 1).
func TwoProportionZTest(convA, nA, convB, nB int64) (z, p float64) {
	if nA == 0 || nB == 0 {
		return 0, 1
	}

	pA := float64(convA) / float64(nA)
	pB := float64(convB) / float64(nB)

	// Pooled proportion under the null hypothesis pA = pB.
	pooled := float64(convA+convB) / float64(nA+nB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(nA) + 1/float64(nB)))

	if se == 0 {
		if pA != pB {
			return math.Inf(1), 0
		}
		return 0, 1
	}

	z = (pA - pB) / se
	p = 2 * distuv.UnitNormal.CDF(-math.Abs(z))
	return z, p
}

// NormalCDF is the standard normal cumulative distribution function,
// accurate to machine precision (gonum's erf-based implementation).
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// EffectSize is the relative lift of the challenger rate over the control
// rate. Zero control rate yields zero rather than a division blow-up.
func EffectSize(controlRate, challengerRate float64) float64 {
	if controlRate == 0 {
		return 0
	}
	return (challengerRate - controlRate) / controlRate
}
