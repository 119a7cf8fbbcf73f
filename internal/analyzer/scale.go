package analyzer

import "math"

// clamp01 limits v to [0,1]; NaN maps to 1 so unknown values lean toward caution
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}

// rampUp is 0 at or below lo, 1 at or above hi, linear in between
func rampUp(v, lo, hi float64) float64 {
	if hi <= lo {
		if v > lo {
			return 1
		}
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

// rampDown is 1 at or below lo, 0 at or above hi, linear in between
func rampDown(v, lo, hi float64) float64 {
	return 1 - rampUp(v, lo, hi)
}
