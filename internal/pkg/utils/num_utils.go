package utils

import "math"

// ClampFinite returns v, or zero when v is NaN or infinite. Valuation math
// must never propagate non-finite numbers into the portfolio total.
func ClampFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsFinite reports whether v is a usable valuation.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
