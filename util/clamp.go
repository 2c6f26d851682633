package util

import "golang.org/x/exp/constraints"

// Clamp constrains v to the closed interval [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 constrains v to [0,1]. NaN maps to 0 so that a malformed
// reading falls through the below-threshold path instead of driving
// the actuator.
func Clamp01(v float64) float64 {
	if v != v {
		return 0
	}
	return Clamp(v, 0.0, 1.0)
}
