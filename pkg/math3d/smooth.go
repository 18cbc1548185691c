package math3d

import "math"

// Approach moves current toward target by factor of the remaining gap.
// For 0 < factor < 1 the gap shrinks every call and never changes sign.
func Approach(current, target, factor float64) float64 {
	return current + (target-current)*factor
}

// DampFactor converts a per-call smoothing factor tuned for refHz calls per
// second into the factor for a step of dt seconds: 1 - exp(-k*dt) with
// k = -ln(1-perCall)*refHz. At dt = 1/refHz it returns perCall.
func DampFactor(perCall, refHz, dt float64) float64 {
	if perCall <= 0 || dt <= 0 {
		return 0
	}
	if perCall >= 1 {
		return 1
	}
	k := -math.Log(1-perCall) * refHz
	return 1 - math.Exp(-k*dt)
}
