// Package units provides angle and rate conversions shared across the
// controller packages. All internal control math runs in SI units (radians,
// radians per second, newtons); conversions to and from degrees happen at
// the configuration and logging boundaries only.
package units

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// WrapPi wraps an angle in radians to the interval (-pi, pi].
func WrapPi(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return angle
}

// Constrain limits v to the closed interval [lo, hi].
func Constrain(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Expo applies the exponential stick-shaping curve
//
//	y = (1-e)*x + e*x^3
//
// with e in [0, 1]. e = 0 is linear, e = 1 is pure cubic.
func Expo(value, e float64) float64 {
	x := Constrain(value, -1, 1)
	ec := Constrain(e, 0, 1)
	return (1-ec)*x + ec*x*x*x
}

// SuperExpo applies the super-exponential stick-shaping curve, an Expo
// curve with an additional inflection strength g in [0, 1). Used to map
// manual stick deflection to acro rate setpoints.
func SuperExpo(value, e, g float64) float64 {
	x := Constrain(value, -1, 1)
	gc := Constrain(g, 0, 0.99)
	return Expo(x, e) * (1 - gc) / (1 - math.Abs(x)*gc)
}
