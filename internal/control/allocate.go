package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// thrustFloor is the minimum feasible Z force per module in newtons. A
// module cannot pull, so a negative demand is redistributed instead of
// clamped away.
const thrustFloor = 0.1

// tiltGeometryScale is the module's mechanical tilt-to-force gain: the
// geometric angles are divided by it to obtain servo commands.
const tiltGeometryScale = 0.75

// correctNegativeThrust enforces Fz >= thrustFloor on both modules by
// moving any shortfall to the other module, conserving total vertical
// force. If both modules go negative the corrections apply independently
// in sequence.
func (c *Controller) correctNegativeThrust() {
	if c.virtualControl[0].Z < 0 {
		c.virtualControl[1].Z -= thrustFloor - c.virtualControl[0].Z
		c.virtualControl[0].Z = thrustFloor
	}
	if c.virtualControl[1].Z < 0 {
		c.virtualControl[0].Z -= thrustFloor - c.virtualControl[1].Z
		c.virtualControl[1].Z = thrustFloor
	}
}

// convertVirtualInput converts each virtual force vector into the
// physical (tilt alpha, tilt beta, thrust fraction) command. Beta tilts
// the module laterally, alpha longitudinally; the thrust fraction is the
// force norm normalised by the configured maximum thrust. The aggregate
// thrust across both modules feeds the arming safety logic downstream.
func (c *Controller) convertVirtualInput() {
	for m := 0; m < 2; m++ {
		f := c.virtualControl[m]

		beta := -math.Atan2(f.Y, f.Z) / tiltGeometryScale
		alpha := math.Atan2(f.X, f.Z/math.Cos(beta)) / tiltGeometryScale

		c.attControl[m] = r3.Vec{
			X: alpha,
			Y: beta,
			Z: r3.Norm(f) / c.maxThrust,
		}
	}

	c.attControlThrust = (c.attControl[0].Z + c.attControl[1].Z) / 2
}

// finiteOr replaces non-finite values produced by degenerate geometry
// with a safe neutral command.
func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
