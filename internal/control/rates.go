package control

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/units"
)

// rateErrorScale brings the measured rates into the range the rate gain
// columns were tuned for.
const rateErrorScale = 1.0 / 5.0

// pitchRateAttenuation halves the pitch rate feedback; the pitch axis of
// this airframe has roughly twice the control authority of roll.
const pitchRateAttenuation = 0.5

// tpaRateLowerLimit bounds how far throttle PID attenuation may reduce
// the roll/pitch feedback.
const tpaRateLowerLimit = 0.05

// controlRates runs once per gyro sample: it corrects and filters the
// measurement, forms the rate error, maps it through the rate columns of
// each module's gain block and combines the result with the cached
// attitude P-loop output and the upstream partial controls into the two
// virtual force vectors, which are then converted to tilt/thrust commands.
func (c *Controller) controlRates(dt float64) {
	if v, ok := c.partialIn.TakeIfNewer(); ok {
		c.partial = v
	}

	rates := c.correctedRates(c.gyro)
	ratesFiltered := c.dtermFilter.Apply(rates)

	rateErr := r3.Scale(rateErrorScale, ratesFiltered)
	rateErr.Y *= pitchRateAttenuation
	// yaw damping is tuned out; heading authority comes from the
	// differential force columns instead
	rateErr.Z = 0

	if c.cfg.GetTPAEnabled() {
		att := c.pidAttenuations(c.cfg.GetTPABreakpoint(), c.cfg.GetTPARate())
		rateErr = r3.Vec{X: rateErr.X * att.X, Y: rateErr.Y * att.Y, Z: rateErr.Z * att.Z}
	}

	for m := 0; m < 2; m++ {
		gain := c.gainA
		if m == 1 {
			gain = c.gainB
		}
		partial := r3.Vec{
			X: c.partial.Control[3*m+0],
			Y: c.partial.Control[3*m+1],
			Z: c.partial.Control[3*m+2],
		}
		c.virtualControl[m] = r3.Add(
			gainMul(gain, r3.Vec{}, rateErr),
			r3.Add(c.pControlAtt[m], partial),
		)
	}

	c.correctNegativeThrust()
	c.convertVirtualInput()

	c.ratesPrev = rates
	c.ratesPrevFiltered = ratesFiltered
}

// pidAttenuations computes the per-axis throttle PID attenuation factor
// from the thrust setpoint relative to the breakpoint. Yaw is never
// attenuated.
func (c *Controller) pidAttenuations(breakpoint, rate float64) r3.Vec {
	tpa := 1.0 - rate*(abs(c.thrustSp)-breakpoint)/(1.0-breakpoint)
	tpa = units.Constrain(tpa, tpaRateLowerLimit, 1.0)

	return r3.Vec{X: tpa, Y: tpa, Z: 1.0}
}
