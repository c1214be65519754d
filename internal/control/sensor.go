package control

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/msg"
)

// correctedRates turns a raw gyro sample into body-frame rates: thermal
// offset/scale for the sample's own instance, board mounting rotation,
// then in-run bias removal. Samples from instances without correction
// data pass through unscaled; instance selection itself happens in the
// scheduler, which only feeds the selected gyro's samples through here.
func (c *Controller) correctedRates(sample msg.GyroSample) r3.Vec {
	rates := r3.Vec{X: sample.X, Y: sample.Y, Z: sample.Z}

	if coeffs, ok := c.correction.Instances[sample.Instance]; ok {
		rates = r3.Vec{
			X: (rates.X - coeffs.Offset[0]) * coeffs.Scale[0],
			Y: (rates.Y - coeffs.Offset[1]) * coeffs.Scale[1],
			Z: (rates.Z - coeffs.Offset[2]) * coeffs.Scale[2],
		}
	}

	rates = rotateVec(c.boardRot, rates)

	return r3.Sub(rates, r3.Vec{X: c.bias.GyroX, Y: c.bias.GyroY, Z: c.bias.GyroZ})
}
