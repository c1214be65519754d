package control

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/msg"
)

// gainMul maps a 6-element error vector (3 attitude + 3 rate components)
// through one module's LQR gain block to a 3-element force contribution.
func gainMul(gain *mat.Dense, attErr, rateErr r3.Vec) r3.Vec {
	err := mat.NewVecDense(6, []float64{
		attErr.X, attErr.Y, attErr.Z,
		rateErr.X, rateErr.Y, rateErr.Z,
	})
	var out mat.VecDense
	out.MulVec(gain, err)
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// controlAttitude recomputes the attitude P-loop contribution from the
// current orientation and the active attitude setpoint. Its output is
// cached in pControlAtt and reused by every rate-loop iteration until the
// next orientation update.
func (c *Controller) controlAttitude() {
	if v, ok := c.attSpIn.TakeIfNewer(); ok {
		c.attSp = v
	}

	// drop any stale setpoint from a previous flight while disarmed
	if !c.mode.Armed {
		c.attSp.QD = msg.Identity()
		c.attSp.ThrustBody = [3]float64{}
	}

	// physical thrust axis is the negative of body z
	c.thrustSp = -c.attSp.ThrustBody[2]

	q := normalizeQuat(c.att.Q)
	qd := normalizeQuat(c.attSp.QD)

	// attitude error as the rotation from current to desired
	qe := quat.Mul(quat.Inv(q), qd)

	roll, pitch, _ := eulerFromQuat(qe)
	// yaw error is handled entirely in the rate loop
	attErr := r3.Vec{X: roll, Y: pitch, Z: 0}

	c.pControlAtt[0] = r3.Add(gainMul(c.gainA, attErr, r3.Vec{}), c.gravityComp)
	c.pControlAtt[1] = r3.Add(gainMul(c.gainB, attErr, r3.Vec{}), c.gravityComp)
}
