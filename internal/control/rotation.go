package control

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/units"
)

// Rotation algebra shared by the attitude-error computation, the board
// mounting correction and the manual setpoint mapping. Euler angles use
// the aerospace ZYX (yaw-pitch-roll) sequence throughout.

// normalizeQuat scales q to unit norm. A zero quaternion maps to identity
// so downstream inverse trig stays in domain.
func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1.0/n, q)
}

// quatFromEuler builds the unit quaternion for a ZYX euler rotation.
func quatFromEuler(roll, pitch, yaw float64) quat.Number {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// eulerFromQuat extracts ZYX euler angles from a unit quaternion. Pitch
// saturates at +-pi/2 when the asin argument leaves [-1, 1] due to
// rounding.
func eulerFromQuat(q quat.Number) (roll, pitch, yaw float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch = math.Asin(units.Constrain(2*(w*y-z*x), -1, 1))
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// yawFromQuat returns only the heading component.
func yawFromQuat(q quat.Number) float64 {
	_, _, yaw := eulerFromQuat(q)
	return yaw
}

// quatFromAxisAngle builds the quaternion rotating by |v| radians about
// the axis v. The zero vector maps to identity.
func quatFromAxisAngle(v r3.Vec) quat.Number {
	angle := r3.Norm(v)
	if angle == 0 {
		return quat.Number{Real: 1}
	}
	axis := r3.Scale(1.0/angle, v)
	s := math.Sin(angle / 2)
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// dcmFromEuler builds the body-to-reference direction cosine matrix for a
// ZYX euler rotation, R = Rz(yaw) * Ry(pitch) * Rx(roll).
func dcmFromEuler(roll, pitch, yaw float64) *mat.Dense {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	return mat.NewDense(3, 3, []float64{
		cp * cy, sr*sp*cy - cr*sy, cr*sp*cy + sr*sy,
		cp * sy, sr*sp*sy + cr*cy, cr*sp*sy - sr*cy,
		-sp, sr * cp, cr * cp,
	})
}

// rotateVec applies a 3x3 rotation matrix to a vector.
func rotateVec(m mat.Matrix, v r3.Vec) r3.Vec {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// boardRotation composes the coarse mounting rotation with the fine-tune
// offset, both given as euler angles in degrees.
func boardRotation(rotationDeg, offsetDeg [3]float64) *mat.Dense {
	coarse := dcmFromEuler(
		units.Radians(rotationDeg[0]),
		units.Radians(rotationDeg[1]),
		units.Radians(rotationDeg[2]),
	)
	offset := dcmFromEuler(
		units.Radians(offsetDeg[0]),
		units.Radians(offsetDeg[1]),
		units.Radians(offsetDeg[2]),
	)

	out := mat.NewDense(3, 3, nil)
	out.Mul(offset, coarse)
	return out
}
