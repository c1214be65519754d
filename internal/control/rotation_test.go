package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/testutil"
	"github.com/skyshift-uas/tiltctl/internal/units"
)

func TestEulerQuatRoundTrip(t *testing.T) {
	cases := []struct{ roll, pitch, yaw float64 }{
		{0, 0, 0},
		{0.3, -0.2, 1.1},
		{-1.0, 0.5, -2.8},
		{units.Radians(30), units.Radians(-45), units.Radians(120)},
	}
	for _, c := range cases {
		q := quatFromEuler(c.roll, c.pitch, c.yaw)
		roll, pitch, yaw := eulerFromQuat(q)
		if math.Abs(roll-c.roll) > 1e-9 || math.Abs(pitch-c.pitch) > 1e-9 || math.Abs(yaw-c.yaw) > 1e-9 {
			t.Errorf("round trip (%v,%v,%v) -> (%v,%v,%v)", c.roll, c.pitch, c.yaw, roll, pitch, yaw)
		}
	}
}

func TestNormalizeQuat(t *testing.T) {
	q := normalizeQuat(quat.Number{Real: 2, Imag: 0, Jmag: 0, Kmag: 0})
	if math.Abs(quat.Abs(q)-1) > 1e-12 {
		t.Errorf("norm = %v, want 1", quat.Abs(q))
	}

	// a zero quaternion must map to identity, never NaN
	q = normalizeQuat(quat.Number{})
	if q != (quat.Number{Real: 1}) {
		t.Errorf("normalizeQuat(0) = %+v, want identity", q)
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// rotation of pi/2 about x
	q := quatFromAxisAngle(r3.Vec{X: math.Pi / 2})
	roll, pitch, yaw := eulerFromQuat(q)
	if math.Abs(roll-math.Pi/2) > 1e-9 || math.Abs(pitch) > 1e-9 || math.Abs(yaw) > 1e-9 {
		t.Errorf("axis-angle(pi/2, x) -> (%v,%v,%v)", roll, pitch, yaw)
	}

	if q := quatFromAxisAngle(r3.Vec{}); q != (quat.Number{Real: 1}) {
		t.Errorf("zero axis-angle should be identity, got %+v", q)
	}
}

func TestDCMMatchesQuat(t *testing.T) {
	roll, pitch, yaw := 0.4, -0.3, 0.9
	m := dcmFromEuler(roll, pitch, yaw)

	// rotating the body z axis must agree with the quaternion path
	v := rotateVec(m, r3.Vec{Z: 1})

	q := quatFromEuler(roll, pitch, yaw)
	qv := quat.Mul(quat.Mul(q, quat.Number{Kmag: 1}), quat.Conj(q))
	want := r3.Vec{X: qv.Imag, Y: qv.Jmag, Z: qv.Kmag}

	testutil.AssertVecInDelta(t, v, want, 1e-9)
}

func TestBoardRotationComposition(t *testing.T) {
	// 90 degree yaw coarse rotation maps body x to y
	m := boardRotation([3]float64{0, 0, 90}, [3]float64{})
	v := rotateVec(m, r3.Vec{X: 1})
	testutil.AssertVecInDelta(t, v, r3.Vec{Y: 1}, 1e-9)

	// identity with no configuration
	m = boardRotation([3]float64{}, [3]float64{})
	v = rotateVec(m, r3.Vec{X: 0.1, Y: 0.2, Z: 0.3})
	testutil.AssertVecInDelta(t, v, r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}, 1e-12)
}
