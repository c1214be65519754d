package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNegativeThrustRedistribution(t *testing.T) {
	c := newTestController(t, nil)

	c.virtualControl[0] = r3.Vec{Z: -1}
	c.virtualControl[1] = r3.Vec{Z: 5}
	c.correctNegativeThrust()

	if math.Abs(c.virtualControl[0].Z-thrustFloor) > 1e-12 {
		t.Errorf("module A Z = %v, want floor %v", c.virtualControl[0].Z, thrustFloor)
	}
	if math.Abs(c.virtualControl[1].Z-3.9) > 1e-12 {
		t.Errorf("module B Z = %v, want 3.9", c.virtualControl[1].Z)
	}
}

func TestNegativeThrustConservesTotal(t *testing.T) {
	c := newTestController(t, nil)

	cases := [][2]float64{
		{-0.5, 2.0},
		{3.0, -1.2},
		{0.05, 0.05},
		{-2.0, 4.0},
	}
	for _, pair := range cases {
		c.virtualControl[0] = r3.Vec{Z: pair[0]}
		c.virtualControl[1] = r3.Vec{Z: pair[1]}
		before := pair[0] + pair[1]

		c.correctNegativeThrust()

		// redistribution moves the deficit, it never creates or loses
		// vertical force
		after := c.virtualControl[0].Z + c.virtualControl[1].Z
		if math.Abs(after-before) > 1e-12 {
			t.Errorf("pair %v: total Z changed %v -> %v", pair, before, after)
		}
		if pair[0] >= 0 && pair[1] >= 0 {
			// non-negative inputs are never corrected
			continue
		}
		if c.virtualControl[0].Z < thrustFloor-1e-12 || c.virtualControl[1].Z < thrustFloor-1e-12 {
			t.Errorf("pair %v: module below floor after correction: %v, %v",
				pair, c.virtualControl[0].Z, c.virtualControl[1].Z)
		}
	}
}

func TestConvertVirtualInputPureVertical(t *testing.T) {
	c := newTestController(t, nil)

	c.virtualControl[0] = r3.Vec{Z: 2.0}
	c.virtualControl[1] = r3.Vec{Z: 4.0}
	c.convertVirtualInput()

	for m, wantThrust := range []float64{0.2, 0.4} {
		got := c.attControl[m]
		if math.Abs(got.X) > 1e-12 || math.Abs(got.Y) > 1e-12 {
			t.Errorf("module %d tilt = (%v, %v), want level", m, got.X, got.Y)
		}
		if math.Abs(got.Z-wantThrust) > 1e-12 {
			t.Errorf("module %d thrust fraction = %v, want %v", m, got.Z, wantThrust)
		}
	}

	if math.Abs(c.attControlThrust-0.3) > 1e-12 {
		t.Errorf("aggregate thrust = %v, want 0.3", c.attControlThrust)
	}
}

func TestConvertVirtualInputGeometry(t *testing.T) {
	c := newTestController(t, nil)

	f := r3.Vec{X: 0.5, Y: -0.3, Z: 2.0}
	c.virtualControl[0] = f
	c.virtualControl[1] = f
	c.convertVirtualInput()

	wantBeta := -math.Atan2(f.Y, f.Z) / tiltGeometryScale
	wantAlpha := math.Atan2(f.X, f.Z/math.Cos(wantBeta)) / tiltGeometryScale
	wantThrust := r3.Norm(f) / c.maxThrust

	got := c.attControl[0]
	if math.Abs(got.Y-wantBeta) > 1e-12 {
		t.Errorf("beta = %v, want %v", got.Y, wantBeta)
	}
	if math.Abs(got.X-wantAlpha) > 1e-12 {
		t.Errorf("alpha = %v, want %v", got.X, wantAlpha)
	}
	if math.Abs(got.Z-wantThrust) > 1e-12 {
		t.Errorf("thrust fraction = %v, want %v", got.Z, wantThrust)
	}
}

func TestFiniteOr(t *testing.T) {
	if got := finiteOr(math.NaN(), 0); got != 0 {
		t.Errorf("finiteOr(NaN) = %v, want 0", got)
	}
	if got := finiteOr(math.Inf(1), 0); got != 0 {
		t.Errorf("finiteOr(+Inf) = %v, want 0", got)
	}
	if got := finiteOr(1.25, 0); got != 1.25 {
		t.Errorf("finiteOr(1.25) = %v, want 1.25", got)
	}
}

func TestLevelHoverThrustMatchesGravityCompensation(t *testing.T) {
	c := newTestController(t, nil)
	c.mode.Armed = true

	// level flight on the default tune: identity attitude and setpoint,
	// still gyro
	c.controlAttitude()
	c.controlRates(0.004)

	wantThrust := c.cfg.GetGravityComp()[2] / c.cfg.GetMaxThrust()
	for m := 0; m < 2; m++ {
		if math.Abs(c.attControl[m].X) > 1e-9 || math.Abs(c.attControl[m].Y) > 1e-9 {
			t.Errorf("module %d tilt = (%v, %v), want level", m, c.attControl[m].X, c.attControl[m].Y)
		}
		if math.Abs(c.attControl[m].Z-wantThrust) > 1e-9 {
			t.Errorf("module %d thrust = %v, want %v", m, c.attControl[m].Z, wantThrust)
		}
	}
	if math.Abs(c.attControlThrust-wantThrust) > 1e-9 {
		t.Errorf("mean thrust = %v, want %v", c.attControlThrust, wantThrust)
	}
}
