package control

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/msg"
)

// disableDTermFilter makes the rate loop see raw corrected rates, so
// expected values are exact.
func disableDTermFilter(c *Controller) {
	c.dtermFilter.SetCutoff(c.loopUpdateRateHz, 0)
}

func TestControlRatesScalesAndAttenuates(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)

	c.gyro = msg.GyroSample{X: 1.0, Y: 1.0, Z: 1.0}
	c.controlRates(0.004)

	// rate error = rates/5 with pitch halved and yaw zeroed, then
	// through the 2x rate columns
	want := r3.Vec{X: 2.0 / 5.0, Y: 1.0 / 5.0, Z: 0}
	for m := 0; m < 2; m++ {
		if d := r3.Norm(r3.Sub(c.virtualControl[m], want)); d > 1e-9 {
			t.Errorf("module %d virtual control = %v, want %v", m, c.virtualControl[m], want)
		}
	}
}

func TestControlRatesYawRateContributesNothing(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)

	c.gyro = msg.GyroSample{}
	c.controlRates(0.004)
	baseline := c.virtualControl

	c.gyro = msg.GyroSample{Z: 5.0}
	c.controlRates(0.004)

	for m := 0; m < 2; m++ {
		if d := r3.Norm(r3.Sub(c.virtualControl[m], baseline[m])); d > 1e-9 {
			t.Errorf("module %d output moved under pure yaw rate: %v vs %v",
				m, c.virtualControl[m], baseline[m])
		}
	}
}

func TestControlRatesSumsPartialControls(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)

	c.topics.PartialControls.Publish(msg.PartialControls{
		Control: [6]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	})
	c.gyro = msg.GyroSample{}
	c.controlRates(0.004)

	wantA := r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}
	wantB := r3.Vec{X: 0.4, Y: 0.5, Z: 0.6}
	if d := r3.Norm(r3.Sub(c.virtualControl[0], wantA)); d > 1e-9 {
		t.Errorf("module A = %v, want %v", c.virtualControl[0], wantA)
	}
	if d := r3.Norm(r3.Sub(c.virtualControl[1], wantB)); d > 1e-9 {
		t.Errorf("module B = %v, want %v", c.virtualControl[1], wantB)
	}
}

func TestControlRatesAddsCachedAttitudeOutput(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)

	c.pControlAtt[0] = r3.Vec{X: 0.5}
	c.pControlAtt[1] = r3.Vec{Y: -0.5}
	c.gyro = msg.GyroSample{}
	c.controlRates(0.004)

	if math.Abs(c.virtualControl[0].X-0.5) > 1e-9 {
		t.Errorf("module A Fx = %v, want 0.5", c.virtualControl[0].X)
	}
	if math.Abs(c.virtualControl[1].Y+0.5) > 1e-9 {
		t.Errorf("module B Fy = %v, want -0.5", c.virtualControl[1].Y)
	}
}

func TestControlRatesAppliesGyroCorrection(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)

	c.topics.GyroCorrection.Publish(msg.GyroCorrection{
		Selected: 1,
		Instances: map[int]msg.GyroCoeffs{
			1: {Offset: [3]float64{0.1, 0, 0}, Scale: [3]float64{2, 1, 1}},
		},
	})
	c.pollSensorCorrection()

	c.gyro = msg.GyroSample{X: 0.6, Instance: 1}
	rates := c.correctedRates(c.gyro)

	// (0.6 - 0.1) * 2 = 1.0
	if math.Abs(rates.X-1.0) > 1e-12 {
		t.Errorf("corrected X = %v, want 1.0", rates.X)
	}
}

func TestCorrectedRatesOtherInstanceCoeffsNeverApplied(t *testing.T) {
	c := newTestController(t, nil)
	c.topics.GyroCorrection.Publish(msg.GyroCorrection{
		Selected: 0,
		Instances: map[int]msg.GyroCoeffs{
			0: {Offset: [3]float64{1, 0, 0}, Scale: [3]float64{2, 1, 1}},
		},
	})
	c.pollSensorCorrection()

	// a sample from instance 2 has no coefficients of its own and must
	// not pick up instance 0's
	rates := c.correctedRates(msg.GyroSample{X: 3, Instance: 2})
	want := r3.Vec{X: 3}
	if d := r3.Norm(r3.Sub(rates, want)); d > 1e-12 {
		t.Errorf("corrected rates = %v, want pass-through %v", rates, want)
	}
}

func TestCorrectedRatesRemovesBias(t *testing.T) {
	c := newTestController(t, nil)
	c.bias = msg.SensorBias{GyroX: 0.01, GyroY: -0.02, GyroZ: 0.03}

	rates := c.correctedRates(msg.GyroSample{X: 0.01, Y: -0.02, Z: 0.03})
	if d := r3.Norm(rates); d > 1e-12 {
		t.Errorf("bias not removed: %v", rates)
	}
}

func TestPIDAttenuations(t *testing.T) {
	c := newTestController(t, nil)

	t.Run("below breakpoint no attenuation", func(t *testing.T) {
		c.thrustSp = 0.2
		att := c.pidAttenuations(0.5, 1.0)
		if att.X != 1.0 || att.Y != 1.0 || att.Z != 1.0 {
			t.Errorf("attenuation below breakpoint = %v, want ones", att)
		}
	})

	t.Run("above breakpoint attenuates roll and pitch only", func(t *testing.T) {
		c.thrustSp = 0.75
		att := c.pidAttenuations(0.5, 1.0)
		want := 1.0 - (0.75-0.5)/(1.0-0.5)
		if math.Abs(att.X-want) > 1e-12 || math.Abs(att.Y-want) > 1e-12 {
			t.Errorf("roll/pitch attenuation = %v, want %v", att, want)
		}
		if att.Z != 1.0 {
			t.Errorf("yaw attenuation = %v, want 1", att.Z)
		}
	})

	t.Run("clamped at lower limit", func(t *testing.T) {
		c.thrustSp = 1.0
		att := c.pidAttenuations(0.1, 5.0)
		if att.X != tpaRateLowerLimit {
			t.Errorf("attenuation = %v, want clamp %v", att.X, tpaRateLowerLimit)
		}
	})
}

// TPA must stay out of the control path unless explicitly enabled.
func TestControlRatesTPADisabledByDefault(t *testing.T) {
	c := newTestController(t, identityGains())
	disableDTermFilter(c)
	c.thrustSp = 1.0

	c.gyro = msg.GyroSample{X: 1.0}
	c.controlRates(0.004)

	want := 2.0 / 5.0
	if math.Abs(c.virtualControl[0].X-want) > 1e-9 {
		t.Errorf("TPA leaked into disabled path: %v, want %v", c.virtualControl[0].X, want)
	}
}
