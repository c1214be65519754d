package control

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/monitoring"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/units"
)

const (
	// gyroWaitTimeout bounds the blocking wait for new gyro data; a
	// timeout just re-checks the exit condition. It is also the upper
	// bound on cancellation latency.
	gyroWaitTimeout = 100 * time.Millisecond

	// waitErrorBackoff is the sleep after a wait failure before retrying.
	waitErrorBackoff = 100 * time.Millisecond

	// dt clamp bounds, rejecting pathological spikes and near-zero
	// deltas
	dtMin = 0.0002
	dtMax = 0.02

	// loop-rate estimation runs only while disarmed or within this
	// window after start; retuning the filter is not something to do
	// mid-flight
	loopRateEstimationWindow = 3300 * time.Millisecond
)

// clampDt bounds the integration step: stalled wakeups are capped at
// dtMax so one late sample cannot dump a huge step into the filters, and
// near-duplicate timestamps are floored at dtMin.
func clampDt(seconds float64) float64 {
	return units.Constrain(seconds, dtMin, dtMax)
}

// Run drives the controller at gyro rate until ctx is cancelled. The
// latency-critical ordering inside one iteration is fixed: the rate loop
// runs and publishes immediately after the gyro update; every slower
// topic is polled afterwards.
func (c *Controller) Run(ctx context.Context) error {
	taskStart := c.clock.Now()
	lastRun := taskStart
	dtAccumulator := 0.0
	loopCounter := 0

	resetYawSp := true
	attitudeDt := 0.0

	for ctx.Err() == nil {
		// the selected gyro can change between iterations
		c.pollSensorCorrection()

		ok, err := c.gyroIn.Wait(gyroWaitTimeout)
		if err != nil {
			// undesirable but not fatal; back off and retry
			monitoring.Logf("gyro wait error: %v", err)
			c.clock.Sleep(waitErrorBackoff)
			continue
		}
		if !ok {
			// timed out, periodic exit-condition check
			continue
		}

		v, fresh := c.gyroIn.TakeIfNewer()
		if fresh && v.Instance != c.selectedGyro {
			// only the selected gyro's samples drive the loop; a second
			// instance on the same bridge is ignored until selected
			continue
		}

		now := c.clock.Now()
		dt := clampDt(now.Sub(lastRun).Seconds())
		lastRun = now

		if fresh {
			c.gyro = v
		}

		// run the rate controller immediately after a gyro update
		if c.mode.RatesEnabled {
			c.controlRates(dt)
			c.publishActuatorControls()
			c.publishRateControllerStatus()
		}

		manualUpdated, attitudeUpdated := c.pollInputs()
		attitudeDt += dt

		// Rattitude hands over to rate control whenever roll or pitch
		// stick exceeds the threshold; re-evaluated every cycle, not
		// latched.
		if c.mode.RattitudeEnabled {
			threshold := c.cfg.GetRattitudeThresh()
			c.mode.AttitudeEnabled = abs(c.manual.Y) <= threshold &&
				abs(c.manual.X) <= threshold
		}

		attitudeSetpointGenerated := false

		isHovering := c.status.IsRotaryWing && !c.status.InTransition
		isTailsitterTransition := c.status.InTransition && c.isTailsitter

		if c.mode.AttitudeEnabled && (isHovering || isTailsitterTransition) {
			if attitudeUpdated {
				// manual/stabilized mode synthesizes the setpoint from
				// sticks; any outer loop supplies it via the topic
				if c.mode.ManualEnabled &&
					!c.mode.AltitudeEnabled &&
					!c.mode.VelocityEnabled &&
					!c.mode.PositionEnabled {
					c.generateAttitudeSetpoint(attitudeDt, resetYawSp)
					attitudeSetpointGenerated = true
				}

				c.controlAttitude()
				c.publishRatesSetpoint()
			}
		} else if c.mode.ManualEnabled && isHovering {
			// manual rates control, acro mode
			if manualUpdated {
				e := c.cfg.GetAcroExpo()
				g := c.cfg.GetAcroSuperExpo()
				manRateSp := r3.Vec{
					X: units.SuperExpo(c.manual.Y, e, g),
					Y: units.SuperExpo(-c.manual.X, e, g),
					Z: units.SuperExpo(c.manual.R, c.cfg.GetAcroExpoYaw(), c.cfg.GetAcroSuperExpoYaw()),
				}
				c.ratesSp = r3.Vec{
					X: manRateSp.X * c.acroRateMax.X,
					Y: manRateSp.Y * c.acroRateMax.Y,
					Z: manRateSp.Z * c.acroRateMax.Z,
				}
				c.thrustSp = c.manual.Z
				c.publishRatesSetpoint()
			}
		} else {
			// attitude controller disabled, consume the external rate
			// setpoint
			if v, fresh := c.ratesSpIn.TakeIfNewer(); fresh {
				c.ratesSp = r3.Vec{X: v.Roll, Y: v.Pitch, Z: v.Yaw}
				c.thrustSp = -v.ThrustBody[2]
			}
		}

		if c.mode.TerminationEnabled && !c.status.IsVTOL {
			c.ratesSp = r3.Vec{}
			c.ratesInt = r3.Vec{}
			c.thrustSp = 0
			c.attControl[0] = r3.Vec{}
			c.attControl[1] = r3.Vec{}
			c.attControlThrust = 0
			c.virtualControl[0] = r3.Vec{}
			c.virtualControl[1] = r3.Vec{}
			c.publishActuatorControls()
		}

		if attitudeUpdated {
			// transitions generate their own attitude setpoint, so the
			// yaw reference snaps back to the heading next time
			resetYawSp = (!attitudeSetpointGenerated && !c.mode.RattitudeEnabled) ||
				c.land.Landed ||
				(c.status.IsVTOL && c.status.InTransition)

			attitudeDt = 0
		}

		// estimate the loop rate only while disarmed or shortly after
		// start; retuning the filter mid-flight would alter the
		// controller's own dynamics
		if !c.mode.Armed || now.Sub(taskStart) < loopRateEstimationWindow {
			dtAccumulator += dt
			loopCounter++

			if dtAccumulator > 1.0 {
				loopRate := float64(loopCounter) / dtAccumulator
				c.loopUpdateRateHz = c.loopUpdateRateHz*0.5 + loopRate*0.5
				dtAccumulator = 0
				loopCounter = 0
				c.dtermFilter.SetCutoff(c.loopUpdateRateHz, c.cfg.GetDTermCutoff())
			}
		}

		c.pollParameterUpdate()
	}

	return ctx.Err()
}

// publishActuatorControls maps the two module commands into the 8-slot
// actuator array, sanitizes non-finite values, applies battery
// compensation and publishes unless the circuit breaker is engaged.
func (c *Controller) publishActuatorControls() {
	var out msg.ActuatorControls
	out.Control[msg.SlotTiltAlphaA] = finiteOr(c.attControl[0].X, 0)
	out.Control[msg.SlotTiltBetaA] = finiteOr(c.attControl[0].Y, 0)
	out.Control[msg.SlotThrustA] = finiteOr(c.attControl[0].Z, 0)
	out.Control[msg.SlotTiltAlphaB] = finiteOr(c.attControl[1].X, 0)
	out.Control[msg.SlotTiltBetaB] = finiteOr(c.attControl[1].Y, 0)
	out.Control[msg.SlotThrustB] = finiteOr(c.attControl[1].Z, 0)
	out.Control[msg.SlotThrust] = finiteOr(c.thrustSp, 0)
	out.Timestamp = c.clock.Now()
	out.TimestampSample = c.gyro.Timestamp

	if c.cfg.GetBatScaleEnabled() && c.battery.Scale > 0 {
		for i := 0; i < 4; i++ {
			out.Control[i] *= c.battery.Scale
		}
	}

	if !c.cfg.GetRateCtrlBreaker() {
		c.actuatorTopic().Publish(out)
	}
}

// publishRatesSetpoint publishes the current rate setpoint for telemetry.
func (c *Controller) publishRatesSetpoint() {
	c.topics.RatesSetpoint.Publish(msg.RatesSetpoint{
		Roll:       c.ratesSp.X,
		Pitch:      c.ratesSp.Y,
		Yaw:        c.ratesSp.Z,
		ThrustBody: [3]float64{0, 0, -c.thrustSp},
		Timestamp:  c.clock.Now(),
	})
}

// publishRateControllerStatus publishes the rate loop telemetry snapshot.
func (c *Controller) publishRateControllerStatus() {
	c.topics.RateCtrlStatus.Publish(msg.RateControllerStatus{
		RollSpeed:       c.ratesPrev.X,
		PitchSpeed:      c.ratesPrev.Y,
		YawSpeed:        c.ratesPrev.Z,
		RollSpeedInteg:  c.ratesInt.X,
		PitchSpeedInteg: c.ratesInt.Y,
		YawSpeedInteg:   c.ratesInt.Z,
		Timestamp:       c.clock.Now(),
	})
}
