package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/config"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/units"
)

// yawStickDeadband is the throttle stick level below which yaw stick
// input stops integrating into the yaw setpoint (unless airmode keeps
// yaw authority alive at idle).
const yawStickDeadband = 0.05

// throttleCurve remaps the normalised throttle stick [0, 1] to a thrust
// fraction. The default curve is piecewise linear with the hover thrust
// pinned at mid-stick; curve 1 is a plain linear map from manual-minimum
// to maximum thrust.
func (c *Controller) throttleCurve(stick float64) float64 {
	min := c.cfg.GetThrustMinManual()
	max := c.cfg.GetThrustMax()
	hover := c.cfg.GetThrustHover()

	switch c.cfg.GetThrottleCurve() {
	case 1:
		return min + stick*(max-min)
	default:
		if stick < 0.5 {
			return (hover-min)/0.5*stick + min
		}
		return (max-hover)/0.5*(stick-1.0) + max
	}
}

// landingGearState derives the commanded gear position from the gear
// switch. Retraction requires the latch set by an explicit switch-off,
// so a switch left "on" before takeoff cannot retract the gear on arm;
// landing clears the latch again.
func (c *Controller) landingGearState() msg.GearState {
	if c.land.Landed {
		c.gearStateInit = false
	}

	gear := msg.GearDown
	if c.manual.GearSwitch == msg.SwitchOn && c.gearStateInit {
		gear = msg.GearUp
	} else if c.manual.GearSwitch == msg.SwitchOff {
		// switching the gear off puts it into a safe defined state
		c.gearStateInit = true
	}
	return gear
}

// generateAttitudeSetpoint synthesizes an attitude setpoint from stick
// input and the current heading, publishing it together with the derived
// landing gear command.
func (c *Controller) generateAttitudeSetpoint(dt float64, resetYawSp bool) {
	var sp msg.AttitudeSetpoint
	yaw := yawFromQuat(c.att.Q)

	if resetYawSp {
		c.manYawSp = yaw
	} else if c.manual.Z > yawStickDeadband || c.cfg.GetAirmode() == config.AirmodeRollPitchYaw {
		sp.YawSPMoveRate = c.manual.R * c.manYawMax
		c.manYawSp = units.WrapPi(c.manYawSp + sp.YawSPMoveRate*dt)
	}

	// The stick pair (x, y) commands a tilt angle sqrt(x^2+y^2) and the
	// direction of maximum tilt in the XY plane, so the vehicle flies
	// towards where the stick points and stick response stays linear.
	// The perpendicular vector (y, -x) is the axis-angle rotation that
	// produces that tilt.
	x := c.manual.X * c.manTiltMax
	y := c.manual.Y * c.manTiltMax

	v := r3.Vec{X: y, Y: -x}
	if vNorm := r3.Norm(v); vNorm > c.manTiltMax {
		v = r3.Scale(c.manTiltMax/vNorm, v)
	}

	qSpRollPitch := quatFromAxisAngle(v)
	eulerRoll, eulerPitch, eulerYaw := eulerFromQuat(qSpRollPitch)
	sp.RollBody = eulerRoll
	sp.PitchBody = eulerPitch
	// the axis-angle rotation shifts yaw too at higher tilt angles;
	// carry that shift into the yaw setpoint
	sp.YawBody = c.manYawSp + eulerYaw

	if c.status.IsVTOL {
		// Correct roll/pitch for the current yaw error so the perceived
		// tilt direction stays stable under fast yaw: euler composition
		// uses the yaw setpoint, not the heading, which would otherwise
		// couple the axes. Skipped for pure multicopters, which
		// oscillate at high tilt with this correction.
		yawError := units.WrapPi(sp.YawBody - yaw)

		zB := r3.Vec{Z: 1}
		rollPitchDCM := dcmFromEuler(sp.RollBody, sp.PitchBody, 0)
		zRollPitchSp := rotateVec(rollPitchDCM, zB)

		yawCorrection := dcmFromEuler(0, 0, -yawError)
		zRollPitchSp = rotateVec(yawCorrection, zRollPitchSp)

		sp.RollBody = -math.Asin(units.Constrain(zRollPitchSp.Y, -1, 1))
		sp.PitchBody = math.Atan2(zRollPitchSp.X, zRollPitchSp.Z)
	}

	sp.QD = quatFromEuler(sp.RollBody, sp.PitchBody, sp.YawBody)
	sp.ThrustBody[2] = -c.throttleCurve(c.manual.Z)
	sp.Timestamp = c.clock.Now()
	c.attSpTopic().Publish(sp)

	c.gear.State = c.landingGearState()
	c.gear.Timestamp = c.clock.Now()
	c.topics.LandingGear.Publish(c.gear)
}
