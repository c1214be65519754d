// Package msg defines the message schemas exchanged over the topic bus
// between the control core and its collaborators: sensor drivers upstream,
// the mixer and telemetry consumers downstream.
//
// Quaternions use gonum's quat.Number with the scalar part in Real. The
// identity orientation is {Real: 1}. All angles are radians, rates are
// radians per second and forces are newtons.
package msg

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// Identity is the identity orientation quaternion.
func Identity() quat.Number { return quat.Number{Real: 1} }

// Attitude is the vehicle orientation estimate.
type Attitude struct {
	Q quat.Number // body to world rotation

	// ResetCounter increments when the estimator resets its heading
	// reference; DeltaQReset carries the applied rotation so consumers
	// can carry setpoints across the reset.
	ResetCounter uint8
	DeltaQReset  quat.Number

	Timestamp time.Time
}

// AttitudeSetpoint is the desired orientation plus thrust demand.
type AttitudeSetpoint struct {
	QD quat.Number // desired orientation

	RollBody  float64
	PitchBody float64
	YawBody   float64

	// YawSPMoveRate is the commanded yaw rate of change driving the
	// yaw setpoint integration.
	YawSPMoveRate float64

	// ThrustBody is the demanded thrust in body frame; hover thrust is
	// a negative Z component.
	ThrustBody [3]float64

	Timestamp time.Time
}

// RatesSetpoint is the desired body angular rate.
type RatesSetpoint struct {
	Roll  float64
	Pitch float64
	Yaw   float64

	ThrustBody [3]float64

	Timestamp time.Time
}

// SwitchPos is a three-position RC switch state.
type SwitchPos uint8

const (
	SwitchNone SwitchPos = iota
	SwitchOn
	SwitchMiddle
	SwitchOff
)

// ManualControl is the pilot stick input. X is pitch (forward positive),
// Y is roll, Z is throttle in [0, 1], R is yaw.
type ManualControl struct {
	X float64
	Y float64
	Z float64
	R float64

	GearSwitch SwitchPos

	Timestamp time.Time
}

// ControlMode carries the armed flag and the per-axis control-enable
// flags that drive mode arbitration.
type ControlMode struct {
	Armed bool

	RatesEnabled       bool
	AttitudeEnabled    bool
	ManualEnabled      bool
	AltitudeEnabled    bool
	VelocityEnabled    bool
	PositionEnabled    bool
	RattitudeEnabled   bool
	TerminationEnabled bool
}

// GyroSample is one raw gyroscope measurement in the sensor frame.
type GyroSample struct {
	X float64
	Y float64
	Z float64

	// Instance identifies which gyro produced the sample.
	Instance int

	Timestamp time.Time
}

// GyroCoeffs are per-instance thermal correction coefficients.
type GyroCoeffs struct {
	Offset [3]float64
	Scale  [3]float64
}

// UnitCoeffs returns pass-through correction coefficients.
func UnitCoeffs() GyroCoeffs {
	return GyroCoeffs{Scale: [3]float64{1, 1, 1}}
}

// GyroCorrection selects the active gyro instance and carries correction
// coefficients keyed by instance ID. Instances without an entry are
// passed through unmodified.
type GyroCorrection struct {
	Selected  int
	Instances map[int]GyroCoeffs
}

// SensorBias is the in-run gyro bias estimate.
type SensorBias struct {
	GyroX float64
	GyroY float64
	GyroZ float64
}

// VehicleStatus carries the airframe flags the mode arbiter consumes.
type VehicleStatus struct {
	IsRotaryWing bool
	IsVTOL       bool
	InTransition bool
}

// MotorLimits reports mixer saturation as a bitmask.
type MotorLimits struct {
	Saturation uint16
}

// BatteryStatus carries the output compensation scale factor.
type BatteryStatus struct {
	Scale float64
}

// LandDetected reports the land detector decision.
type LandDetected struct {
	Landed bool
}

// GearState is the commanded landing gear position.
type GearState int8

const (
	GearDown GearState = -1
	GearUp   GearState = 1
)

// LandingGear is the landing gear command.
type LandingGear struct {
	State     GearState
	Timestamp time.Time
}

// Actuator control slot assignment for the twin tilt-module airframe.
const (
	SlotTiltAlphaA = 0 // module A tilt alpha
	SlotTiltBetaA  = 1 // module A tilt beta
	SlotThrustA    = 2 // module A thrust fraction
	SlotThrust     = 3 // overall thrust setpoint
	SlotTiltAlphaB = 5 // module B tilt alpha
	SlotTiltBetaB  = 6 // module B tilt beta
	SlotThrustB    = 7 // module B thrust fraction
)

// ActuatorControls is the 8-slot actuator command array. Slot 4 is unused
// on this airframe.
type ActuatorControls struct {
	Control [8]float64

	Timestamp time.Time
	// TimestampSample is the gyro sample time the command derives from.
	TimestampSample time.Time
}

// RateControllerStatus is the telemetry snapshot of the rate loop.
type RateControllerStatus struct {
	RollSpeed  float64
	PitchSpeed float64
	YawSpeed   float64

	RollSpeedInteg  float64
	PitchSpeedInteg float64
	YawSpeedInteg   float64

	Timestamp time.Time
}

// PartialControls is the upstream translational controller output: three
// force components per module, summed into the virtual force vectors.
type PartialControls struct {
	Control [6]float64
}

// ParameterUpdate notifies the controller that the parameter store has
// changed and gains must be re-read.
type ParameterUpdate struct {
	Timestamp time.Time
}
