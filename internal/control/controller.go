package control

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skyshift-uas/tiltctl/internal/bus"
	"github.com/skyshift-uas/tiltctl/internal/config"
	"github.com/skyshift-uas/tiltctl/internal/monitoring"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/timeutil"
	"github.com/skyshift-uas/tiltctl/internal/units"
)

// Topics bundles every bus topic the controller touches. The VTOL variants
// of the attitude setpoint and actuator topics exist because on a
// convertible airframe the transition logic owns the plain topics and the
// multicopter controller moves to the virtual pair.
type Topics struct {
	Gyro           *bus.Topic[msg.GyroSample]
	GyroCorrection *bus.Topic[msg.GyroCorrection]
	SensorBias     *bus.Topic[msg.SensorBias]

	Attitude                *bus.Topic[msg.Attitude]
	AttitudeSetpoint        *bus.Topic[msg.AttitudeSetpoint]
	VirtualAttitudeSetpoint *bus.Topic[msg.AttitudeSetpoint]
	RatesSetpoint           *bus.Topic[msg.RatesSetpoint]
	PartialControls         *bus.Topic[msg.PartialControls]

	ControlMode   *bus.Topic[msg.ControlMode]
	VehicleStatus *bus.Topic[msg.VehicleStatus]
	MotorLimits   *bus.Topic[msg.MotorLimits]
	Battery       *bus.Topic[msg.BatteryStatus]
	LandDetected  *bus.Topic[msg.LandDetected]
	LandingGear   *bus.Topic[msg.LandingGear]
	ManualControl *bus.Topic[msg.ManualControl]

	ActuatorControls        *bus.Topic[msg.ActuatorControls]
	VirtualActuatorControls *bus.Topic[msg.ActuatorControls]
	RateCtrlStatus          *bus.Topic[msg.RateControllerStatus]
	ParameterUpdate         *bus.Topic[msg.ParameterUpdate]
}

// NewTopics creates the full topic set with safe initial values: identity
// orientation, zero rates, unit battery scale.
func NewTopics() *Topics {
	return &Topics{
		Gyro:           bus.NewTopic(msg.GyroSample{}),
		GyroCorrection: bus.NewTopic(msg.GyroCorrection{}),
		SensorBias:     bus.NewTopic(msg.SensorBias{}),

		Attitude:                bus.NewTopic(msg.Attitude{Q: msg.Identity()}),
		AttitudeSetpoint:        bus.NewTopic(msg.AttitudeSetpoint{QD: msg.Identity()}),
		VirtualAttitudeSetpoint: bus.NewTopic(msg.AttitudeSetpoint{QD: msg.Identity()}),
		RatesSetpoint:           bus.NewTopic(msg.RatesSetpoint{}),
		PartialControls:         bus.NewTopic(msg.PartialControls{}),

		ControlMode:   bus.NewTopic(msg.ControlMode{}),
		VehicleStatus: bus.NewTopic(msg.VehicleStatus{IsRotaryWing: true}),
		MotorLimits:   bus.NewTopic(msg.MotorLimits{}),
		Battery:       bus.NewTopic(msg.BatteryStatus{Scale: 1}),
		LandDetected:  bus.NewTopic(msg.LandDetected{}),
		LandingGear:   bus.NewTopic(msg.LandingGear{State: msg.GearDown}),
		ManualControl: bus.NewTopic(msg.ManualControl{}),

		ActuatorControls:        bus.NewTopic(msg.ActuatorControls{}),
		VirtualActuatorControls: bus.NewTopic(msg.ActuatorControls{}),
		RateCtrlStatus:          bus.NewTopic(msg.RateControllerStatus{}),
		ParameterUpdate:         bus.NewTopic(msg.ParameterUpdate{}),
	}
}

// Options configures a Controller.
type Options struct {
	Config *config.TuningConfig

	// Reload re-reads the tuning config on a parameter update
	// notification. Nil keeps the initial config.
	Reload func() (*config.TuningConfig, error)

	Clock  timeutil.Clock
	Topics *Topics
}

// Controller owns all attitude/rate control state. It is driven by a
// single goroutine through Run; none of its methods are safe for
// concurrent use.
type Controller struct {
	cfg    *config.TuningConfig
	reload func() (*config.TuningConfig, error)
	clock  timeutil.Clock
	topics *Topics

	// inboxes, one per consumed topic
	gyroIn       *bus.Inbox[msg.GyroSample]
	correctionIn *bus.Inbox[msg.GyroCorrection]
	biasIn       *bus.Inbox[msg.SensorBias]
	attIn        *bus.Inbox[msg.Attitude]
	attSpIn      *bus.Inbox[msg.AttitudeSetpoint]
	ratesSpIn    *bus.Inbox[msg.RatesSetpoint]
	partialIn    *bus.Inbox[msg.PartialControls]
	modeIn       *bus.Inbox[msg.ControlMode]
	statusIn     *bus.Inbox[msg.VehicleStatus]
	motorIn      *bus.Inbox[msg.MotorLimits]
	batteryIn    *bus.Inbox[msg.BatteryStatus]
	landIn       *bus.Inbox[msg.LandDetected]
	gearIn       *bus.Inbox[msg.LandingGear]
	manualIn     *bus.Inbox[msg.ManualControl]
	paramIn      *bus.Inbox[msg.ParameterUpdate]

	// actuator/attitude-setpoint routing, fixed after the first vehicle
	// status update
	actuatorsOut   *bus.Topic[msg.ActuatorControls]
	attSpOut       *bus.Topic[msg.AttitudeSetpoint]
	outputResolved bool

	// latest copies of consumed topics
	att        msg.Attitude
	attSp      msg.AttitudeSetpoint
	manual     msg.ManualControl
	mode       msg.ControlMode
	status     msg.VehicleStatus
	battery    msg.BatteryStatus
	bias       msg.SensorBias
	correction msg.GyroCorrection
	land       msg.LandDetected
	gear       msg.LandingGear
	partial    msg.PartialControls
	gyro       msg.GyroSample
	saturation uint16

	// control state
	ratesSp            r3.Vec
	thrustSp           float64
	ratesPrev          r3.Vec
	ratesPrevFiltered  r3.Vec
	ratesInt           r3.Vec
	pControlAtt        [2]r3.Vec
	virtualControl     [2]r3.Vec
	attControl         [2]r3.Vec // X: tilt alpha, Y: tilt beta, Z: thrust fraction
	attControlThrust   float64
	manYawSp           float64
	gearStateInit      bool
	loopUpdateRateHz   float64
	selectedGyro       int
	dtermFilter        *LowPass2p

	// derived parameters, refreshed by applyParameters
	gainA, gainB *mat.Dense
	gravityComp  r3.Vec
	maxThrust    float64
	acroRateMax  r3.Vec
	manTiltMax   float64
	manYawMax    float64
	boardRot     *mat.Dense
	isTailsitter bool
}

// defaultLoopRateHz seeds the loop-rate estimate before the scheduler has
// measured anything.
const defaultLoopRateHz = 250.0

// New constructs a Controller with safe initial state: identity attitude,
// zero rates and outputs, unit gyro scale.
func New(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	topics := opts.Topics
	if topics == nil {
		topics = NewTopics()
	}

	c := &Controller{
		cfg:    cfg,
		reload: opts.Reload,
		clock:  clock,
		topics: topics,

		gyroIn:       topics.Gyro.Subscribe(),
		correctionIn: topics.GyroCorrection.Subscribe(),
		biasIn:       topics.SensorBias.Subscribe(),
		attIn:        topics.Attitude.Subscribe(),
		attSpIn:      topics.AttitudeSetpoint.Subscribe(),
		ratesSpIn:    topics.RatesSetpoint.Subscribe(),
		partialIn:    topics.PartialControls.Subscribe(),
		modeIn:       topics.ControlMode.Subscribe(),
		statusIn:     topics.VehicleStatus.Subscribe(),
		motorIn:      topics.MotorLimits.Subscribe(),
		batteryIn:    topics.Battery.Subscribe(),
		landIn:       topics.LandDetected.Subscribe(),
		gearIn:       topics.LandingGear.Subscribe(),
		manualIn:     topics.ManualControl.Subscribe(),
		paramIn:      topics.ParameterUpdate.Subscribe(),

		att:              msg.Attitude{Q: msg.Identity()},
		attSp:            msg.AttitudeSetpoint{QD: msg.Identity()},
		battery:          msg.BatteryStatus{Scale: 1},
		status:           msg.VehicleStatus{IsRotaryWing: true},
		gear:             msg.LandingGear{State: msg.GearDown},
		loopUpdateRateHz: defaultLoopRateHz,
		dtermFilter:      NewLowPass2p(defaultLoopRateHz, cfg.GetDTermCutoff()),
	}

	c.applyParameters()
	return c
}

// applyParameters refreshes all values derived from the tuning config.
// Called at construction and on every parameter update notification.
func (c *Controller) applyParameters() {
	a := c.cfg.GetLQRGainModuleA()
	b := c.cfg.GetLQRGainModuleB()
	c.gainA = mat.NewDense(3, 6, a[:])
	c.gainB = mat.NewDense(3, 6, b[:])

	g := c.cfg.GetGravityComp()
	c.gravityComp = r3.Vec{X: g[0], Y: g[1], Z: g[2]}
	c.maxThrust = c.cfg.GetMaxThrust()

	acro := c.cfg.GetAcroRateMax()
	c.acroRateMax = r3.Vec{
		X: units.Radians(acro[0]),
		Y: units.Radians(acro[1]),
		Z: units.Radians(acro[2]),
	}
	c.manTiltMax = units.Radians(c.cfg.GetManTiltMax())
	c.manYawMax = units.Radians(c.cfg.GetManYawMax())

	c.boardRot = boardRotation(c.cfg.GetBoardRotation(), c.cfg.GetBoardOffset())
	c.isTailsitter = c.cfg.GetTailsitter()

	// a changed cutoff parameter is the one case that hard-resets the
	// filter state; loop-rate retunes elsewhere preserve it
	if cutoff := c.cfg.GetDTermCutoff(); abs(c.dtermFilter.Cutoff()-cutoff) > 0.01 {
		c.dtermFilter.SetCutoff(c.loopUpdateRateHz, cutoff)
		c.dtermFilter.Reset(c.ratesPrev)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// pollParameterUpdate re-reads the tuning config when notified.
func (c *Controller) pollParameterUpdate() {
	if _, fresh := c.paramIn.TakeIfNewer(); !fresh {
		return
	}
	if c.reload != nil {
		cfg, err := c.reload()
		if err != nil {
			monitoring.Logf("parameter reload failed, keeping previous tune: %v", err)
		} else {
			c.cfg = cfg
		}
	}
	c.applyParameters()
}

// pollInputs dirty-checks all the slower topics. Runs after the rate loop
// published, so none of these can add latency to the actuator path.
func (c *Controller) pollInputs() (manualUpdated, attitudeUpdated bool) {
	if v, ok := c.modeIn.TakeIfNewer(); ok {
		c.mode = v
	}
	if v, ok := c.statusIn.TakeIfNewer(); ok {
		c.status = v
		c.resolveOutputTopics()
	}
	if v, ok := c.motorIn.TakeIfNewer(); ok {
		c.saturation = v.Saturation
	}
	if v, ok := c.batteryIn.TakeIfNewer(); ok {
		c.battery = v
	}
	if v, ok := c.biasIn.TakeIfNewer(); ok {
		c.bias = v
	}
	if v, ok := c.landIn.TakeIfNewer(); ok {
		c.land = v
	}
	if v, ok := c.gearIn.TakeIfNewer(); ok {
		c.gear = v
	}
	if v, ok := c.manualIn.TakeIfNewer(); ok {
		c.manual = v
		manualUpdated = true
	}
	attitudeUpdated = c.pollAttitude()
	return manualUpdated, attitudeUpdated
}

// pollAttitude copies a fresh orientation estimate and folds heading
// resets into the manual yaw setpoint so the stick reference survives an
// estimator reset.
func (c *Controller) pollAttitude() bool {
	v, ok := c.attIn.TakeIfNewer()
	if !ok {
		return false
	}
	if v.ResetCounter != c.att.ResetCounter {
		c.manYawSp += yawFromQuat(v.DeltaQReset)
	}
	c.att = v
	return true
}

// pollSensorCorrection refreshes the thermal correction set and the active
// gyro selection.
func (c *Controller) pollSensorCorrection() {
	if v, ok := c.correctionIn.TakeIfNewer(); ok {
		c.correction = v
	}
	c.selectedGyro = c.correction.Selected
}

// resolveOutputTopics picks plain or VTOL-virtual output topics once the
// first vehicle status is known, mirroring how a transition manager takes
// over the plain topics on a convertible airframe.
func (c *Controller) resolveOutputTopics() {
	if c.outputResolved {
		return
	}
	if c.status.IsVTOL {
		c.actuatorsOut = c.topics.VirtualActuatorControls
		c.attSpOut = c.topics.VirtualAttitudeSetpoint
		c.topics.AttitudeSetpoint.Unsubscribe(c.attSpIn.ID())
		c.attSpIn = c.topics.VirtualAttitudeSetpoint.Subscribe()
	} else {
		c.actuatorsOut = c.topics.ActuatorControls
		c.attSpOut = c.topics.AttitudeSetpoint
	}
	c.outputResolved = true
}

// actuatorTopic returns the resolved actuator output topic, defaulting to
// the plain topic before the first status update.
func (c *Controller) actuatorTopic() *bus.Topic[msg.ActuatorControls] {
	if c.actuatorsOut == nil {
		return c.topics.ActuatorControls
	}
	return c.actuatorsOut
}

// attSpTopic returns the resolved attitude setpoint output topic.
func (c *Controller) attSpTopic() *bus.Topic[msg.AttitudeSetpoint] {
	if c.attSpOut == nil {
		return c.topics.AttitudeSetpoint
	}
	return c.attSpOut
}
