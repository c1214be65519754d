// Package config loads and validates controller tuning parameters.
//
// Parameters live in a JSON file with all fields optional; fields omitted
// from the file fall back to the defaults baked into the Get* accessors,
// so partial configs are safe. The same file is re-read on a parameter
// update notification for in-flight hot reload.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GainMatrixSize is the element count of one module's LQR gain block:
// 3 output force components by 6 error components (3 attitude + 3 rate).
const GainMatrixSize = 18

// TuningConfig is the root tuning parameter set. The gain blocks are
// row-major 3x6 matrices; row order Fx, Fy, Fz, column order roll error,
// pitch error, yaw error, roll rate, pitch rate, yaw rate.
type TuningConfig struct {
	// LQR gain blocks, one per tilt module
	LQRGainModuleA *[GainMatrixSize]float64 `json:"lqr_gain_module_a,omitempty"`
	LQRGainModuleB *[GainMatrixSize]float64 `json:"lqr_gain_module_b,omitempty"`

	// Physical limits
	MaxThrust   *float64    `json:"max_thrust,omitempty"`   // newtons per module
	GravityComp *[3]float64 `json:"gravity_comp,omitempty"` // static thrust feed-forward per module

	// Rate loop
	DTermCutoff *float64    `json:"dterm_cutoff,omitempty"` // Hz, 0 disables
	RateP       *[3]float64 `json:"rate_p,omitempty"`
	RateI       *[3]float64 `json:"rate_i,omitempty"`
	RateD       *[3]float64 `json:"rate_d,omitempty"`
	RateFF      *[3]float64 `json:"rate_ff,omitempty"`
	RateIntLim  *[3]float64 `json:"rate_int_lim,omitempty"`

	// Throttle PID attenuation (present but disabled by default)
	TPAEnabled    *bool    `json:"tpa_enabled,omitempty"`
	TPABreakpoint *float64 `json:"tpa_breakpoint,omitempty"`
	TPARate       *float64 `json:"tpa_rate,omitempty"`

	// Manual / acro
	AcroRateMax      *[3]float64 `json:"acro_rate_max,omitempty"` // deg/s
	AcroExpo         *float64    `json:"acro_expo,omitempty"`
	AcroExpoYaw      *float64    `json:"acro_expo_yaw,omitempty"`
	AcroSuperExpo    *float64    `json:"acro_superexpo,omitempty"`
	AcroSuperExpoYaw *float64    `json:"acro_superexpo_yaw,omitempty"`
	ManTiltMax       *float64    `json:"man_tilt_max,omitempty"` // degrees
	ManYawMax        *float64    `json:"man_yaw_max,omitempty"`  // deg/s
	RattitudeThresh  *float64    `json:"rattitude_threshold,omitempty"`
	Airmode          *int        `json:"airmode,omitempty"`

	// Throttle curve
	ThrottleCurve   *int     `json:"throttle_curve,omitempty"` // 0 hover-centered, 1 linear
	ThrustHover     *float64 `json:"thrust_hover,omitempty"`
	ThrustMinManual *float64 `json:"thrust_min_manual,omitempty"`
	ThrustMax       *float64 `json:"thrust_max,omitempty"`

	// Sensor mounting
	BoardRotation *[3]float64 `json:"board_rotation,omitempty"` // degrees, coarse mount orientation
	BoardOffset   *[3]float64 `json:"board_offset,omitempty"`   // degrees, fine-tune

	// Airframe / output
	Tailsitter      *bool `json:"tailsitter,omitempty"`
	BatScaleEnabled *bool `json:"bat_scale_enabled,omitempty"`
	RateCtrlBreaker *bool `json:"rate_ctrl_breaker,omitempty"` // suppress actuator output for bench tests
}

// Airmode values. RollPitchYaw keeps yaw authority at zero throttle.
const (
	AirmodeDisabled     = 0
	AirmodeRollPitch    = 1
	AirmodeRollPitchYaw = 2
)

// EmptyTuningConfig returns a TuningConfig with every field unset, so all
// accessors return their defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are physically sensible.
func (c *TuningConfig) Validate() error {
	if c.MaxThrust != nil && *c.MaxThrust <= 0 {
		return fmt.Errorf("max_thrust must be positive, got %f", *c.MaxThrust)
	}
	if c.DTermCutoff != nil && *c.DTermCutoff < 0 {
		return fmt.Errorf("dterm_cutoff must be non-negative, got %f", *c.DTermCutoff)
	}
	if c.ManTiltMax != nil && (*c.ManTiltMax <= 0 || *c.ManTiltMax > 90) {
		return fmt.Errorf("man_tilt_max must be in (0, 90] degrees, got %f", *c.ManTiltMax)
	}
	if c.RattitudeThresh != nil && (*c.RattitudeThresh <= 0 || *c.RattitudeThresh > 1) {
		return fmt.Errorf("rattitude_threshold must be in (0, 1], got %f", *c.RattitudeThresh)
	}
	for name, v := range map[string]*float64{
		"acro_expo":          c.AcroExpo,
		"acro_expo_yaw":      c.AcroExpoYaw,
		"acro_superexpo":     c.AcroSuperExpo,
		"acro_superexpo_yaw": c.AcroSuperExpoYaw,
	} {
		if v != nil && (*v < 0 || *v > 0.99) {
			return fmt.Errorf("%s must be in [0, 0.99], got %f", name, *v)
		}
	}

	// The hover-centered throttle curve needs min < hover < max to stay
	// monotonic across the stick midpoint.
	hover := c.GetThrustHover()
	if min, max := c.GetThrustMinManual(), c.GetThrustMax(); !(min < hover && hover < max) {
		return fmt.Errorf("throttle curve requires min < hover < max, got %f/%f/%f", min, hover, max)
	}

	if c.Airmode != nil {
		switch *c.Airmode {
		case AirmodeDisabled, AirmodeRollPitch, AirmodeRollPitchYaw:
		default:
			return fmt.Errorf("airmode must be 0, 1 or 2, got %d", *c.Airmode)
		}
	}

	return nil
}

// GetLQRGainModuleA returns module A's gain block or the default tune.
func (c *TuningConfig) GetLQRGainModuleA() [GainMatrixSize]float64 {
	if c.LQRGainModuleA == nil {
		return [GainMatrixSize]float64{
			0, 1.2, 0.8, 0, 0.35, 0.25,
			-1.2, 0, 0, -0.35, 0, 0,
			0, 0, 0, 0, 0, 0,
		}
	}
	return *c.LQRGainModuleA
}

// GetLQRGainModuleB returns module B's gain block or the default tune.
func (c *TuningConfig) GetLQRGainModuleB() [GainMatrixSize]float64 {
	if c.LQRGainModuleB == nil {
		return [GainMatrixSize]float64{
			0, 1.2, -0.8, 0, 0.35, -0.25,
			-1.2, 0, 0, -0.35, 0, 0,
			0, 0, 0, 0, 0, 0,
		}
	}
	return *c.LQRGainModuleB
}

// GetMaxThrust returns the per-module maximum thrust in newtons.
func (c *TuningConfig) GetMaxThrust() float64 {
	if c.MaxThrust == nil {
		return 10.0
	}
	return *c.MaxThrust
}

// GetGravityComp returns the static thrust feed-forward vector.
func (c *TuningConfig) GetGravityComp() [3]float64 {
	if c.GravityComp == nil {
		return [3]float64{0, 0, 0.37}
	}
	return *c.GravityComp
}

// GetDTermCutoff returns the D-term low-pass cutoff in Hz.
func (c *TuningConfig) GetDTermCutoff() float64 {
	if c.DTermCutoff == nil {
		return 30.0
	}
	return *c.DTermCutoff
}

// GetRateP returns the rate proportional gains.
func (c *TuningConfig) GetRateP() [3]float64 {
	if c.RateP == nil {
		return [3]float64{0.15, 0.15, 0.2}
	}
	return *c.RateP
}

// GetRateI returns the rate integral gains.
func (c *TuningConfig) GetRateI() [3]float64 {
	if c.RateI == nil {
		return [3]float64{0.2, 0.2, 0.1}
	}
	return *c.RateI
}

// GetRateD returns the rate derivative gains.
func (c *TuningConfig) GetRateD() [3]float64 {
	if c.RateD == nil {
		return [3]float64{0.003, 0.003, 0}
	}
	return *c.RateD
}

// GetRateFF returns the rate feed-forward gains.
func (c *TuningConfig) GetRateFF() [3]float64 {
	if c.RateFF == nil {
		return [3]float64{}
	}
	return *c.RateFF
}

// GetRateIntLim returns the rate integrator limits.
func (c *TuningConfig) GetRateIntLim() [3]float64 {
	if c.RateIntLim == nil {
		return [3]float64{0.30, 0.30, 0.30}
	}
	return *c.RateIntLim
}

// GetTPAEnabled reports whether throttle PID attenuation feeds the rate
// error. Disabled by default.
func (c *TuningConfig) GetTPAEnabled() bool {
	if c.TPAEnabled == nil {
		return false
	}
	return *c.TPAEnabled
}

// GetTPABreakpoint returns the thrust level where attenuation begins.
func (c *TuningConfig) GetTPABreakpoint() float64 {
	if c.TPABreakpoint == nil {
		return 1.0
	}
	return *c.TPABreakpoint
}

// GetTPARate returns the attenuation slope above the breakpoint.
func (c *TuningConfig) GetTPARate() float64 {
	if c.TPARate == nil {
		return 0.0
	}
	return *c.TPARate
}

// GetAcroRateMax returns the maximum acro rates in deg/s.
func (c *TuningConfig) GetAcroRateMax() [3]float64 {
	if c.AcroRateMax == nil {
		return [3]float64{720, 720, 540}
	}
	return *c.AcroRateMax
}

// GetAcroExpo returns the roll/pitch acro expo factor.
func (c *TuningConfig) GetAcroExpo() float64 {
	if c.AcroExpo == nil {
		return 0.69
	}
	return *c.AcroExpo
}

// GetAcroExpoYaw returns the yaw acro expo factor.
func (c *TuningConfig) GetAcroExpoYaw() float64 {
	if c.AcroExpoYaw == nil {
		return 0.69
	}
	return *c.AcroExpoYaw
}

// GetAcroSuperExpo returns the roll/pitch super-expo factor.
func (c *TuningConfig) GetAcroSuperExpo() float64 {
	if c.AcroSuperExpo == nil {
		return 0.7
	}
	return *c.AcroSuperExpo
}

// GetAcroSuperExpoYaw returns the yaw super-expo factor.
func (c *TuningConfig) GetAcroSuperExpoYaw() float64 {
	if c.AcroSuperExpoYaw == nil {
		return 0.7
	}
	return *c.AcroSuperExpoYaw
}

// GetManTiltMax returns the maximum manual tilt angle in degrees.
func (c *TuningConfig) GetManTiltMax() float64 {
	if c.ManTiltMax == nil {
		return 35.0
	}
	return *c.ManTiltMax
}

// GetManYawMax returns the maximum manual yaw rate in deg/s.
func (c *TuningConfig) GetManYawMax() float64 {
	if c.ManYawMax == nil {
		return 150.0
	}
	return *c.ManYawMax
}

// GetRattitudeThresh returns the stick deflection above which rattitude
// mode hands control to the rate loop.
func (c *TuningConfig) GetRattitudeThresh() float64 {
	if c.RattitudeThresh == nil {
		return 0.8
	}
	return *c.RattitudeThresh
}

// GetAirmode returns the configured airmode.
func (c *TuningConfig) GetAirmode() int {
	if c.Airmode == nil {
		return AirmodeDisabled
	}
	return *c.Airmode
}

// GetThrottleCurve returns the throttle curve selector.
func (c *TuningConfig) GetThrottleCurve() int {
	if c.ThrottleCurve == nil {
		return 0
	}
	return *c.ThrottleCurve
}

// GetThrustHover returns the hover thrust fraction.
func (c *TuningConfig) GetThrustHover() float64 {
	if c.ThrustHover == nil {
		return 0.5
	}
	return *c.ThrustHover
}

// GetThrustMinManual returns the minimum manual thrust fraction.
func (c *TuningConfig) GetThrustMinManual() float64 {
	if c.ThrustMinManual == nil {
		return 0.08
	}
	return *c.ThrustMinManual
}

// GetThrustMax returns the maximum thrust fraction.
func (c *TuningConfig) GetThrustMax() float64 {
	if c.ThrustMax == nil {
		return 0.9
	}
	return *c.ThrustMax
}

// GetBoardRotation returns the coarse board mounting rotation in degrees.
func (c *TuningConfig) GetBoardRotation() [3]float64 {
	if c.BoardRotation == nil {
		return [3]float64{}
	}
	return *c.BoardRotation
}

// GetBoardOffset returns the fine-tune board rotation offset in degrees.
func (c *TuningConfig) GetBoardOffset() [3]float64 {
	if c.BoardOffset == nil {
		return [3]float64{}
	}
	return *c.BoardOffset
}

// GetTailsitter reports whether the airframe is a tailsitter VTOL.
func (c *TuningConfig) GetTailsitter() bool {
	if c.Tailsitter == nil {
		return false
	}
	return *c.Tailsitter
}

// GetBatScaleEnabled reports whether battery compensation scaling applies.
func (c *TuningConfig) GetBatScaleEnabled() bool {
	if c.BatScaleEnabled == nil {
		return false
	}
	return *c.BatScaleEnabled
}

// GetRateCtrlBreaker reports whether the actuator output circuit breaker
// is engaged.
func (c *TuningConfig) GetRateCtrlBreaker() bool {
	if c.RateCtrlBreaker == nil {
		return false
	}
	return *c.RateCtrlBreaker
}
