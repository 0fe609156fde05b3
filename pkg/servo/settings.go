package servo

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
)

// Settings is the linear calibration of one servo: StartAngle maps to
// StartDutyCycle and EndAngle to EndDutyCycle. Angles are in degrees, duty
// cycles are fractions of the PWM period.
type Settings struct {
	StartAngle     float64 `yaml:"start_angle"`
	EndAngle       float64 `yaml:"end_angle"`
	StartDutyCycle float64 `yaml:"start_duty_cycle"`
	EndDutyCycle   float64 `yaml:"end_duty_cycle"`
}

const (
	DefaultStartAngle     = -90.0
	DefaultEndAngle       = 90.0
	DefaultStartDutyCycle = 0.025 // 0.5ms at 50Hz.
	DefaultEndDutyCycle   = 0.125 // 2.5ms at 50Hz.
)

func DefaultSettings() Settings {
	return Settings{
		StartAngle:     DefaultStartAngle,
		EndAngle:       DefaultEndAngle,
		StartDutyCycle: DefaultStartDutyCycle,
		EndDutyCycle:   DefaultEndDutyCycle,
	}
}

func (s Settings) WithStartAngle(a float64) Settings {
	s.StartAngle = a
	return s
}

func (s Settings) WithEndAngle(a float64) Settings {
	s.EndAngle = a
	return s
}

func (s Settings) WithStartDutyCycle(dc float64) Settings {
	s.StartDutyCycle = dc
	return s
}

func (s Settings) WithEndDutyCycle(dc float64) Settings {
	s.EndDutyCycle = dc
	return s
}

func (s Settings) Validate() error {
	for _, v := range []float64{s.StartAngle, s.EndAngle, s.StartDutyCycle, s.EndDutyCycle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidArgument, "non-finite calibration value in %+v", s)
		}
	}
	if s.StartAngle == s.EndAngle {
		return errors.Wrapf(ErrInvalidArgument, "empty angle range %v..%v", s.StartAngle, s.EndAngle)
	}
	if s.StartDutyCycle == s.EndDutyCycle {
		return errors.Wrapf(ErrInvalidArgument, "empty duty cycle range %v..%v", s.StartDutyCycle, s.EndDutyCycle)
	}
	for _, dc := range []float64{s.StartDutyCycle, s.EndDutyCycle} {
		if dc < 0 || dc > 1 {
			return errors.Wrapf(ErrInvalidArgument, "duty cycle %v outside 0..1", dc)
		}
	}
	return nil
}

// DutyCycle maps an angle onto the calibrated duty cycle range. Angles
// outside the calibrated range extrapolate.
func (s Settings) DutyCycle(angle float64) float64 {
	return ComputeDutyCycle(s.StartDutyCycle, s.EndDutyCycle, s.StartAngle, s.EndAngle, angle)
}

// dutyCycleSlack absorbs rounding at the ends of the PWM range.
const dutyCycleSlack = 1e-9

// CheckAngle fails for angles whose duty cycle the PWM output cannot
// produce. Within that range a move is at most PWMMax steps.
func (s Settings) CheckAngle(angle float64) error {
	if !finite(angle) {
		return errors.Wrapf(ErrInvalidArgument, "angle %v", angle)
	}
	dc := s.DutyCycle(angle)
	if dc < -dutyCycleSlack || dc > 1+dutyCycleSlack {
		return errors.Wrapf(ErrInvalidArgument, "angle %v needs duty cycle %v, outside 0..1", angle, dc)
	}
	return nil
}

// StepSize is the angle covered by one count of the PWM counter, i.e. the
// finest movement the servo can be commanded to make. Always positive.
func (s Settings) StepSize() float64 {
	return math.Abs((s.EndAngle - s.StartAngle) / ((s.EndDutyCycle - s.StartDutyCycle) * pca9685.PWMMax))
}
