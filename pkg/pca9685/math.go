package pca9685

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrPrescaleOutOfBounds  = errors.New("prescale out of bounds of uint8")
	ErrDutyCycleOutOfBounds = errors.New("duty cycle out of bounds of 0.0 to 1.0")
	ErrOutOfRange           = errors.New("value out of range")
)

// ComputePrescale returns round(oscClock / (4096 * updateRate)) - 1.
func ComputePrescale(oscClock uint32, updateRate uint16) (uint8, error) {
	prescale := math.Round(float64(oscClock)/(PWMResolution*float64(updateRate))) - 1
	if math.IsNaN(prescale) || prescale < 0 || prescale > math.MaxUint8 {
		return 0, errors.Wrapf(ErrPrescaleOutOfBounds, "osc %d Hz at %d Hz gives %v",
			oscClock, updateRate, prescale)
	}
	return uint8(prescale), nil
}

// ComputeOnOff converts a duty cycle into on/off counter values. The pulse
// always starts at slot 0.
func ComputeOnOff(dutyCycle float64) (on, off uint16, err error) {
	if math.IsNaN(dutyCycle) || dutyCycle < 0 || dutyCycle > 1 {
		return 0, 0, errors.Wrapf(ErrDutyCycleOutOfBounds, "duty cycle %v", dutyCycle)
	}
	return 0, uint16(math.Round(dutyCycle * PWMMax)), nil
}

// ComputeOnOffClamped is ComputeOnOff with the duty cycle clamped into
// [0, 1] first. NaN counts as 0.
func ComputeOnOffClamped(dutyCycle float64) (on, off uint16) {
	on, off, _ = ComputeOnOff(ClampDutyCycle(dutyCycle))
	return
}

func ClampDutyCycle(dutyCycle float64) float64 {
	if math.IsNaN(dutyCycle) || dutyCycle < 0 {
		return 0
	} else if dutyCycle > 1 {
		return 1
	}
	return dutyCycle
}
