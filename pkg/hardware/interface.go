package hardware

import (
	"context"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servogroup"
)

// Interface is the brought-up arm.
type Interface interface {
	// Start runs the pose reader until ctx is done or the arm is shut down.
	Start(ctx context.Context) error

	Writer() *servogroup.Writer
	// Poses returns a new handle on the published pose stream.
	Poses() *servogroup.ReaderHandle
	ServoNames() []string

	// Servo and PWM give direct access to single outputs for bench work.
	Servo(n int) (*servo.Writer, error)
	PWM() *pca9685.Driver

	Shutdown() error
}
