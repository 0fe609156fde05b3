// Package servo drives a single hobby servo on one PWM channel: it maps
// angles to duty cycles and moves the servo at a bounded angular speed.
package servo

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/watch"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClosed          = watch.ErrClosed
)

// DutyCycleWriter is the PWM output a servo is attached to.
type DutyCycleWriter interface {
	WriteDutyCycle(dutyCycle float64) error
}

// New writes initialAngle to the servo and returns its writer and a reader
// observing the writer's angle.
func New(channel DutyCycleWriter, settings Settings, initialAngle float64) (*Writer, *Reader, error) {
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}
	if err := settings.CheckAngle(initialAngle); err != nil {
		return nil, nil, errors.Wrap(err, "initial angle")
	}
	w := &Writer{
		channel:  channel,
		settings: settings,
		angle:    watch.New(initialAngle),
		sleep:    sleepContext,
	}
	if err := w.Write(initialAngle); err != nil {
		return nil, nil, err
	}
	return w, w.Subscribe(), nil
}

// Writer moves one servo. It is the only writer of its angle; it is not
// safe for concurrent use.
type Writer struct {
	channel  DutyCycleWriter
	settings Settings
	angle    *watch.Value[float64]

	sleep func(context.Context, time.Duration) error
}

func (w *Writer) Settings() Settings {
	return w.settings
}

// Angle returns the last angle successfully written.
func (w *Writer) Angle() float64 {
	return w.angle.Get()
}

// Subscribe returns a new Reader of this servo's angle.
func (w *Writer) Subscribe() *Reader {
	return &Reader{rx: w.angle.Subscribe()}
}

// Close ends the angle stream; readers get ErrClosed.
func (w *Writer) Close() {
	w.angle.Close()
}

// Write moves the servo straight to angle. The published angle only
// changes if the write succeeds.
func (w *Writer) Write(angle float64) error {
	if err := w.settings.CheckAngle(angle); err != nil {
		return err
	}
	dutyCycle := w.settings.DutyCycle(angle)
	if err := w.channel.WriteDutyCycle(dutyCycle); err != nil {
		return errors.Wrapf(err, "write angle %.3f", angle)
	}
	w.angle.Set(angle)
	return nil
}

// WriteWithSpeed moves towards target one PWM count at a time, pacing the
// steps so the servo travels at speed degrees per second. The last angle
// written is within half a step of target; there is no corrective write.
// Cancelling ctx stops the motion between steps.
func (w *Writer) WriteWithSpeed(ctx context.Context, target, speed float64) error {
	if err := w.settings.CheckAngle(target); err != nil {
		return errors.Wrap(err, "target")
	}
	current := w.angle.Get()
	step := w.settings.StepSize()
	iterations := w.steps(target)
	if iterations == 0 {
		return nil
	}
	if !(speed > 0) {
		return errors.Wrapf(ErrInvalidArgument, "speed %v", speed)
	}

	interval := time.Duration(step / speed * float64(time.Second))
	direction := 1.0
	if target < current {
		direction = -1
	}

	for i := 1; i <= iterations; i++ {
		if err := w.Write(current + direction*float64(i)*step); err != nil {
			return err
		}
		if err := w.sleep(ctx, interval); err != nil {
			return err
		}
	}
	return nil
}

// WriteWithDuration moves to target at the constant speed that makes the
// motion take duration.
func (w *Writer) WriteWithDuration(ctx context.Context, target float64, duration time.Duration) error {
	if duration <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "duration %v", duration)
	}
	speed := math.Abs(target-w.angle.Get()) / duration.Seconds()
	return w.WriteWithSpeed(ctx, target, speed)
}

// steps is the number of single-count moves from the current angle to a
// target that has passed CheckAngle.
func (w *Writer) steps(target float64) int {
	return int(math.Round(math.Abs(target-w.angle.Get()) / w.settings.StepSize()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
