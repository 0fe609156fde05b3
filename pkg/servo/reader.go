package servo

import (
	"context"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/watch"
)

// Reader observes the angle published by a Writer. It never moves the
// servo.
type Reader struct {
	rx *watch.Receiver[float64]
}

// Changed is closed once there is an angle this reader has not seen, or
// the writer is closed.
func (r *Reader) Changed() <-chan struct{} {
	return r.rx.Changed()
}

// WaitForAngleToChange blocks until the angle changes or ctx is done.
func (r *Reader) WaitForAngleToChange(ctx context.Context) error {
	return r.rx.Wait(ctx)
}

// Angle reads the current angle without consuming the change notification.
func (r *Reader) Angle() float64 {
	return r.rx.Peek()
}

// Latest reads the current angle and marks it seen.
func (r *Reader) Latest() float64 {
	return r.rx.Latest()
}

func (r *Reader) Closed() bool {
	return r.rx.Closed()
}
