// Package servogroup drives the servos of the arm as one unit: pose changes
// fan out to every servo at once, and per-servo angle updates are merged
// back into a single stream of Poses.
package servogroup

import (
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

// Servo is the writer and reader halves of one servo, as returned by
// servo.New.
type Servo struct {
	Writer *servo.Writer
	Reader *servo.Reader
}

// New builds the group from already initialized servos, in servo order. The
// caller runs the ReaderTask in its own goroutine and keeps the Writer and
// ReaderHandle for serving requests.
func New(servos []Servo, backlog int) (*Writer, *ReaderHandle, *ReaderTask, error) {
	if len(servos) == 0 {
		return nil, nil, nil, errors.Wrap(ErrInvalidArgument, "servo group needs at least one servo")
	}
	writers := make([]*servo.Writer, len(servos))
	readers := make([]*servo.Reader, len(servos))
	for i, s := range servos {
		if s.Writer == nil || s.Reader == nil {
			return nil, nil, nil, errors.Wrapf(ErrInvalidArgument, "servo %d is incomplete", i+1)
		}
		writers[i] = s.Writer
		readers[i] = s.Reader
	}
	task, handle := NewReader(readers, backlog)
	return NewWriter(writers), handle, task, nil
}
