package servogroup

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

// Writer moves every servo of the group together. Pose changes are applied
// one at a time.
type Writer struct {
	lock   sync.Mutex
	servos []*servo.Writer
}

func NewWriter(servos []*servo.Writer) *Writer {
	return &Writer{servos: append([]*servo.Writer(nil), servos...)}
}

func (w *Writer) NumServos() int {
	return len(w.servos)
}

// CurrentPose returns the angles last written to each servo.
func (w *Writer) CurrentPose() Pose {
	angles := make([]float64, len(w.servos))
	for i, s := range w.servos {
		angles[i] = s.Angle()
	}
	return Pose{angles: angles}
}

// WritePoseChange starts all servo motions at once and waits for every one
// of them. If any servo fails the first failure is returned, but the other
// motions still run to completion; motion already made is not undone.
func (w *Writer) WritePoseChange(ctx context.Context, pc PoseChange) error {
	if err := w.validate(pc); err != nil {
		return err
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.writeLocked(ctx, pc)
}

// WritePoseChanges applies a batch in order, each change completing before
// the next starts. It stops at the first failing change. The whole batch is
// validated before anything moves.
func (w *Writer) WritePoseChanges(ctx context.Context, pcs []PoseChange) error {
	for i, pc := range pcs {
		if err := w.validate(pc); err != nil {
			return errors.Wrapf(err, "pose change %d", i+1)
		}
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	for i, pc := range pcs {
		if err := w.writeLocked(ctx, pc); err != nil {
			return errors.Wrapf(err, "pose change %d of %d", i+1, len(pcs))
		}
	}
	return nil
}

// validate checks pc against this group, including that every target is
// reachable by its servo.
func (w *Writer) validate(pc PoseChange) error {
	if err := pc.Validate(len(w.servos)); err != nil {
		return err
	}
	for i, s := range w.servos {
		if err := s.Settings().CheckAngle(pc.Pose.Angle(i)); err != nil {
			return errors.Wrapf(err, "servo %d", i+1)
		}
	}
	return nil
}

func (w *Writer) writeLocked(ctx context.Context, pc PoseChange) error {
	// A failing servo must not cancel the others.
	var g errgroup.Group
	for i, s := range w.servos {
		target := pc.Pose.Angle(i)
		g.Go(func() error {
			if err := s.WriteWithDuration(ctx, target, pc.Duration); err != nil {
				return errors.Wrapf(err, "servo %d", i+1)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close ends every servo's angle stream, which stops the group's reader
// task.
func (w *Writer) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()
	for _, s := range w.servos {
		s.Close()
	}
}
