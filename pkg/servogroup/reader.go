package servogroup

import (
	"context"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/broadcast"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

const (
	// SettleDelay lets the per-servo updates of one pose change land before
	// the group is snapshotted, so they go out as a single Pose.
	SettleDelay = 20 * time.Millisecond

	DefaultBacklog = 64
)

var ErrClosed = errors.New("pose stream closed")

// ReaderTask merges the angle streams of all servos into one Pose stream.
// Run it in its own goroutine.
type ReaderTask struct {
	servos []*servo.Reader
	poses  *broadcast.Sender[Pose]
	settle time.Duration
}

// ReaderHandle receives the Poses published by a ReaderTask. Clone it for
// each independent consumer; a handle is not safe for concurrent use.
type ReaderHandle struct {
	rx *broadcast.Receiver[Pose]
}

func NewReader(servos []*servo.Reader, backlog int) (*ReaderTask, *ReaderHandle) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	tx, rx := broadcast.New[Pose](backlog)
	task := &ReaderTask{
		servos: append([]*servo.Reader(nil), servos...),
		poses:  tx,
		settle: SettleDelay,
	}
	return task, &ReaderHandle{rx: rx}
}

// Run publishes a Pose after every burst of angle changes. It returns nil
// once no handle is left to receive, ErrClosed if a servo's angle stream
// ends, or the context's error. Handles see ErrClosed after Run returns.
func (t *ReaderTask) Run(ctx context.Context) error {
	defer t.poses.Close()
	for {
		if err := t.waitForAnyChange(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(t.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		pose := t.snapshot()
		if err := t.poses.Send(pose); err != nil {
			if err == broadcast.ErrNoReceivers {
				log.Debug("No pose subscribers left, stopping pose reader")
				return nil
			}
			return err
		}
	}
}

func (t *ReaderTask) waitForAnyChange(ctx context.Context) error {
	cases := make([]reflect.SelectCase, 0, len(t.servos)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, s := range t.servos {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Changed())})
	}
	chosen, _, _ := reflect.Select(cases)
	if chosen == 0 {
		return ctx.Err()
	}
	if s := t.servos[chosen-1]; s.Closed() {
		return errors.Wrapf(ErrClosed, "servo %d", chosen)
	}
	return nil
}

// snapshot reads every angle, marking each seen so changes that landed
// during the settle delay don't trigger another Pose.
func (t *ReaderTask) snapshot() Pose {
	angles := make([]float64, len(t.servos))
	for i, s := range t.servos {
		angles[i] = s.Latest()
	}
	return Pose{angles: angles}
}

// RecvPose waits for the next Pose. A handle that fell behind the backlog
// skips the Poses it missed rather than failing. Returns ErrClosed once the
// task has stopped and everything published has been received.
func (h *ReaderHandle) RecvPose(ctx context.Context) (Pose, error) {
	for {
		pose, err := h.rx.Recv(ctx)
		if err == nil {
			return pose, nil
		}
		var lagged *broadcast.LaggedError
		if errors.As(err, &lagged) {
			log.Debug("Pose subscriber lagged", "missed", lagged.Missed)
			continue
		}
		if err == broadcast.ErrClosed {
			return Pose{}, ErrClosed
		}
		return Pose{}, err
	}
}

// Clone returns an independent handle that receives every Pose from the
// point this one has reached.
func (h *ReaderHandle) Clone() *ReaderHandle {
	return &ReaderHandle{rx: h.rx.Clone()}
}

// Close unsubscribes the handle. The task stops after its next Pose once
// every handle is closed.
func (h *ReaderHandle) Close() {
	h.rx.Close()
}
