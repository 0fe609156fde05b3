package servogroup

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

// ErrInvalidArgument is shared with package servo so either layer's
// rejections match one sentinel.
var ErrInvalidArgument = servo.ErrInvalidArgument

// Pose is a snapshot of every servo angle, in servo order. The zero Pose
// has no angles.
type Pose struct {
	angles []float64
}

func NewPose(angles ...float64) Pose {
	return Pose{angles: append([]float64(nil), angles...)}
}

func (p Pose) Len() int {
	return len(p.angles)
}

func (p Pose) Angle(i int) float64 {
	return p.angles[i]
}

// Angles returns a copy of the angles.
func (p Pose) Angles() []float64 {
	return append([]float64(nil), p.angles...)
}

func (p Pose) Equal(o Pose) bool {
	if len(p.angles) != len(o.angles) {
		return false
	}
	for i := range p.angles {
		if p.angles[i] != o.angles[i] {
			return false
		}
	}
	return true
}

// PoseChange asks every servo to reach its angle in Pose over Duration.
type PoseChange struct {
	Pose     Pose
	Duration time.Duration
}

// Validate checks the change against a group of numServos servos.
func (pc PoseChange) Validate(numServos int) error {
	if pc.Pose.Len() != numServos {
		return errors.Wrapf(ErrInvalidArgument, "pose has %d angles, expected %d", pc.Pose.Len(), numServos)
	}
	for i, a := range pc.Pose.angles {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return errors.Wrapf(ErrInvalidArgument, "angle %d is %v", i+1, a)
		}
	}
	if pc.Duration <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "duration %v must be positive", pc.Duration)
	}
	return nil
}
