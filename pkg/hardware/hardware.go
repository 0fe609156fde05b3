// Package hardware brings up the PCA9685 and the arm's servos from
// configuration.
package hardware

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servogroup"
)

type Hardware struct {
	pwm *pca9685.Driver
	oe  gpio.PinIO

	names  []string
	servos []*servo.Writer
	writer *servogroup.Writer
	poses  *servogroup.ReaderHandle
	task   *servogroup.ReaderTask

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ Interface = (*Hardware)(nil)

// Open opens the configured bus and brings up the arm on it.
func Open(cfg *config.Config) (*Hardware, error) {
	port, err := regbus.Open(cfg.Bus.Backend, cfg.Bus.Name, cfg.Bus.Address)
	if err != nil {
		return nil, err
	}
	if cfg.Bus.Backend == regbus.BackendDummy {
		port = NewDummy(port)
	}

	var oe gpio.PinIO
	if cfg.Bus.OutputEnablePin != "" {
		if oe, err = enableOutputs(cfg.Bus.OutputEnablePin); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	h, err := New(port, cfg)
	if err != nil {
		if oe != nil {
			_ = oe.Out(gpio.High)
		}
		return nil, err
	}
	h.oe = oe
	return h, nil
}

// New brings up the arm on an already open port. The port is closed if
// bring-up fails.
func New(port regbus.Port, cfg *config.Config) (h *Hardware, err error) {
	pwm := pca9685.New(port)
	defer func() {
		if err != nil {
			_ = pwm.Close()
		}
	}()

	log.Info("Initialising PCA9685", "addr", port.Addr(),
		"osc_clock", cfg.PWM.OscClock, "update_rate", cfg.PWM.UpdateRate)
	if err = pwm.SoftwareReset(); err != nil {
		return nil, errors.Wrap(err, "reset PCA9685")
	}
	if err = pwm.Sleep(); err != nil {
		return nil, errors.Wrap(err, "sleep PCA9685")
	}
	if err = pwm.Build(cfg.PWM.OscClock, cfg.PWM.UpdateRate); err != nil {
		return nil, errors.Wrap(err, "configure PCA9685")
	}
	if err = pwm.Wake(); err != nil {
		return nil, errors.Wrap(err, "wake PCA9685")
	}

	h = &Hardware{pwm: pwm}
	var members []servogroup.Servo
	for i, sc := range cfg.Servos {
		ch, err := pwm.Channel(sc.Channel)
		if err != nil {
			return nil, errors.Wrapf(err, "servo %d (%s)", i+1, sc.Name)
		}
		w, r, err := servo.New(ch, sc.Settings, sc.InitialAngle)
		if err != nil {
			return nil, errors.Wrapf(err, "servo %d (%s)", i+1, sc.Name)
		}
		log.Debug("Servo initialised", "servo", sc.Name, "channel", sc.Channel, "angle", sc.InitialAngle)
		h.names = append(h.names, sc.Name)
		h.servos = append(h.servos, w)
		members = append(members, servogroup.Servo{Writer: w, Reader: r})
	}

	h.writer, h.poses, h.task, err = servogroup.New(members, cfg.API.PoseBacklog)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func enableOutputs(pinName string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "init periph host")
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, errors.Errorf("no GPIO pin %q", pinName)
	}
	// OE is active low.
	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "drive %s low", pinName)
	}
	log.Info("PCA9685 outputs enabled", "pin", pinName)
	return pin, nil
}

func (h *Hardware) Start(ctx context.Context) error {
	log.Info("Pose reader started", "servos", len(h.servos))
	err := h.task.Run(ctx)
	log.Info("Pose reader stopped", "err", err)
	return err
}

func (h *Hardware) Writer() *servogroup.Writer {
	return h.writer
}

func (h *Hardware) Poses() *servogroup.ReaderHandle {
	return h.poses.Clone()
}

func (h *Hardware) ServoNames() []string {
	return append([]string(nil), h.names...)
}

func (h *Hardware) Servo(n int) (*servo.Writer, error) {
	if n < 0 || n >= len(h.servos) {
		return nil, errors.Wrapf(servo.ErrInvalidArgument, "no servo %d", n)
	}
	return h.servos[n], nil
}

func (h *Hardware) PWM() *pca9685.Driver {
	return h.pwm
}

// Shutdown ends the pose stream, puts the chip to sleep so the servos go
// limp, and releases the bus. Safe to call more than once.
func (h *Hardware) Shutdown() error {
	h.shutdownOnce.Do(func() {
		log.Info("Shutting down arm")
		h.poses.Close()
		h.writer.Close()
		err := h.pwm.Sleep()
		if err != nil {
			err = errors.Wrap(err, "sleep PCA9685")
		}
		if h.oe != nil {
			if oeErr := h.oe.Out(gpio.High); oeErr != nil && err == nil {
				err = errors.Wrap(oeErr, "disable outputs")
			}
		}
		if cErr := h.pwm.Close(); cErr != nil && err == nil {
			err = errors.Wrap(cErr, "close bus")
		}
		h.shutdownErr = err
	})
	return h.shutdownErr
}
