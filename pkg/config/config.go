// Package config loads the arm controller's YAML configuration.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

const DefaultPath = "/cfg/arm.yaml"

type Config struct {
	Bus    Bus     `yaml:"bus"`
	PWM    PWM     `yaml:"pwm"`
	Servos []Servo `yaml:"servos"`
	API    API     `yaml:"api"`
	Log    Log     `yaml:"log"`
}

type Bus struct {
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`
	// OutputEnablePin is the GPIO wired to the chip's active-low OE input.
	// Empty if OE is tied low in hardware.
	OutputEnablePin string `yaml:"output_enable_pin"`
}

type PWM struct {
	OscClock   uint32 `yaml:"osc_clock"`
	UpdateRate uint16 `yaml:"update_rate"`
}

// Servo is one joint of the arm, in the order poses list them.
type Servo struct {
	Name         string  `yaml:"name"`
	Channel      uint8   `yaml:"channel"`
	InitialAngle float64 `yaml:"initial_angle"`

	servo.Settings `yaml:",inline"`
}

// UnmarshalYAML fills in the default calibration for any field the entry
// leaves out.
func (s *Servo) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Servo
	p := plain{Settings: servo.DefaultSettings()}
	if err := unmarshal(&p); err != nil {
		return err
	}
	*s = Servo(p)
	return nil
}

type API struct {
	Listen      string `yaml:"listen"`
	PoseBacklog int    `yaml:"pose_backlog"`
}

type Log struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Bus: Bus{
			Backend: regbus.BackendPeriph,
			Name:    "/dev/i2c-1",
			Address: pca9685.DefaultAddr,
		},
		PWM: PWM{
			OscClock:   pca9685.DefaultOscClock,
			UpdateRate: pca9685.DefaultUpdateRate,
		},
		API: API{
			Listen:      ":50051",
			PoseBacklog: 64,
		},
		Log: Log{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Bus.Backend {
	case regbus.BackendPeriph, regbus.BackendDevfs, regbus.BackendDummy:
	default:
		return errors.Errorf("unknown bus backend %q", c.Bus.Backend)
	}
	if c.Bus.Address > 0x7f {
		return errors.Errorf("bus address 0x%x is not a 7-bit address", c.Bus.Address)
	}
	if _, err := pca9685.ComputePrescale(c.PWM.OscClock, c.PWM.UpdateRate); err != nil {
		return errors.Wrapf(err, "pwm osc_clock=%d update_rate=%d", c.PWM.OscClock, c.PWM.UpdateRate)
	}
	if len(c.Servos) == 0 {
		return errors.New("no servos configured")
	}
	seen := map[uint8]string{}
	for i, s := range c.Servos {
		name := s.Name
		if name == "" {
			name = fmt.Sprint(i + 1)
		}
		if s.Channel >= pca9685.NumChannels {
			return errors.Errorf("servo %s: channel %d out of range", name, s.Channel)
		}
		if other, ok := seen[s.Channel]; ok {
			return errors.Errorf("servo %s: channel %d already used by servo %s", name, s.Channel, other)
		}
		seen[s.Channel] = name
		if err := s.Settings.Validate(); err != nil {
			return errors.Wrapf(err, "servo %s", name)
		}
		if err := s.Settings.CheckAngle(s.InitialAngle); err != nil {
			return errors.Wrapf(err, "servo %s: initial angle", name)
		}
	}
	return nil
}
