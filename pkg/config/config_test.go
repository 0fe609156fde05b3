package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
)

const armYAML = `
bus:
  backend: dummy
  address: 0x41
servos:
  - name: base
    channel: 0
  - name: shoulder
    channel: 3
    initial_angle: 45
    start_angle: 0
    end_angle: 180
  - name: gripper
    channel: 15
    start_duty_cycle: 0.05
    end_duty_cycle: 0.1
api:
  listen: "127.0.0.1:8080"
`

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(armYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bus.Backend != regbus.BackendDummy || cfg.Bus.Address != 0x41 {
		t.Fatalf("bad bus config %+v", cfg.Bus)
	}
	if cfg.Bus.Name != "/dev/i2c-1" {
		t.Fatalf("bus name default not applied: %q", cfg.Bus.Name)
	}
	if cfg.PWM.OscClock != 25000000 || cfg.PWM.UpdateRate != 50 {
		t.Fatalf("pwm defaults not applied: %+v", cfg.PWM)
	}
	if cfg.API.Listen != "127.0.0.1:8080" || cfg.API.PoseBacklog != 64 {
		t.Fatalf("bad api config %+v", cfg.API)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level default not applied: %q", cfg.Log.Level)
	}
	if len(cfg.Servos) != 3 {
		t.Fatalf("expected 3 servos, got %d", len(cfg.Servos))
	}

	if cfg.Servos[0].Settings != servo.DefaultSettings() {
		t.Errorf("base: expected default calibration, got %+v", cfg.Servos[0].Settings)
	}
	shoulder := cfg.Servos[1]
	expected := servo.DefaultSettings().WithStartAngle(0).WithEndAngle(180)
	if shoulder.Settings != expected || shoulder.InitialAngle != 45 || shoulder.Channel != 3 {
		t.Errorf("shoulder: got %+v", shoulder)
	}
	gripper := cfg.Servos[2]
	expected = servo.DefaultSettings().WithStartDutyCycle(0.05).WithEndDutyCycle(0.1)
	if gripper.Settings != expected {
		t.Errorf("gripper: got %+v", gripper.Settings)
	}
}

func TestParseRejectsBadConfig(t *testing.T) {
	for _, tc := range []struct {
		name, yaml, expected string
	}{
		{"no servos", "bus: {backend: dummy}", "no servos"},
		{"backend", "bus: {backend: spi}\nservos: [{channel: 0}]", "unknown bus backend"},
		{"address", "bus: {address: 0x80}\nservos: [{channel: 0}]", "7-bit"},
		{"channel range", "servos: [{channel: 16}]", "out of range"},
		{"duplicate channel", "servos: [{name: a, channel: 2}, {name: b, channel: 2}]", "already used by servo a"},
		{"empty range", "servos: [{channel: 0, start_angle: 10, end_angle: 10}]", "empty angle range"},
		{"duty range", "servos: [{channel: 0, end_duty_cycle: 1.5}]", "outside 0..1"},
		{"prescale", "pwm: {update_rate: 10}\nservos: [{channel: 0}]", "prescale"},
		{"unreachable initial angle", "servos: [{name: wrist, channel: 0, initial_angle: 1.0e+30}]", "wrist: initial angle"},
		{"unknown key", "servos: [{channel: 0, speed: 3}]", "speed"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.expected) {
				t.Fatalf("error %q does not mention %q", err, tc.expected)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "armcfg")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "arm.yaml")
	if err := ioutil.WriteFile(path, []byte(armYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Servos) != 3 {
		t.Fatalf("expected 3 servos, got %d", len(cfg.Servos))
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
