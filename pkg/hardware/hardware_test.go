package hardware

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servo"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servogroup"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Bus.Backend = regbus.BackendDummy
	cfg.Servos = []config.Servo{
		{Name: "base", Channel: 0, InitialAngle: -90, Settings: servo.DefaultSettings()},
		{Name: "elbow", Channel: 5, InitialAngle: 90, Settings: servo.DefaultSettings()},
	}
	return cfg
}

func channelOff(t *testing.T, mem *regbus.Memory, channel uint8) uint16 {
	t.Helper()
	reg := pca9685.LEDAddr(channel)
	return uint16(mem.Peek(reg+2)) | uint16(mem.Peek(reg+3))<<8
}

// withinStep reports whether every angle of got is within one PWM count of
// want, the resolution stepped motion guarantees.
func withinStep(got, want servogroup.Pose) bool {
	step := servo.DefaultSettings().StepSize()
	for i := 0; i < want.Len(); i++ {
		if math.Abs(got.Angle(i)-want.Angle(i)) >= step {
			return false
		}
	}
	return true
}

func TestNewBringsUpChip(t *testing.T) {
	mem := regbus.NewMemory(pca9685.DefaultAddr)
	mem.Poke(pca9685.RegMode1, pca9685.Mode1AllCall)

	h, err := New(mem, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()

	if prescale := mem.Peek(pca9685.RegPreScale); prescale != 121 {
		t.Fatalf("prescale %d, expected 121", prescale)
	}
	if mode1 := mem.Peek(pca9685.RegMode1); mode1&(pca9685.Mode1Sleep|pca9685.Mode1AllCall) != 0 {
		t.Fatalf("MODE1 0x%02x: chip asleep or ALL-CALL still enabled", mode1)
	}

	var reset bool
	for _, tx := range mem.Transactions() {
		if tx.Write && tx.Addr == pca9685.GeneralCallAddr && tx.Reg == pca9685.SoftwareResetByte {
			reset = true
		}
	}
	if !reset {
		t.Fatal("no software reset issued")
	}

	// Initial angles: -90 is the start of the default range and 90 the end.
	if off := channelOff(t, mem, 0); off != 102 {
		t.Errorf("base off count %d, expected 102", off)
	}
	if off := channelOff(t, mem, 5); off != 512 {
		t.Errorf("elbow off count %d, expected 512", off)
	}

	if !h.Writer().CurrentPose().Equal(servogroup.NewPose(-90, 90)) {
		t.Fatalf("initial pose %v", h.Writer().CurrentPose().Angles())
	}
	if names := h.ServoNames(); len(names) != 2 || names[1] != "elbow" {
		t.Fatalf("servo names %v", names)
	}
}

func TestNewClosesPortOnFailure(t *testing.T) {
	mem := regbus.NewMemory(pca9685.DefaultAddr)
	boom := errors.New("nak")
	mem.FailWith(func(tx regbus.Tx) error {
		if tx.Reg == pca9685.RegPreScale {
			return boom
		}
		return nil
	})

	if _, err := New(mem, testConfig()); !errors.Is(err, boom) {
		t.Fatalf("expected prescale failure, got %v", err)
	}
	if err := mem.WriteReg(pca9685.RegMode1, []byte{0}); err != regbus.ErrPortClosed {
		t.Fatalf("port left open after failed bring-up: %v", err)
	}
}

func TestOpenDummyAndMove(t *testing.T) {
	opened, err := Open(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	var h Interface = opened

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- h.Start(ctx)
	}()

	poses := h.Poses()
	pc := servogroup.PoseChange{Pose: servogroup.NewPose(-88, 88), Duration: 20 * time.Millisecond}
	if err := h.Writer().WritePoseChange(ctx, pc); err != nil {
		t.Fatal(err)
	}
	for {
		rctx, rcancel := context.WithTimeout(ctx, time.Second)
		p, err := poses.RecvPose(rctx)
		rcancel()
		if err != nil {
			t.Fatalf("no pose published: %v", err)
		}
		if withinStep(p, pc.Pose) {
			break
		}
	}

	if err := h.Shutdown(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pose reader still running after shutdown")
	}
	if err := h.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestServoLookup(t *testing.T) {
	h, err := New(regbus.NewMemory(pca9685.DefaultAddr), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown()

	if _, err := h.Servo(1); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Servo(2); !errors.Is(err, servo.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
