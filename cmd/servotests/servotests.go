package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servogroup"
)

var Flags struct {
	Config string `help:"Path to the arm configuration." default:"/cfg/arm.yaml" type:"path"`
	DryRun bool   `help:"Use an in-memory PCA9685 instead of the I2C bus."`
}

var CLI struct {
	Quit    QuitCmd    `cmd:"" help:"Quit"`
	S       ServoCmd   `cmd:"" help:"Move servo n straight to an angle."`
	P       PWMCmd     `cmd:"" help:"Write a raw duty cycle (0.0-1.0) to PCA9685 port n."`
	Move    MoveCmd    `cmd:"" help:"Move every servo to a pose over a duration."`
	Pose    PoseCmd    `cmd:"" help:"Print the current pose."`
	Sleep   SleepCmd   `cmd:"" help:"Put the PCA9685 to sleep."`
	Wake    WakeCmd    `cmd:"" help:"Wake the PCA9685."`
	Restart RestartCmd `cmd:"" help:"Restart PWM outputs after a sleep."`
}

type Context struct {
	arm hardware.Interface
}

type ServoCmd struct {
	N     int     `arg:"" help:"Servo index, in configuration order."`
	Angle float64 `arg:"" help:"Angle in degrees."`
}

func (c *ServoCmd) Run(ctx *Context) error {
	s, err := ctx.arm.Servo(c.N)
	if err != nil {
		return err
	}
	fmt.Printf("Setting servo %d to %f\n", c.N, c.Angle)
	return s.Write(c.Angle)
}

type PWMCmd struct {
	N         uint8   `arg:"" help:"Port number 0-15."`
	DutyCycle float64 `arg:"" help:"0=fully off, 1.0=fully on."`
}

func (c *PWMCmd) Run(ctx *Context) error {
	if c.DutyCycle < 0 || c.DutyCycle > 1 {
		return errors.Wrapf(pca9685.ErrDutyCycleOutOfBounds, "%f", c.DutyCycle)
	}
	fmt.Printf("Setting PWM %d to %f\n", c.N, c.DutyCycle)
	return ctx.arm.PWM().WriteChannelDutyCycle(c.N, c.DutyCycle)
}

type MoveCmd struct {
	Duration time.Duration `help:"Time the move should take." default:"1s"`
	Angles   []float64     `arg:"" help:"One angle per servo."`
}

func (c *MoveCmd) Run(ctx *Context) error {
	pc := servogroup.PoseChange{Pose: servogroup.NewPose(c.Angles...), Duration: c.Duration}
	start := time.Now()
	if err := ctx.arm.Writer().WritePoseChange(context.Background(), pc); err != nil {
		return err
	}
	fmt.Printf("Moved to %v in %v\n", c.Angles, time.Since(start))
	return nil
}

type PoseCmd struct{}

func (c *PoseCmd) Run(ctx *Context) error {
	names := ctx.arm.ServoNames()
	for i, a := range ctx.arm.Writer().CurrentPose().Angles() {
		fmt.Printf("%2d %-12s %8.3f\n", i, names[i], a)
	}
	return nil
}

type SleepCmd struct{}

func (c *SleepCmd) Run(ctx *Context) error {
	return ctx.arm.PWM().Sleep()
}

type WakeCmd struct{}

func (c *WakeCmd) Run(ctx *Context) error {
	return ctx.arm.PWM().Wake()
}

type RestartCmd struct{}

func (c *RestartCmd) Run(ctx *Context) error {
	return ctx.arm.PWM().Restart()
}

type QuitCmd struct{}

func (q *QuitCmd) Run(ctx *Context) error {
	return Quit
}

var Quit = errors.New("Quit")

func main() {
	fmt.Println("---- servotests ----")
	kong.Parse(&Flags)
	fmt.Println("Type --help for commands; put -- before negative angles, e.g. s -- 0 -45")

	cfg, err := config.Load(Flags.Config)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}
	if Flags.DryRun {
		cfg.Bus.Backend = regbus.BackendDummy
		cfg.Bus.OutputEnablePin = ""
	}
	log.Init(cfg.Log.Level)

	arm, err := hardware.Open(cfg)
	if err != nil {
		fmt.Println("Failed to open PCA9685", err)
		return
	}
	defer arm.Shutdown()

	k, err := kong.New(&CLI, kong.Exit(func(int) {}))
	if err != nil {
		panic(err)
	}
	ctx := &Context{arm: arm}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		parsed, err := k.Parse(strings.Fields(command))
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		err = parsed.Run(ctx)
		if err == Quit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
			continue
		}
	}
}
