package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/armapi"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/regbus"
)

var CLI struct {
	Config   string `help:"Path to the arm configuration." default:"/cfg/arm.yaml" type:"path"`
	LogLevel string `help:"Override the configured log level."`
	Listen   string `help:"Override the configured API listen address."`
	DryRun   bool   `help:"Use an in-memory PCA9685 instead of the I2C bus."`
}

func main() {
	fmt.Print("---- Arm controller ----\n\n")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	kong.Parse(&CLI, kong.Description("Serves a PCA9685-driven servo arm over HTTP."))

	if err := run(); err != nil {
		log.Error("Arm controller failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.Listen != "" {
		cfg.API.Listen = CLI.Listen
	}
	if CLI.DryRun {
		cfg.Bus.Backend = regbus.BackendDummy
		cfg.Bus.OutputEnablePin = ""
	}
	log.Init(cfg.Log.Level)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case s := <-signals:
			log.Info("Signal", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	arm, err := hardware.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := arm.Shutdown(); err != nil {
			log.Warn("Arm shutdown failed", "err", err)
		}
	}()

	return serve(ctx, arm, cfg.API.Listen)
}

// serve runs the pose reader and the API until ctx is done or either fails.
func serve(ctx context.Context, arm hardware.Interface, listen string) error {
	server := armapi.NewServer(arm.Writer(), arm)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return arm.Start(ctx)
	})
	g.Go(func() error {
		return server.Listen(listen)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Context done, shutting down")
		return server.Shutdown(2 * time.Second)
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
