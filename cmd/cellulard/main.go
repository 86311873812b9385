// cellulard brings up one cellular modem and keeps it registered, dialing
// out over AT+CMUX/PPP per the lifecycle state machine in the cellular
// package, until signalled to shut down.
//
// This mirrors the teacher's cmd/modeminfo/cmd/sendsms style of a small,
// flag-driven front end over the library, generalized to a long-lived
// daemon with a YAML config file for the parts (device path, APN, GPIO
// offsets) that don't fit on a command line comfortably.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/go-modem/cellular/cellular"
	"github.com/go-modem/cellular/gpioline"
	"github.com/go-modem/cellular/serial"
	"github.com/go-modem/cellular/trace"
)

var version = "undefined"

func main() {
	configFile := pflag.StringP("config", "c", "/etc/cellulard/cellulard.yaml", "path to configuration file")
	dev := pflag.StringP("device", "d", "", "override the configured modem device path")
	verbose := pflag.BoolP("verbose", "v", false, "trace raw bytes on the wire")
	vsn := pflag.BoolP("version", "V", false, "report version and exit")
	pflag.Parse()

	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}

	logger := log.Default()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Fatal("load config", "file", *configFile, "err", err)
	}
	if *dev != "" {
		cfg.Device.Port = *dev
	}

	port, err := serial.New(cfg.Device.Port, cfg.Device.Baud, serial.WithReadTimeout(time.Second))
	if err != nil {
		logger.Fatal("open device", "device", cfg.Device.Port, "err", err)
	}

	var uart io.ReadWriteCloser = port
	if *verbose {
		// trace logs at debug level, which the default logger hides.
		logger.SetLevel(log.DebugLevel)
		uart = trace.New(port, logger, trace.ReadKey("rx"), trace.WriteKey("tx"))
	}

	devCfg := cellular.DeviceConfig{
		UART:     uart,
		APN:      cfg.APN.Name,
		Username: cfg.APN.Username,
		Password: cfg.APN.Password,
		Logger:   logger,
	}

	if cfg.GPIO.HasPower {
		line, err := gpioline.Open(cfg.GPIO.Chip, cfg.GPIO.PowerLine, true)
		if err != nil {
			logger.Fatal("open power gpio", "err", err)
		}
		devCfg.PowerGPIO = line
	}
	if cfg.GPIO.HasReset {
		line, err := gpioline.Open(cfg.GPIO.Chip, cfg.GPIO.ResetLine, false)
		if err != nil {
			logger.Fatal("open reset gpio", "err", err)
		}
		devCfg.ResetGPIO = line
	}

	m := cellular.New(devCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	m.Resume()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := m.Suspend(sctx); err != nil {
		logger.Error("suspend did not complete cleanly", "err", err)
	}
	scancel()

	cancel()
	<-done
}
