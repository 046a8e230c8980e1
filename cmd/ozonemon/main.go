// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ozonemon shows the ozone concentration on an SSD1306 OLED and signals once
// the target exposure has been held long enough.
//
// With the sim sensor source no hardware is touched: the display is emulated
// and the sensor codes come from the configuration. Use -console to see the
// screen.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/GermanBionicSystems/ozonemon/config"
	"github.com/GermanBionicSystems/ozonemon/monitor"
	"github.com/GermanBionicSystems/ozonemon/oledterm"
	"github.com/GermanBionicSystems/ozonemon/snapshot"
	"github.com/GermanBionicSystems/ozonemon/ssd1306"
	"github.com/GermanBionicSystems/ozonemon/ssd1306/ssd1306test"
	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func mainImpl() error {
	var (
		configFlag   = flag.String("config", "ozonemon.yaml", "Configuration file path")
		portFlag     = flag.String("p", "", "Serial port override (e.g., /dev/ttyACM0)")
		simFlag      = flag.Bool("sim", false, "Use the simulated sensor and display")
		consoleFlag  = flag.Bool("console", false, "Mirror the OLED on the terminal")
		snapshotFlag = flag.String("snapshot", "", "Write the OLED to this PNG after every tick")
		writeFlag    = flag.Bool("write-config", false, "Write the effective configuration and exit")
		verbose      = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(colorable.NewColorableStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *portFlag != "" {
		cfg.Sensor.Port = *portFlag
	}
	if *simFlag {
		cfg.Sensor.Source = config.SourceSim
	}
	if *consoleFlag {
		cfg.Preview.Console = true
	}
	if *snapshotFlag != "" {
		cfg.Preview.Snapshot = *snapshotFlag
	}
	if *writeFlag {
		return cfg.Save(*configFlag)
	}

	targets, err := monitor.NewTargets(cfg.Monitor.TargetConcentration, cfg.Monitor.TargetTicks)
	if err != nil {
		return err
	}
	cal, err := ulpsm.NewCalibration(cfg.Calibration.SensitivityCode, cfg.Calibration.TIAGain, cfg.Calibration.VoltageOffset)
	if err != nil {
		return err
	}

	sim := cfg.Sensor.Source == config.SourceSim
	var bus i2c.Bus
	if sim {
		bus = ssd1306test.NewBus()
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		b, err := i2creg.Open(cfg.Bus)
		if err != nil {
			return err
		}
		defer b.Close()
		bus = b
	}

	oled, err := ssd1306.NewI2C(bus, &ssd1306.Opts{Addr: cfg.Display.Address, RepairPasses: cfg.Display.RepairPasses, Logger: logger})
	if err != nil {
		return err
	}
	if cfg.Display.Contrast != 0 {
		if err := oled.SetContrast(byte(cfg.Display.Contrast)); err != nil {
			return err
		}
	}

	gas, ref, closer, err := openSensor(cfg, bus, logger)
	if err != nil {
		return err
	}
	defer closer()
	sensor, err := ulpsm.New(gas, ref, cal, &ulpsm.Opts{
		InitAttenuation:   ulpsm.DefaultOpts.InitAttenuation,
		ReadAttenuation:   ulpsm.DefaultOpts.ReadAttenuation,
		KeepVoltageOffset: cfg.Calibration.KeepVoltageOffset,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer sensor.Halt()

	cutoff, err := openCutoff(cfg, sim)
	if err != nil {
		return err
	}

	var term *oledterm.Dev
	if cfg.Preview.Console {
		term = oledterm.New(nil)
		defer term.Halt()
	}
	opts := monitor.Opts{
		Tick:   cfg.Monitor.Tick,
		Settle: cfg.Monitor.Settle,
		Logger: logger,
		OnTick: func(r monitor.Reading) {
			if term != nil {
				if err := term.Mirror(oled.Frame()); err != nil {
					logger.Warn("console mirror failed", "err", err)
				}
			}
			if p := cfg.Preview.Snapshot; p != "" {
				o := snapshot.DefaultOpts
				o.Caption = fmt.Sprintf("%s  elapsed %d/%d", r.Concentration, r.Elapsed, targets.Ticks)
				if err := snapshot.Save(p, oled.Frame(), &o); err != nil {
					logger.Warn("snapshot failed", "err", err)
				}
			}
		},
	}
	if cutoff != nil {
		opts.Cutoff = cutoff
	}
	m, err := monitor.New(sensor, oled, targets, &opts)
	if err != nil {
		return err
	}
	if err := m.Run(); err != nil {
		if err2 := oled.Halt(); err2 != nil {
			logger.Warn("display halt failed", "err", err2)
		}
		return err
	}
	logger.Info("exposure complete", "ticks", m.Exposure().Elapsed, "last", m.Last().Concentration.String())
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ozonemon: %s.\n", err)
		os.Exit(1)
	}
}
