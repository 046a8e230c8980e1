// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"

	"github.com/GermanBionicSystems/ozonemon/config"
	"github.com/GermanBionicSystems/ozonemon/monitor"
	"github.com/GermanBionicSystems/ozonemon/serialadc"
	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"github.com/GermanBionicSystems/ozonemon/ulpsm/ulpsmtest"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

var adsChannels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// openSensor returns the gas and reference inputs for the configured source.
func openSensor(cfg *config.Config, bus i2c.Bus, logger *slog.Logger) (analog.PinADC, analog.PinADC, func(), error) {
	nop := func() {}
	switch cfg.Sensor.Source {
	case config.SourceSim:
		gas := &ulpsmtest.Pin{N: "sim-gas", Values: cfg.Sim.Gas}
		ref := &ulpsmtest.Pin{N: "sim-ref", Values: cfg.Sim.Ref}
		return gas, ref, nop, nil

	case config.SourceSerial:
		d, err := serialadc.Open(cfg.Sensor.Port, cfg.Sensor.BaudRate, &serialadc.Opts{Logger: logger})
		if err != nil {
			return nil, nil, nil, err
		}
		closer := func() {
			if err := d.Close(); err != nil {
				logger.Warn("serial close failed", "err", err)
			}
		}
		return d.Pin(ulpsm.Gas), d.Pin(ulpsm.Ref), closer, nil

	case config.SourceADS1115:
		adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.Sensor.ADCAddress})
		if err != nil {
			return nil, nil, nil, err
		}
		gas, err := adc.PinForChannel(adsChannels[cfg.Sensor.GasChannel], ulpsm.ReferenceVoltage, 8*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			return nil, nil, nil, err
		}
		ref, err := adc.PinForChannel(adsChannels[cfg.Sensor.RefChannel], ulpsm.ReferenceVoltage, 8*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			gas.Halt()
			return nil, nil, nil, err
		}
		return gas, ref, nop, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown sensor source %q", cfg.Sensor.Source)
	}
}

// openCutoff returns the ozone generator cutoff, or nil when none is wired.
func openCutoff(cfg *config.Config, sim bool) (monitor.Cutoff, error) {
	name := cfg.Monitor.CutoffPin
	if name == "" {
		return nil, nil
	}
	level := gpio.Level(cfg.Monitor.CutoffLevel)
	var p gpio.PinOut
	if sim {
		p = &gpiotest.Pin{N: name, L: !level}
	} else {
		p = gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("no GPIO pin named %q", name)
		}
	}
	return &monitor.GPIOCutoff{Pin: p, Level: level}, nil
}
