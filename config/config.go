// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the monitor configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor sources.
const (
	SourceSim     = "sim"
	SourceADS1115 = "ads1115"
	SourceSerial  = "serial"
)

// Config represents the application configuration.
type Config struct {
	Bus         string            `yaml:"bus"`
	Display     DisplayConfig     `yaml:"display"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Sim         SimConfig         `yaml:"sim"`
	Preview     PreviewConfig     `yaml:"preview"`
}

// DisplayConfig contains the OLED settings.
type DisplayConfig struct {
	Address      uint16 `yaml:"address"`
	RepairPasses int    `yaml:"repair_passes"`
	Contrast     int    `yaml:"contrast"` // 0 keeps the init table value
}

// SensorConfig selects the analog front-end.
type SensorConfig struct {
	Source   string `yaml:"source"` // sim, ads1115 or serial
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	// ADS1115 inputs, 0..3.
	GasChannel int    `yaml:"gas_channel"`
	RefChannel int    `yaml:"ref_channel"`
	ADCAddress uint16 `yaml:"adc_address"`
}

// CalibrationConfig holds the sensor calibration sheet values.
type CalibrationConfig struct {
	SensitivityCode   float64 `yaml:"sensitivity_code"`
	TIAGain           float64 `yaml:"tia_gain"`
	VoltageOffset     float64 `yaml:"voltage_offset"`
	KeepVoltageOffset bool    `yaml:"keep_voltage_offset"`
}

// MonitorConfig holds the exposure targets and timing.
type MonitorConfig struct {
	TargetConcentration float64       `yaml:"target_concentration"`
	TargetTicks         int           `yaml:"target_ticks"`
	Tick                time.Duration `yaml:"tick"`
	Settle              time.Duration `yaml:"settle"`
	CutoffPin           string        `yaml:"cutoff_pin"` // empty disables
	CutoffLevel         bool          `yaml:"cutoff_level"`
}

// SimConfig scripts the simulated sensor, as 12-bit codes.
type SimConfig struct {
	Gas []int32 `yaml:"gas"`
	Ref []int32 `yaml:"ref"`
}

// PreviewConfig controls the mirrors of the OLED.
type PreviewConfig struct {
	Console  bool   `yaml:"console"`
	Snapshot string `yaml:"snapshot"` // PNG path, empty disables
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Address:      0x3C,
			RepairPasses: 1,
		},
		Sensor: SensorConfig{
			Source:     SourceSim,
			Port:       "/dev/ttyACM0",
			BaudRate:   115200,
			GasChannel: 0,
			RefChannel: 1,
			ADCAddress: 0x48,
		},
		Calibration: CalibrationConfig{
			SensitivityCode: 1,    // printed on the sensor label
			TIAGain:         -5.5, // ozone variant
		},
		Monitor: MonitorConfig{
			TargetConcentration: 0.2,
			TargetTicks:         10,
			Tick:                time.Second,
			Settle:              2 * time.Second,
		},
		Sim: SimConfig{
			Gas: []int32{2048},
			Ref: []int32{2048},
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", filename, err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", filename, err)
	}

	return nil
}

// Validate checks the fields that have no usable default. Calibration and
// targets are validated by the packages consuming them.
func (c *Config) Validate() error {
	switch c.Sensor.Source {
	case SourceSim, SourceADS1115, SourceSerial:
	default:
		return fmt.Errorf("config: unknown sensor source %q", c.Sensor.Source)
	}
	if c.Sensor.Source == SourceADS1115 {
		for _, ch := range []int{c.Sensor.GasChannel, c.Sensor.RefChannel} {
			if ch < 0 || ch > 3 {
				return fmt.Errorf("config: ADS1115 channel %d out of range", ch)
			}
		}
		if c.Sensor.GasChannel == c.Sensor.RefChannel {
			return fmt.Errorf("config: gas and ref share ADS1115 channel %d", c.Sensor.GasChannel)
		}
	}
	if c.Display.Contrast < 0 || c.Display.Contrast > 255 {
		return fmt.Errorf("config: contrast %d out of range", c.Display.Contrast)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Display.Address == 0 {
		c.Display.Address = def.Display.Address
	}
	if c.Display.RepairPasses < 0 {
		c.Display.RepairPasses = def.Display.RepairPasses
	}

	if c.Sensor.Source == "" {
		c.Sensor.Source = def.Sensor.Source
	}
	if c.Sensor.Port == "" {
		c.Sensor.Port = def.Sensor.Port
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.ADCAddress == 0 {
		c.Sensor.ADCAddress = def.Sensor.ADCAddress
	}

	if c.Monitor.Tick == 0 {
		c.Monitor.Tick = def.Monitor.Tick
	}
	if c.Monitor.Settle == 0 {
		c.Monitor.Settle = def.Monitor.Settle
	}

	if len(c.Sim.Gas) == 0 {
		c.Sim.Gas = def.Sim.Gas
	}
	if len(c.Sim.Ref) == 0 {
		c.Sim.Ref = def.Sim.Ref
	}
}
