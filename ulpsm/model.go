// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ulpsm

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// RawSample is a 12-bit ADC code in [0, MaxRaw].
type RawSample uint16

// MaxRaw is the full scale code of a 12-bit conversion.
const MaxRaw RawSample = 4095

// ReferenceVoltage is the voltage corresponding to MaxRaw.
const ReferenceVoltage = 3300 * physic.MilliVolt

// Concentration is a gas concentration in parts per million. It is not
// clamped and goes negative when the gas signal is below the zero point.
type Concentration float64

func (c Concentration) String() string {
	return fmt.Sprintf("%.2f ppm", float64(c))
}

// Volts converts a raw code to volts.
func (r RawSample) Volts() float64 {
	return float64(r) / float64(MaxRaw) * float64(ReferenceVoltage) / float64(physic.Volt)
}

// Calibration holds the per-sensor constants printed on the label and the
// transimpedance amplifier gain of the board.
type Calibration struct {
	SensitivityCode float64
	TIAGain         float64
	VOffset         float64
}

// NewCalibration returns a validated calibration.
func NewCalibration(sensitivityCode, tiaGain, vOffset float64) (Calibration, error) {
	c := Calibration{SensitivityCode: sensitivityCode, TIAGain: tiaGain, VOffset: vOffset}
	return c, c.Validate()
}

// Validate returns a *ConfigurationError if the calibration cannot be used
// as a divisor.
func (c Calibration) Validate() error {
	if c.SensitivityCode == 0 {
		return &ConfigurationError{Field: "sensitivity_code", Reason: "must not be zero"}
	}
	if c.TIAGain == 0 {
		return &ConfigurationError{Field: "tia_gain", Reason: "must not be zero"}
	}
	return nil
}

// Concentration is Compute(gas, ref, c).
func (c Calibration) Concentration(gas, ref RawSample) Concentration {
	return Compute(gas, ref, c)
}

// Compute converts a gas and a reference sample to a concentration.
//
// cal must have been validated; a zero divisor is not checked here.
func Compute(vgasRaw, vrefRaw RawSample, cal Calibration) Concentration {
	vgas := vgasRaw.Volts()
	vref := vrefRaw.Volts()
	vgas0 := vref + cal.VOffset
	return Concentration((vgas - vgas0) / (cal.SensitivityCode * cal.TIAGain))
}

// ConfigurationError is returned for a calibration or wiring that cannot
// work. It is detected at construction, before any sampling.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ulpsm: invalid %s: %s", e.Field, e.Reason)
}
