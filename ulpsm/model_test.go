// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ulpsm

import (
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

func TestComputeZeroWhenEqual(t *testing.T) {
	cals := []Calibration{
		{SensitivityCode: 1, TIAGain: -5.5},
		{SensitivityCode: 2.7, TIAGain: 499},
		{SensitivityCode: -0.3, TIAGain: 1},
	}
	for _, cal := range cals {
		for _, raw := range []RawSample{0, 1, 2048, MaxRaw} {
			if c := Compute(raw, raw, cal); c != 0 {
				t.Errorf("Compute(%d, %d, %+v) = %v, want 0", raw, raw, cal, c)
			}
		}
	}
}

func TestComputeReference(t *testing.T) {
	cal := Calibration{SensitivityCode: 1.0, TIAGain: -5.5, VOffset: 0.0}
	if c := Compute(2048, 2048, cal); c != 0 {
		t.Errorf("got %v, want 0", c)
	}
	// One full scale of difference.
	c := Compute(MaxRaw, 0, Calibration{SensitivityCode: 1, TIAGain: 1})
	if math.Abs(float64(c)-3.3) > 1e-12 {
		t.Errorf("got %v, want 3.3", c)
	}
	// The offset moves the zero point.
	c = Compute(2048, 2048, Calibration{SensitivityCode: 1, TIAGain: 2, VOffset: -0.5})
	if math.Abs(float64(c)-0.25) > 1e-12 {
		t.Errorf("got %v, want 0.25", c)
	}
}

func TestComputeMonotonic(t *testing.T) {
	tests := []struct {
		gain       float64
		increasing bool
	}{
		{gain: 5.5, increasing: true},
		{gain: -5.5, increasing: false},
	}
	for _, test := range tests {
		cal := Calibration{SensitivityCode: 1, TIAGain: test.gain}
		prev := Compute(0, 1500, cal)
		for raw := RawSample(1); raw <= MaxRaw; raw++ {
			c := Compute(raw, 1500, cal)
			if test.increasing && c <= prev {
				t.Fatalf("gain %v: not increasing at %d: %v <= %v", test.gain, raw, c, prev)
			}
			if !test.increasing && c >= prev {
				t.Fatalf("gain %v: not decreasing at %d: %v >= %v", test.gain, raw, c, prev)
			}
			prev = c
		}
	}
}

func TestNewCalibration(t *testing.T) {
	tests := []struct {
		sensitivity, gain float64
		field             string
	}{
		{0, -5.5, "sensitivity_code"},
		{1, 0, "tia_gain"},
		{0, 0, "sensitivity_code"},
	}
	for _, test := range tests {
		_, err := NewCalibration(test.sensitivity, test.gain, 0)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("%v/%v: expected *ConfigurationError, got %v", test.sensitivity, test.gain, err)
			continue
		}
		if ce.Field != test.field {
			t.Errorf("field %q, want %q", ce.Field, test.field)
		}
	}
	cal, err := NewCalibration(1, -5.5, 0.025)
	if err != nil {
		t.Fatal(err)
	}
	if cal.VOffset != 0.025 {
		t.Errorf("offset not kept: %v", cal.VOffset)
	}
}

func TestConcentrationString(t *testing.T) {
	if s := Concentration(0.254).String(); s != "0.25 ppm" {
		t.Errorf("got %q", s)
	}
	if s := Concentration(-1.5).String(); s != "-1.50 ppm" {
		t.Errorf("got %q", s)
	}
}

func TestToRaw(t *testing.T) {
	twelve := []struct {
		in   int32
		want RawSample
	}{{0, 0}, {4095, 4095}, {5000, 4095}, {-3, 0}, {2048, 2048}}
	for _, s := range twelve {
		if got := toRaw(sample(0, s.in), sample(0, 0), sample(3300, 4095)); got != s.want {
			t.Errorf("12-bit %d: got %d want %d", s.in, got, s.want)
		}
	}
	// A 16-bit bipolar converter: codes follow the voltage, not the span.
	lo, hi := sample(-4096, -32768), sample(4096, 32767)
	bipolar := []struct {
		mv   int64
		want RawSample
	}{{0, 0}, {1650, 2048}, {2200, 2730}, {3300, MaxRaw}, {4096, MaxRaw}, {-500, 0}}
	for _, b := range bipolar {
		if got := toRaw(sample(b.mv, int32(b.mv*8)), lo, hi); got != b.want {
			t.Errorf("%dmV: got %d want %d", b.mv, got, b.want)
		}
	}
}

func sample(mv int64, raw int32) analog.Sample {
	return analog.Sample{V: physic.ElectricPotential(mv) * physic.MilliVolt, Raw: raw}
}
