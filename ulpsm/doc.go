// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ulpsm reads a SPEC ULPSM (ultra-low power sensor module) ozone
// transducer and converts its two analog outputs to a concentration.
//
// The module exposes a gas signal and a reference voltage. Both are sampled
// as 12-bit codes by any analog.PinADC: a microcontroller ADC streamed over
// serial, an ADS1115 on the I²C bus, or a scripted pin in tests. The
// concentration is
//
//	(Vgas - (Vref + Voffset)) / (sensitivity code * TIA gain)
//
// with both voltages computed against a 3.3V full scale.
//
// # Datasheet
//
// https://www.spec-sensors.com/wp-content/uploads/2016/04/ULPSM-O3-968-005.pdf
package ulpsm
