// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ulpsmtest provides a scripted analog input for exercising the
// sensor and the monitor without hardware.
package ulpsmtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// ErrExhausted is returned by Read once a non-looping script ran out.
var ErrExhausted = errors.New("ulpsmtest: no more values")

// Pin is an analog.PinADC returning 12-bit codes from Values, in order.
//
// Once the script is consumed the last value repeats, unless Strict is set
// in which case Read fails with ErrExhausted.
type Pin struct {
	N      string
	Values []int32
	Strict bool
	// Err, when set, is returned by Read and Configure.
	Err error

	mu          sync.Mutex
	next        int
	width       ulpsm.Width
	attenuation ulpsm.Attenuation
	configured  int
}

func (p *Pin) String() string {
	return p.N
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.N
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return -1
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "ADC"
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Range implements analog.PinADC. The pin is a 12-bit converter with a 3.3V
// full scale.
func (p *Pin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: ulpsm.ReferenceVoltage, Raw: int32(ulpsm.MaxRaw)}
}

// Read implements analog.PinADC.
func (p *Pin) Read() (analog.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return analog.Sample{}, p.Err
	}
	if len(p.Values) == 0 {
		return analog.Sample{}, fmt.Errorf("ulpsmtest: %s has no values", p.N)
	}
	i := p.next
	if i >= len(p.Values) {
		if p.Strict {
			return analog.Sample{}, ErrExhausted
		}
		i = len(p.Values) - 1
	} else {
		p.next++
	}
	raw := p.Values[i]
	v := physic.ElectricPotential(int64(ulpsm.ReferenceVoltage) * int64(raw) / int64(ulpsm.MaxRaw))
	return analog.Sample{V: v, Raw: raw}, nil
}

// Configure implements ulpsm.Configurable.
func (p *Pin) Configure(w ulpsm.Width, a ulpsm.Attenuation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.width = w
	p.attenuation = a
	p.configured++
	return nil
}

// Settings returns the last configuration and how many times Configure was
// called.
func (p *Pin) Settings() (ulpsm.Width, ulpsm.Attenuation, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.attenuation, p.configured
}

// Remaining returns how many scripted values were not read yet.
func (p *Pin) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Values) - p.next
}

var _ analog.PinADC = &Pin{}
var _ ulpsm.Configurable = &Pin{}
