// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ulpsm

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/GermanBionicSystems/ozonemon/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
)

// Channel selects one of the two sensor outputs.
type Channel int

const (
	// Gas is the working electrode signal.
	Gas Channel = iota
	// Ref is the reference voltage, the zero point of the gas signal.
	Ref
)

func (c Channel) String() string {
	switch c {
	case Gas:
		return "gas"
	case Ref:
		return "ref"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Width is the conversion resolution in bits.
type Width int

// Width12 is the only resolution the conversion formula supports.
const Width12 Width = 12

// Attenuation is the input attenuation applied in front of the ADC. Higher
// attenuation extends the measurable voltage range.
type Attenuation int

const (
	Atten0dB Attenuation = iota
	Atten2_5dB
	Atten6dB
	Atten11dB
)

func (a Attenuation) String() string {
	switch a {
	case Atten0dB:
		return "0dB"
	case Atten2_5dB:
		return "2.5dB"
	case Atten6dB:
		return "6dB"
	case Atten11dB:
		return "11dB"
	default:
		return fmt.Sprintf("Attenuation(%d)", int(a))
	}
}

// Configurable is implemented by analog front-ends whose resolution and
// attenuation can be set at run time. Front-ends that do not implement it
// are used as configured.
type Configurable interface {
	Configure(w Width, a Attenuation) error
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	InitAttenuation: Atten2_5dB,
	ReadAttenuation: Atten0dB,
}

// Opts defines the options for the device.
type Opts struct {
	// InitAttenuation is applied once to the gas channel by New.
	InitAttenuation Attenuation
	// ReadAttenuation is applied to a channel before every Read.
	ReadAttenuation Attenuation
	// KeepVoltageOffset preserves Calibration.VOffset. By default New resets
	// it to 0, matching the deployed firmware where the offset from the
	// configuration never took effect.
	KeepVoltageOffset bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dev is a ULPSM sensor wired to two analog inputs.
type Dev struct {
	pins [2]analog.PinADC
	read Attenuation
	cal  Calibration
}

// New returns a Dev reading the gas signal on gas and the reference voltage
// on ref.
//
// The calibration is validated here and a *ConfigurationError returned if it
// cannot be used.
func New(gas, ref analog.PinADC, cal Calibration, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if gas == nil || ref == nil {
		return nil, &ConfigurationError{Field: "pins", Reason: "gas and ref inputs are required"}
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	d := &Dev{pins: [2]analog.PinADC{gas, ref}, read: opts.ReadAttenuation, cal: cal}
	if err := d.configure(Gas, opts.InitAttenuation); err != nil {
		return nil, err
	}
	if !opts.KeepVoltageOffset {
		d.cal.VOffset = 0
	}
	l.Info("ulpsm: initialized", "sensitivity_code", d.cal.SensitivityCode, "tia_gain", d.cal.TIAGain, "v_offset", d.cal.VOffset)
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ULPSM{%s, %s}", d.pins[Gas], d.pins[Ref])
}

// Halt implements conn.Resource. It halts both inputs.
func (d *Dev) Halt() error {
	err := d.pins[Gas].Halt()
	if err2 := d.pins[Ref].Halt(); err == nil {
		err = err2
	}
	return err
}

// Calibration returns the calibration in effect, after the offset reset
// described in Opts.
func (d *Dev) Calibration() Calibration {
	return d.cal
}

// Configure sets the channel to 12 bits and the read attenuation. It is
// idempotent and Read calls it every time.
func (d *Dev) Configure(ch Channel) error {
	return d.configure(ch, d.read)
}

// Read configures the channel and returns one instantaneous raw code. There
// is no averaging.
func (d *Dev) Read(ch Channel) (RawSample, error) {
	if err := d.Configure(ch); err != nil {
		return 0, err
	}
	p := d.pins[ch]
	s, err := p.Read()
	if err != nil {
		return 0, common.Transport("read "+ch.String(), err)
	}
	lo, hi := p.Range()
	return toRaw(s, lo, hi), nil
}

func (d *Dev) configure(ch Channel, a Attenuation) error {
	if ch != Gas && ch != Ref {
		return fmt.Errorf("ulpsm: invalid channel %d", int(ch))
	}
	if c, ok := d.pins[ch].(Configurable); ok {
		return common.Transport("configure "+ch.String(), c.Configure(Width12, a))
	}
	return nil
}

// toRaw maps a sample onto the 12-bit code domain. Inputs already producing
// 12-bit codes are used as is, others are converted from their voltage
// against ReferenceVoltage. The span reported by the pin is not used: a
// bipolar converter still has 0V at code 0.
func toRaw(s, lo, hi analog.Sample) RawSample {
	if lo.Raw == 0 && hi.Raw == int32(MaxRaw) {
		return clamp(float64(s.Raw))
	}
	return clamp(math.Round(float64(s.V) / float64(ReferenceVoltage) * float64(MaxRaw)))
}

func clamp(v float64) RawSample {
	if v < 0 {
		return 0
	}
	if v > float64(MaxRaw) {
		return MaxRaw
	}
	return RawSample(v)
}

var _ conn.Resource = &Dev{}
