// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor runs the ozone exposure control loop.
//
// Each tick samples the sensor, shows the concentration and counts how many
// consecutive ticks it stayed at or above the target. A single tick below
// the target restarts the count. The loop terminates once the count reaches
// the target number of ticks.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"periph.io/x/conn/v3/gpio"
)

// State is the state of the monitor.
type State int

const (
	AwaitingInput State = iota
	Priming
	Sampling
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AwaitingInput"
	case Priming:
		return "Priming"
	case Sampling:
		return "Sampling"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Screen rows, as display pages, and the fixed messages.
const (
	ConcentrationPage = 0
	TimePage          = 2
	DonePage          = 4
	PrimePage         = 5

	PrimeMessage = "Measure ozone!"
	DoneMessage  = "Time reached"

	// lineCells is the width of a full text line in 8 pixel cells.
	lineCells = 16
)

// ErrNotSampling is returned by Tick outside of the Sampling state.
var ErrNotSampling = errors.New("monitor: not sampling")

// InputError reports an unusable target.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("monitor: invalid %s: %s", e.Field, e.Reason)
}

// Targets is the exposure to reach: Concentration or more for Ticks
// consecutive ticks.
type Targets struct {
	Concentration ulpsm.Concentration
	Ticks         int
}

// NewTargets validates the operator supplied targets.
func NewTargets(concentration float64, ticks int) (Targets, error) {
	t := Targets{Concentration: ulpsm.Concentration(concentration), Ticks: ticks}
	return t, t.Validate()
}

// Validate returns an *InputError when Ticks is not positive.
func (t Targets) Validate() error {
	if t.Ticks <= 0 {
		return &InputError{Field: "target_ticks", Reason: fmt.Sprintf("%d is not positive", t.Ticks)}
	}
	return nil
}

// Exposure is the progress toward the targets.
type Exposure struct {
	Elapsed int
	Target  Targets
}

// Remaining returns the number of ticks still needed.
func (e Exposure) Remaining() int {
	if e.Elapsed >= e.Target.Ticks {
		return 0
	}
	return e.Target.Ticks - e.Elapsed
}

// Reading is the outcome of one tick.
type Reading struct {
	Gas           ulpsm.RawSample
	Ref           ulpsm.RawSample
	Concentration ulpsm.Concentration
	Elapsed       int
	State         State
}

// Sampler is the sensor. *ulpsm.Dev implements it.
type Sampler interface {
	Read(ch ulpsm.Channel) (ulpsm.RawSample, error)
	// Calibration returns the calibration in effect for the samples Read
	// returns.
	Calibration() ulpsm.Calibration
}

// Display is the text screen. *ssd1306.Dev implements it.
type Display interface {
	Clear() error
	DrawString(text string, column, page int) error
}

// Cutoff is triggered once when the target exposure is reached.
type Cutoff interface {
	Trip() error
}

// GPIOCutoff drives the ozone generator relay pin to Level.
type GPIOCutoff struct {
	Pin   gpio.PinOut
	Level gpio.Level
}

// Trip implements Cutoff.
func (g *GPIOCutoff) Trip() error {
	if err := g.Pin.Out(g.Level); err != nil {
		return fmt.Errorf("monitor: cutoff %s: %w", g.Pin, err)
	}
	return nil
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Tick:   time.Second,
	Settle: 2 * time.Second,
}

// Opts defines the options for the monitor.
type Opts struct {
	// Tick is the pause between two samples in Run.
	Tick time.Duration
	// Settle is how long the priming message stays up.
	Settle time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
	// OnTick, when set, is called after every tick.
	OnTick func(Reading)
	// Cutoff, when set, is tripped on termination.
	Cutoff Cutoff
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Monitor is the control loop. It is not safe for concurrent use; the
// sampler and the display usually share one bus.
type Monitor struct {
	s    Sampler
	cal  ulpsm.Calibration
	d    Display
	opts Opts
	log  *slog.Logger

	state State
	exp   Exposure
	last  Reading
}

// New returns a Monitor in the Priming state. Concentrations are computed
// with s.Calibration().
func New(s Sampler, d Display, t Targets, opts *Opts) (*Monitor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if s == nil || d == nil {
		return nil, errors.New("monitor: sampler and display are required")
	}
	cal := s.Calibration()
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Tick <= 0 {
		o.Tick = DefaultOpts.Tick
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Monitor{
		s:     s,
		cal:   cal,
		d:     d,
		opts:  o,
		log:   o.Logger,
		state: Priming,
		exp:   Exposure{Target: t},
	}, nil
}

// State returns the current state.
func (m *Monitor) State() State {
	return m.state
}

// Exposure returns the current progress.
func (m *Monitor) Exposure() Exposure {
	return m.exp
}

// Last returns the most recent tick outcome.
func (m *Monitor) Last() Reading {
	return m.last
}

// Prime clears the screen, shows the priming message for the settle delay,
// then clears the screen again and starts Sampling.
func (m *Monitor) Prime() error {
	if m.state != Priming {
		return fmt.Errorf("monitor: cannot prime in state %s", m.state)
	}
	m.log.Info("monitor: priming", "settle", m.opts.Settle, "target", float64(m.exp.Target.Concentration), "ticks", m.exp.Target.Ticks)
	if err := m.d.Clear(); err != nil {
		return err
	}
	if err := m.d.DrawString(PrimeMessage, 0, PrimePage); err != nil {
		return err
	}
	m.opts.Sleep(m.opts.Settle)
	if err := m.d.Clear(); err != nil {
		return err
	}
	m.exp.Elapsed = 0
	m.state = Sampling
	return nil
}

// Tick runs one sampling iteration without sleeping and returns the new
// state.
func (m *Monitor) Tick() (State, error) {
	if m.state != Sampling {
		return m.state, fmt.Errorf("%w (state %s)", ErrNotSampling, m.state)
	}
	gas, err := m.s.Read(ulpsm.Gas)
	if err != nil {
		return m.state, err
	}
	ref, err := m.s.Read(ulpsm.Ref)
	if err != nil {
		return m.state, err
	}
	c := m.cal.Concentration(gas, ref)
	if err := m.line(fmt.Sprintf("Conc: %.2f", float64(c)), ConcentrationPage); err != nil {
		return m.state, err
	}
	if c >= m.exp.Target.Concentration {
		m.exp.Elapsed++
		if err := m.line(fmt.Sprintf("Time: %d", m.exp.Remaining()), TimePage); err != nil {
			return m.state, err
		}
		if m.exp.Elapsed >= m.exp.Target.Ticks {
			if err := m.terminate(); err != nil {
				return m.state, err
			}
		}
	} else {
		if m.exp.Elapsed != 0 {
			m.log.Info("monitor: exposure interrupted", "concentration", float64(c), "elapsed", m.exp.Elapsed)
		}
		m.exp.Elapsed = 0
		if err := m.line("", TimePage); err != nil {
			return m.state, err
		}
	}
	m.last = Reading{Gas: gas, Ref: ref, Concentration: c, Elapsed: m.exp.Elapsed, State: m.state}
	m.log.Debug("monitor: tick", "gas", gas, "ref", ref, "concentration", float64(c), "elapsed", m.exp.Elapsed)
	if m.opts.OnTick != nil {
		m.opts.OnTick(m.last)
	}
	return m.state, nil
}

// Run primes if needed, then ticks every Opts.Tick until Terminated. It
// returns the first error encountered.
func (m *Monitor) Run() error {
	if m.state == Priming {
		if err := m.Prime(); err != nil {
			return err
		}
	}
	for {
		s, err := m.Tick()
		if err != nil {
			return err
		}
		if s == Terminated {
			return nil
		}
		m.opts.Sleep(m.opts.Tick)
	}
}

func (m *Monitor) terminate() error {
	m.state = Terminated
	m.log.Info("monitor: target exposure reached", "ticks", m.exp.Elapsed)
	if err := m.d.Clear(); err != nil {
		return err
	}
	if err := m.d.DrawString(DoneMessage, 0, DonePage); err != nil {
		return err
	}
	if m.opts.Cutoff != nil {
		if err := m.opts.Cutoff.Trip(); err != nil {
			return err
		}
		m.log.Info("monitor: ozone generator cut off")
	}
	return nil
}

// line draws s on page, truncated or padded to the full width so no
// previous glyph remains.
func (m *Monitor) line(s string, page int) error {
	if len(s) > lineCells {
		s = s[:lineCells]
	} else if len(s) < lineCells {
		s += strings.Repeat(" ", lineCells-len(s))
	}
	return m.d.DrawString(s, 0, page)
}
