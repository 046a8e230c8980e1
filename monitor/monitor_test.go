// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/ozonemon/common"
	"github.com/GermanBionicSystems/ozonemon/ssd1306"
	"github.com/GermanBionicSystems/ozonemon/ssd1306/ssd1306test"
	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"github.com/GermanBionicSystems/ozonemon/ulpsm/ulpsmtest"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// cal maps a gas code 100 counts above the reference to 1 ppm, so with the
// reference at 1000 the gas code 1025 reads 0.25.
var cal = ulpsm.Calibration{SensitivityCode: 1, TIAGain: 3.3 / 4095 * 100}

const ref = 1000

// codes returns gas codes for the given concentrations.
func codes(c ...float64) []int32 {
	out := make([]int32, len(c))
	for i, v := range c {
		out[i] = ref + int32(v*100+0.5)
	}
	return out
}

func repeat(c float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = c
	}
	return out
}

type call struct {
	Op   string
	Text string
	Page int
}

type fakeDisplay struct {
	calls []call
	err   error
}

func (f *fakeDisplay) Clear() error {
	f.calls = append(f.calls, call{Op: "clear"})
	return f.err
}

func (f *fakeDisplay) DrawString(text string, column, page int) error {
	f.calls = append(f.calls, call{Op: "draw", Text: text, Page: page})
	return f.err
}

// stubSampler returns fixed codes with its own calibration.
type stubSampler struct {
	gas, ref ulpsm.RawSample
	cal      ulpsm.Calibration
}

func (s *stubSampler) Read(ch ulpsm.Channel) (ulpsm.RawSample, error) {
	if ch == ulpsm.Gas {
		return s.gas, nil
	}
	return s.ref, nil
}

func (s *stubSampler) Calibration() ulpsm.Calibration {
	return s.cal
}

type sleeper []time.Duration

func (s *sleeper) sleep(d time.Duration) {
	*s = append(*s, d)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newSampler(t *testing.T, gas []int32, strict bool) *ulpsm.Dev {
	g := &ulpsmtest.Pin{N: "gas", Values: gas, Strict: strict}
	r := &ulpsmtest.Pin{N: "ref", Values: []int32{ref}}
	s, err := ulpsm.New(g, r, cal, &ulpsm.Opts{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newMonitor(t *testing.T, s Sampler, d Display, tg Targets, opts *Opts) *Monitor {
	if opts == nil {
		opts = &Opts{}
	}
	if opts.Logger == nil {
		opts.Logger = quiet()
	}
	if opts.Sleep == nil {
		opts.Sleep = func(time.Duration) {}
	}
	m, err := New(s, d, tg, opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewTargets(t *testing.T) {
	tg, err := NewTargets(0.2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Targets{Concentration: 0.2, Ticks: 10}, tg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	for _, ticks := range []int{0, -1} {
		_, err := NewTargets(0.2, ticks)
		var ie *InputError
		if !errors.As(err, &ie) || ie.Field != "target_ticks" {
			t.Errorf("ticks=%d: got %v", ticks, err)
		}
	}
}

func TestNewRejects(t *testing.T) {
	s := newSampler(t, codes(0), false)
	d := &fakeDisplay{}
	var ie *InputError
	if _, err := New(s, d, Targets{Concentration: 0.2}, nil); !errors.As(err, &ie) {
		t.Errorf("zero ticks: %v", err)
	}
	var ce *ulpsm.ConfigurationError
	if _, err := New(&stubSampler{cal: ulpsm.Calibration{TIAGain: 1}}, d, Targets{Ticks: 1}, nil); !errors.As(err, &ce) {
		t.Errorf("zero sensitivity: %v", err)
	}
	if _, err := New(nil, d, Targets{Ticks: 1}, nil); err == nil {
		t.Error("nil sampler accepted")
	}
	if len(d.calls) != 0 {
		t.Errorf("display used: %v", d.calls)
	}
}

func TestPrime(t *testing.T) {
	d := &fakeDisplay{}
	var slept sleeper
	m := newMonitor(t, newSampler(t, codes(0), false), d, Targets{Concentration: 0.2, Ticks: 10}, &Opts{Settle: 2 * time.Second, Sleep: slept.sleep})
	if s := m.State(); s != Priming {
		t.Fatalf("state %s", s)
	}
	if _, err := m.Tick(); !errors.Is(err, ErrNotSampling) {
		t.Fatalf("tick before prime: %v", err)
	}
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	want := []call{{Op: "clear"}, {Op: "draw", Text: "Measure ozone!", Page: 5}, {Op: "clear"}}
	if diff := cmp.Diff(want, d.calls); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(sleeper{2 * time.Second}, slept); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if s := m.State(); s != Sampling {
		t.Errorf("state %s", s)
	}
	if err := m.Prime(); err == nil {
		t.Error("second prime accepted")
	}
}

func TestTickRender(t *testing.T) {
	d := &fakeDisplay{}
	m := newMonitor(t, newSampler(t, codes(0.25, 0.1), true), d, Targets{Concentration: 0.2, Ticks: 10}, nil)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	d.calls = nil
	for i := 0; i < 2; i++ {
		if _, err := m.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	want := []call{
		{Op: "draw", Text: "Conc: 0.25      ", Page: 0},
		{Op: "draw", Text: "Time: 9         ", Page: 2},
		{Op: "draw", Text: "Conc: 0.10      ", Page: 0},
		{Op: "draw", Text: strings.Repeat(" ", 16), Page: 2},
	}
	if diff := cmp.Diff(want, d.calls); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	last := m.Last()
	if last.Gas != 1010 || last.Ref != ref || last.Elapsed != 0 || last.State != Sampling {
		t.Errorf("last %+v", last)
	}
}

func TestResetOnSingleLowTick(t *testing.T) {
	seq := append(repeat(0.5, 7), 0.19, 0.21, 0.3)
	m := newMonitor(t, newSampler(t, codes(seq...), true), &fakeDisplay{}, Targets{Concentration: 0.2, Ticks: 10}, nil)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	var got []int
	for range seq {
		if _, err := m.Tick(); err != nil {
			t.Fatal(err)
		}
		got = append(got, m.Exposure().Elapsed)
	}
	want := []int{1, 2, 3, 4, 5, 6, 7, 0, 1, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTargetTicks(t *testing.T) {
	m := newMonitor(t, newSampler(t, codes(repeat(0.3, 10)...), true), &fakeDisplay{}, Targets{Concentration: 0.2, Ticks: 10}, nil)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 9; i++ {
		s, err := m.Tick()
		if err != nil {
			t.Fatal(err)
		}
		if s != Sampling {
			t.Fatalf("tick %d: %s", i, s)
		}
	}
	s, err := m.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if s != Terminated {
		t.Fatalf("tick 10: %s", s)
	}
	if r := m.Exposure().Remaining(); r != 0 {
		t.Errorf("remaining %d", r)
	}
	if _, err := m.Tick(); !errors.Is(err, ErrNotSampling) {
		t.Errorf("tick after termination: %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	seq := append(append(repeat(0.25, 9), 0.1), repeat(0.3, 10)...)
	bus := ssd1306test.NewBus()
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{Addr: 0x3c, RepairPasses: 1, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	relay := &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High}
	var slept sleeper
	var readings []Reading
	opts := Opts{
		Tick:   time.Second,
		Settle: 2 * time.Second,
		Sleep:  slept.sleep,
		OnTick: func(r Reading) { readings = append(readings, r) },
		Cutoff: &GPIOCutoff{Pin: relay, Level: gpio.Low},
	}
	m := newMonitor(t, newSampler(t, codes(seq...), true), dev, Targets{Concentration: 0.2, Ticks: 10}, &opts)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if len(readings) != len(seq) {
		t.Fatalf("terminated after %d ticks", len(readings))
	}
	for i, r := range readings[:len(seq)-1] {
		if r.State != Sampling {
			t.Fatalf("tick %d: %s", i+1, r.State)
		}
	}
	if readings[8].Elapsed != 9 || readings[9].Elapsed != 0 {
		t.Errorf("streak: %+v %+v", readings[8], readings[9])
	}
	if s := m.State(); s != Terminated {
		t.Errorf("state %s", s)
	}
	if len(slept) != len(seq) || slept[0] != 2*time.Second || slept[1] != time.Second {
		t.Errorf("slept %v", slept)
	}
	if relay.Read() != gpio.Low {
		t.Error("cutoff not tripped")
	}
	for i, c := range DoneMessage {
		g := ssd1306.GlyphFor(byte(c))
		if diff := cmp.Diff(g[:], bus.Page(DonePage)[8*i:8*i+8]); diff != "" {
			t.Fatalf("char %d (-want +got):\n%s", i, diff)
		}
	}
	for _, p := range []int{ConcentrationPage, TimePage, PrimePage} {
		for _, b := range bus.Page(p) {
			if b != 0 {
				t.Fatalf("page %d not blank", p)
			}
		}
	}
}

func TestRunSamplerError(t *testing.T) {
	d := &fakeDisplay{}
	m := newMonitor(t, newSampler(t, codes(0.3, 0.3), true), d, Targets{Concentration: 0.2, Ticks: 10}, nil)
	err := m.Run()
	var te *common.TransportError
	if !errors.As(err, &te) || !errors.Is(err, ulpsmtest.ErrExhausted) {
		t.Fatalf("got %v", err)
	}
	if e := m.Exposure().Elapsed; e != 2 {
		t.Errorf("elapsed %d", e)
	}
}

func TestRunDisplayError(t *testing.T) {
	bus := ssd1306test.NewBus()
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{Addr: 0x3c, RepairPasses: 1, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	bus.FailAt = bus.Count() + 1
	m := newMonitor(t, newSampler(t, codes(0.3), false), dev, Targets{Concentration: 0.2, Ticks: 1}, nil)
	var te *common.TransportError
	if err := m.Run(); !errors.As(err, &te) {
		t.Fatalf("got %v", err)
	}
	if s := m.State(); s != Priming {
		t.Errorf("state %s", s)
	}
}

type failingCutoff struct{}

func (failingCutoff) Trip() error { return errors.New("relay stuck") }

func TestCutoffError(t *testing.T) {
	m := newMonitor(t, newSampler(t, codes(0.3), false), &fakeDisplay{}, Targets{Concentration: 0.2, Ticks: 1}, &Opts{Cutoff: failingCutoff{}})
	if err := m.Run(); err == nil || !strings.Contains(err.Error(), "relay stuck") {
		t.Fatalf("got %v", err)
	}
	if s := m.State(); s != Terminated {
		t.Errorf("state %s", s)
	}
}

func TestStateString(t *testing.T) {
	if s := Terminated.String(); s != "Terminated" {
		t.Error(s)
	}
	if s := State(9).String(); s != "State(9)" {
		t.Error(s)
	}
}

func TestPrimeBlanksPowerOnGarbage(t *testing.T) {
	bus := ssd1306test.NewBus()
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{Addr: 0x3c, RepairPasses: 1, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	bus.Fill(0xA5)
	var shown []byte
	opts := Opts{Sleep: func(time.Duration) {
		shown = append([]byte(nil), bus.Page(0)...)
	}}
	m := newMonitor(t, newSampler(t, codes(0), false), dev, Targets{Concentration: 0.2, Ticks: 10}, &opts)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(make([]byte, 128), shown); diff != "" {
		t.Errorf("page 0 during settle (-want +got):\n%s", diff)
	}
}

func TestUsesSamplerCalibration(t *testing.T) {
	// The sampler resets the offset; a 1V offset would make 1025 read
	// strongly negative.
	c := cal
	c.VOffset = 1
	g := &ulpsmtest.Pin{N: "gas", Values: codes(0.25)}
	r := &ulpsmtest.Pin{N: "ref", Values: []int32{ref}}
	s, err := ulpsm.New(g, r, c, &ulpsm.Opts{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	m := newMonitor(t, s, &fakeDisplay{}, Targets{Concentration: 0.2, Ticks: 10}, nil)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tick(); err != nil {
		t.Fatal(err)
	}
	if e := m.Exposure().Elapsed; e != 1 {
		t.Errorf("elapsed %d, concentration %v", e, m.Last().Concentration)
	}
}

func TestTickTruncatesWideValues(t *testing.T) {
	bus := ssd1306test.NewBus()
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{Addr: 0x3c, RepairPasses: 1, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	s := &stubSampler{gas: 4095, ref: 0, cal: ulpsm.Calibration{SensitivityCode: 1e-9, TIAGain: 1}}
	m := newMonitor(t, s, dev, Targets{Concentration: 0.2, Ticks: 10}, nil)
	if err := m.Prime(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tick(); err != nil {
		t.Fatal(err)
	}
	// "Conc: 3300000000.00" keeps its first 16 characters.
	for i, c := range "Conc: 3300000000" {
		g := ssd1306.GlyphFor(byte(c))
		if diff := cmp.Diff(g[:], bus.Page(ConcentrationPage)[8*i:8*i+8]); diff != "" {
			t.Fatalf("char %d (-want +got):\n%s", i, diff)
		}
	}
}
