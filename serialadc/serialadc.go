// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serialadc reads the ULPSM gas and reference signals from a
// microcontroller streaming 12-bit conversions over a serial port.
//
// The firmware prints one line per conversion pair:
//
//	<gas>,<ref>[*<crc8>]
//
// Both codes are decimal in 0..4095. The optional checksum is two hex digits,
// the CRC-8 (polynomial 0x31, init 0xFF) of the text before '*'.
package serialadc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GermanBionicSystems/ozonemon/common"
	"github.com/GermanBionicSystems/ozonemon/ulpsm"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// DefaultBaudRate is the rate used by the sensor board firmware.
const DefaultBaudRate = 115200

// ReadTimeout bounds how long a Read waits for the next line.
const ReadTimeout = time.Second

var (
	// ErrTimeout is returned when no complete line arrived within ReadTimeout.
	ErrTimeout = errors.New("serialadc: timeout waiting for frame")
	// ErrChecksum is returned when a frame carries a mismatching CRC.
	ErrChecksum = errors.New("serialadc: checksum mismatch")
)

// Frame is one conversion pair as sent by the firmware.
type Frame struct {
	Gas ulpsm.RawSample
	Ref ulpsm.RawSample
}

// ParseFrame decodes one line, without its terminator.
func ParseFrame(line string) (Frame, error) {
	body := line
	if i := strings.IndexByte(line, '*'); i >= 0 {
		body = line[:i]
		sum, err := strconv.ParseUint(line[i+1:], 16, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("serialadc: invalid checksum %q: %w", line[i+1:], err)
		}
		if got := common.CRC8([]byte(body)); got != byte(sum) {
			return Frame{}, fmt.Errorf("%w: got 0x%02x, frame says 0x%02x", ErrChecksum, got, sum)
		}
	}
	parts := strings.Split(body, ",")
	if len(parts) != 2 {
		return Frame{}, fmt.Errorf("serialadc: invalid frame %q: expected 2 comma-separated values, got %d", line, len(parts))
	}
	gas, err := parseCode(parts[0])
	if err != nil {
		return Frame{}, fmt.Errorf("serialadc: invalid gas: %w", err)
	}
	ref, err := parseCode(parts[1])
	if err != nil {
		return Frame{}, fmt.Errorf("serialadc: invalid ref: %w", err)
	}
	return Frame{Gas: gas, Ref: ref}, nil
}

func parseCode(s string) (ulpsm.RawSample, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	if v > uint64(ulpsm.MaxRaw) {
		return 0, fmt.Errorf("%d out of range (max %d)", v, ulpsm.MaxRaw)
	}
	return ulpsm.RawSample(v), nil
}

// Opts defines the options for the device.
type Opts struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dev is a serial connection to the sensor board.
//
// There is no background reader: every read of the gas pin consumes the next
// line from the port. The reference code of that same line is kept for the
// following read of the reference pin, so a gas/ref pair always comes from a
// single conversion.
type Dev struct {
	name string
	port io.ReadCloser
	log  *slog.Logger

	mu      sync.Mutex
	buf     []byte
	chunk   [64]byte
	ref     ulpsm.RawSample
	haveRef bool
}

// Open opens the serial port at baud (DefaultBaudRate when 0) and discards
// anything already buffered, so the first line read is complete.
func Open(port string, baud int, opts *Opts) (*Dev, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("serialadc: failed to open serial port %s: %w", port, err)
	}
	if err := p.SetReadTimeout(ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialadc: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialadc: %w", err)
	}
	return New(p, port, opts), nil
}

// New returns a Dev reading frames from r. A Read on r returning no data and
// no error is treated as a timeout, which is how go.bug.st/serial reports an
// expired read deadline.
func New(r io.ReadCloser, name string, opts *Opts) *Dev {
	d := &Dev{name: name, port: r, log: slog.Default()}
	if opts != nil && opts.Logger != nil {
		d.log = opts.Logger
	}
	return d
}

func (d *Dev) String() string {
	return "serialadc{" + d.name + "}"
}

// Close closes the port.
func (d *Dev) Close() error {
	return d.port.Close()
}

// Pin returns the analog input for ch. Pins share the connection.
func (d *Dev) Pin(ch ulpsm.Channel) analog.PinADC {
	return &Pin{d: d, ch: ch}
}

// Frame reads the next complete frame.
func (d *Dev) Frame() (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame()
}

func (d *Dev) frame() (Frame, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		if line == "" {
			continue
		}
		f, err := ParseFrame(line)
		if err != nil {
			d.log.Debug("serialadc: rejected frame", "line", line, "err", err)
			return Frame{}, err
		}
		return f, nil
	}
}

func (d *Dev) read(ch ulpsm.Channel) (ulpsm.RawSample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch ch {
	case ulpsm.Gas:
		f, err := d.frame()
		if err != nil {
			d.haveRef = false
			return 0, err
		}
		d.ref, d.haveRef = f.Ref, true
		return f.Gas, nil
	case ulpsm.Ref:
		if d.haveRef {
			d.haveRef = false
			return d.ref, nil
		}
		f, err := d.frame()
		if err != nil {
			return 0, err
		}
		return f.Ref, nil
	default:
		return 0, fmt.Errorf("serialadc: invalid channel %d", int(ch))
	}
}

func (d *Dev) readLine() (string, error) {
	for {
		if i := bytes.IndexByte(d.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(d.buf[:i]))
			d.buf = d.buf[i+1:]
			return line, nil
		}
		n, err := d.port.Read(d.chunk[:])
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("serialadc: %w", err)
		}
		return "", ErrTimeout
	}
}

// Pin is one channel of the sensor board. It implements analog.PinADC.
type Pin struct {
	d  *Dev
	ch ulpsm.Channel
}

func (p *Pin) String() string {
	return p.d.name + ":" + p.ch.String()
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.String()
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return int(p.ch)
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "ADC"
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Range implements analog.PinADC.
func (p *Pin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: ulpsm.ReferenceVoltage, Raw: int32(ulpsm.MaxRaw)}
}

// Read implements analog.PinADC.
func (p *Pin) Read() (analog.Sample, error) {
	raw, err := p.d.read(p.ch)
	if err != nil {
		return analog.Sample{}, err
	}
	v := physic.ElectricPotential(int64(ulpsm.ReferenceVoltage) * int64(raw) / int64(ulpsm.MaxRaw))
	return analog.Sample{V: v, Raw: int32(raw)}, nil
}

var _ analog.PinADC = &Pin{}
