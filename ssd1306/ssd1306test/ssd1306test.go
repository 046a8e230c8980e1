// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ssd1306test emulates a SSD1306 controller behind an I²C bus.
//
// Unlike i2ctest.Playback, which checks a fixed transaction script, Bus
// interprets the command stream and keeps the 8x128 bytes of graphics RAM,
// so tests can assert on what ends up on the panel. It also runs the
// command in simulation mode when no panel is wired.
package ssd1306test

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	width = 128
	pages = 8

	ctrlCmd  = 0x00
	ctrlData = 0x40
)

const (
	modeHorizontal = 0x00
	modeVertical   = 0x01
	modePage       = 0x02
)

// argCount lists the opcodes taking argument bytes. Everything else is a
// single byte command.
var argCount = map[byte]int{
	0x20: 1, // memory addressing mode
	0x21: 2, // column address
	0x22: 2, // page address
	0x26: 6, // right horizontal scroll
	0x27: 6, // left horizontal scroll
	0x29: 5, // vertical and right scroll
	0x2A: 5, // vertical and left scroll
	0x81: 1, // contrast
	0x8D: 1, // charge pump
	0xA3: 2, // vertical scroll area
	0xA8: 1, // multiplex ratio
	0xD3: 1, // display offset
	0xD5: 1, // clock divide
	0xD9: 1, // pre-charge
	0xDA: 1, // COM pins
	0xDB: 1, // Vcomh
}

// ErrInjected is returned by Tx for the transaction selected by Bus.FailAt
// when Bus.Err is nil.
var ErrInjected = errors.New("ssd1306test: injected bus failure")

// Bus is an emulated SSD1306 reachable at Addr. The zero value answers at
// 0x3c and starts in page addressing mode, like the chip after reset.
type Bus struct {
	// Addr is the I²C address the controller answers at. 0 means 0x3c.
	Addr uint16
	// Corrupt, when set, is called for every data byte stored in RAM and
	// returns the value actually kept. Use it to emulate a noisy bus.
	Corrupt func(page, col int, b byte) byte
	// FailAt makes the n-th transaction (1 based) fail with Err.
	FailAt int
	Err    error

	mu       sync.Mutex
	ram      [pages][width]byte
	mode     byte
	colStart int
	colEnd   int
	pgStart  int
	pgEnd    int
	col      int
	page     int
	on       bool
	inverted bool
	contrast byte
	count    int
	ops      [][]byte
	ready    bool
}

// NewBus returns an emulated controller fresh from reset.
func NewBus() *Bus {
	b := &Bus{}
	b.reset()
	return b
}

func (b *Bus) reset() {
	b.mode = modePage
	b.colStart, b.colEnd = 0, width-1
	b.pgStart, b.pgEnd = 0, pages-1
	b.contrast = 0x7F
	b.ready = true
}

func (b *Bus) String() string {
	return "ssd1306test.Bus"
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser.
func (b *Bus) Close() error {
	return nil
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	if !b.ready {
		b.reset()
	}
	if b.FailAt != 0 && b.count == b.FailAt {
		if b.Err != nil {
			return b.Err
		}
		return ErrInjected
	}
	want := b.Addr
	if want == 0 {
		want = 0x3c
	}
	if addr != want {
		return fmt.Errorf("ssd1306test: no device at address 0x%02x", addr)
	}
	if len(w) == 0 {
		return errors.New("ssd1306test: missing control byte")
	}
	b.ops = append(b.ops, append([]byte(nil), w...))
	switch w[0] {
	case ctrlCmd:
		if err := b.commands(w[1:]); err != nil {
			return err
		}
		// Status byte: 128x64 id, bit 6 set when the display is off.
		for i := range r {
			r[i] = 0x06
			if !b.on {
				r[i] |= 0x40
			}
		}
	case ctrlData:
		for _, v := range w[1:] {
			if b.Corrupt != nil {
				v = b.Corrupt(b.page, b.col, v)
			}
			b.ram[b.page][b.col] = v
			b.advance()
		}
		for i := range r {
			r[i] = b.ram[b.page][b.col]
			b.advance()
		}
	default:
		return fmt.Errorf("ssd1306test: unsupported control byte 0x%02x", w[0])
	}
	return nil
}

func (b *Bus) commands(c []byte) error {
	for len(c) > 0 {
		op := c[0]
		n := argCount[op]
		if len(c) < 1+n {
			return fmt.Errorf("ssd1306test: command 0x%02x truncated", op)
		}
		args := c[1 : 1+n]
		c = c[1+n:]
		switch {
		case op == 0x20:
			b.mode = args[0] & 0x03
		case op == 0x21:
			b.colStart, b.colEnd = int(args[0]&0x7F), int(args[1]&0x7F)
			b.col = b.colStart
		case op == 0x22:
			b.pgStart, b.pgEnd = int(args[0]&0x07), int(args[1]&0x07)
			b.page = b.pgStart
		case op <= 0x0F:
			b.col = b.col&0xF0 | int(op&0x0F)
		case op <= 0x1F:
			b.col = int(op&0x0F)<<4 | b.col&0x0F
		case op >= 0xB0 && op <= 0xB7:
			b.page = int(op & 0x07)
		case op == 0x81:
			b.contrast = args[0]
		case op == 0xA6:
			b.inverted = false
		case op == 0xA7:
			b.inverted = true
		case op == 0xAE:
			b.on = false
		case op == 0xAF:
			b.on = true
		}
	}
	return nil
}

// advance moves the RAM pointer after a data byte, page 34 of the datasheet.
func (b *Bus) advance() {
	switch b.mode {
	case modeHorizontal:
		b.col++
		if b.col > b.colEnd {
			b.col = b.colStart
			b.page++
			if b.page > b.pgEnd {
				b.page = b.pgStart
			}
		}
	case modeVertical:
		b.page++
		if b.page > b.pgEnd {
			b.page = b.pgStart
			b.col++
			if b.col > b.colEnd {
				b.col = b.colStart
			}
		}
	default:
		b.col++
		if b.col >= width {
			b.col = 0
		}
	}
}

// Page returns a copy of one page of graphics RAM.
func (b *Bus) Page(page int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.ram[page][:]...)
}

// Fill sets every byte of graphics RAM, e.g. to emulate power-on garbage.
func (b *Bus) Fill(v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.ram {
		for c := range b.ram[p] {
			b.ram[p][c] = v
		}
	}
}

// Blank reports whether all graphics RAM is zero.
func (b *Bus) Blank() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.ram {
		for _, v := range b.ram[p] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// On reports whether the display is lit.
func (b *Bus) On() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// Inverted reports whether the display is in inverse mode.
func (b *Bus) Inverted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inverted
}

// Contrast returns the last contrast value set.
func (b *Bus) Contrast() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contrast
}

// Count returns the number of transactions seen so far.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Ops returns the write half of every transaction, control byte included.
func (b *Bus) Ops() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.ops...)
}

var _ i2c.BusCloser = &Bus{}
