// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

// Opcodes from the command table, page 28 of the datasheet.
const (
	_CHARGEPUMP          = 0x8D
	_COLUMNADDR          = 0x21
	_COMSCANDEC          = 0xC8
	_DISPLAYALLON_RESUME = 0xA4
	_DISPLAYOFF          = 0xAE
	_DISPLAYON           = 0xAF
	_INVERTDISPLAY       = 0xA7
	_MEMORYMODE          = 0x20
	_NORMALDISPLAY       = 0xA6
	_PAGEADDR            = 0x22
	_SETCOMPINS          = 0xDA
	_SETCONTRAST         = 0x81
	_SETDISPLAYCLOCKDIV  = 0xD5
	_SETDISPLAYOFFSET    = 0xD3
	_SETMULTIPLEX        = 0xA8
	_SETPRECHARGE        = 0xD9
	_SETSEGMENTREMAP     = 0xA1
	_SETSTARTLINE        = 0x40
	_SETVCOMDETECT       = 0xDB
)

// Memory addressing modes for _MEMORYMODE, page 34.
const (
	_HORIZONTAL = 0x00
	_VERTICAL   = 0x01
	_PAGEMODE   = 0x02
)

const (
	i2cCmd  = 0x00 // I²C transaction has stream of command bytes
	i2cData = 0x40 // I²C transaction has stream of data bytes
)

// command is one controller register write: the opcode followed by its
// argument bytes, if any.
type command struct {
	op   byte
	args []byte
}

// initSequence brings the controller from reset to a lit 128x64 panel in
// horizontal addressing mode. The byte values are what the panel vendor
// ships and must not be reordered. Page 64 has the recommended flow.
var initSequence = []command{
	{_DISPLAYOFF, nil},                  // Display off while configuring
	{_SETDISPLAYCLOCKDIV, []byte{0x80}}, // Divide ratio 1, suggested oscillator frequency
	{_SETMULTIPLEX, []byte{0x3F}},       // 1/64 duty, all 64 rows
	{_SETDISPLAYOFFSET, []byte{0x00}},   // No vertical offset
	{_SETSTARTLINE | 0x00, nil},         // Start line 0
	{_CHARGEPUMP, []byte{0x14}},         // Enable charge pump regulator; page 62
	{_MEMORYMODE, []byte{_HORIZONTAL}},  // Horizontal addressing
	{_SETSEGMENTREMAP, nil},             // Column 127 mapped to SEG0
	{_COMSCANDEC, nil},                  // Scan from COM[N-1] to COM0
	{_SETCOMPINS, []byte{0x12}},         // Alternative COM pin configuration; page 40
	{_SETCONTRAST, []byte{0xCF}},        // Contrast
	{_SETPRECHARGE, []byte{0xF1}},       // Pre-charge period; from adafruit driver
	{_SETVCOMDETECT, []byte{0x40}},      // Vcomh deselect level; page 32
	{_DISPLAYALLON_RESUME, nil},         // Display follows GDDRAM content
	{_NORMALDISPLAY, nil},               // 1 = lit pixel
	{_DISPLAYON, nil},                   // Display on
}

// encode flattens commands into a single command stream.
func encode(cmds ...command) []byte {
	var b []byte
	for _, c := range cmds {
		b = append(b, c.op)
		b = append(b, c.args...)
	}
	return b
}

// window selects the column range [col0, col1] and the page range
// [page0, page1]. It only has an effect in horizontal or vertical mode.
func window(col0, col1, page0, page1 int) []command {
	return []command{
		{_COLUMNADDR, []byte{byte(col0), byte(col1)}},
		{_PAGEADDR, []byte{byte(page0), byte(page1)}},
	}
}
