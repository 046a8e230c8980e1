// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/GermanBionicSystems/ozonemon/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const (
	// Width is the number of columns of the panel.
	Width = 128
	// Height is the number of rows of the panel.
	Height = 64
	// Pages is the number of 8 pixels high bands.
	Pages = Height / 8
)

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:         0x3c,
	RepairPasses: 1,
}

// Opts defines the options for the device.
type Opts struct {
	// The I2C address of the display.
	Addr uint16
	// RepairPasses bounds how many times Clear() rewrites a page that did not
	// read back blank. 0 only verifies.
	RepairPasses int
	// Logger receives repair diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewI2C returns a Dev object that communicates over I²C to a SSD1306 display
// controller. The controller is initialized before returning.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	addr := opts.Addr
	if addr == 0x00 {
		addr = DefaultOpts.Addr
	}
	// Maximum clock speed is 1/2.5µs = 400KHz.
	d := newDev(&i2c.Dev{Bus: b, Addr: addr}, opts)
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is an open handle to the display controller.
type Dev struct {
	c      conn.Conn
	repair int
	log    *slog.Logger
	halted bool

	// shadow holds what was last written to the GDDRAM. It is never used to
	// skip bus writes.
	shadow *image1bit.VerticalLSB
}

func newDev(c conn.Conn, opts *Opts) *Dev {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	repair := opts.RepairPasses
	if repair < 0 {
		repair = 0
	}
	return &Dev{
		c:      c,
		repair: repair,
		log:    l,
		shadow: image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height)),
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("SSD1306.Dev{%s, %s}", d.c, d.shadow.Rect.Max)
}

// Bounds returns the panel size. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.shadow.Rect
}

// Init sends the fixed initialization sequence in a single command
// transaction. It must be called before drawing; NewI2C already does.
//
// A failure is returned as is and not retried.
func (d *Dev) Init() error {
	d.halted = false
	return d.sendCommand(encode(initSequence...))
}

// Clear blanks the whole display, page by page, and verifies each page by
// reading it back. See EnsureRegion.
func (d *Dev) Clear() error {
	for page := 0; page < Pages; page++ {
		if err := d.EnsureRegion(page, 0x00); err != nil {
			return err
		}
	}
	return nil
}

// EnsureRegion fills a full page with pattern and makes sure the controller
// actually holds it.
//
// The page is written, read back and compared. Mismatching bytes are forced
// to pattern and the page is written again, at most Opts.RepairPasses times.
// A page that is still inconsistent after that is logged and otherwise
// ignored since the next draw calls overwrite it anyway.
//
// Any failed transaction aborts with a *common.TransportError and the page
// content is then unspecified.
func (d *Dev) EnsureRegion(page int, pattern byte) error {
	if page < 0 || page >= Pages {
		return fmt.Errorf("ssd1306: invalid page %d", page)
	}
	want := make([]byte, Width)
	for i := range want {
		want[i] = pattern
	}
	if err := d.sendCommand(encode(command{_MEMORYMODE, []byte{_HORIZONTAL}})); err != nil {
		return err
	}
	if err := d.writePage(page, want); err != nil {
		return err
	}
	got := make([]byte, Width)
	for pass := 0; ; pass++ {
		if err := d.readPage(page, got); err != nil {
			return err
		}
		bad := 0
		for i := range got {
			if got[i] != pattern {
				got[i] = pattern
				bad++
			}
		}
		if bad == 0 {
			break
		}
		if pass == d.repair {
			d.log.Warn("ssd1306: page inconsistent after repair", "page", page, "bytes", bad, "passes", pass)
			break
		}
		d.log.Debug("ssd1306: repairing page", "page", page, "bytes", bad)
		if err := d.writePage(page, got); err != nil {
			return err
		}
	}
	copy(d.shadow.Pix[page*Width:(page+1)*Width], want)
	return nil
}

// DrawGlyph writes the glyph for code in the 8 columns starting at column in
// page. Codes outside 0x20..0x7F draw a space.
//
// There is no read back.
func (d *Dev) DrawGlyph(code byte, column, page int) error {
	if column < 0 || column > Width-GlyphWidth {
		return fmt.Errorf("ssd1306: invalid column %d", column)
	}
	if page < 0 || page >= Pages {
		return fmt.Errorf("ssd1306: invalid page %d", page)
	}
	g := GlyphFor(code)
	eh := errorHandler{d: d}
	eh.sendCommand(encode(command{_COLUMNADDR, []byte{byte(column), byte(column + GlyphWidth - 1)}}))
	eh.sendCommand(encode(command{_PAGEADDR, []byte{byte(page), byte(page)}}))
	eh.sendData(g[:])
	if eh.err != nil {
		return eh.err
	}
	copy(d.shadow.Pix[page*Width+column:], g[:])
	return nil
}

// DrawString draws text left to right starting at column in page, one glyph
// per byte. It does not wrap; text that would not fit before column 128 is
// rejected before anything is sent.
func (d *Dev) DrawString(text string, column, page int) error {
	if end := column + GlyphWidth*len(text); end > Width {
		return fmt.Errorf("ssd1306: %q does not fit at column %d", text, column)
	}
	for i := 0; i < len(text); i++ {
		if err := d.DrawGlyph(text[i], column, page); err != nil {
			return err
		}
		column += GlyphWidth
	}
	return nil
}

// Frame returns a copy of what was last written to the display.
func (d *Dev) Frame() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(d.shadow.Rect)
	copy(img.Pix, d.shadow.Pix)
	return img
}

// SetContrast changes the screen contrast.
func (d *Dev) SetContrast(level byte) error {
	return d.sendCommand(encode(command{_SETCONTRAST, []byte{level}}))
}

// Invert the display (black on white vs white on black).
func (d *Dev) Invert(blackOnWhite bool) error {
	op := byte(_NORMALDISPLAY)
	if blackOnWhite {
		op = _INVERTDISPLAY
	}
	return d.sendCommand([]byte{op})
}

// Halt turns off the display.
//
// Sending any other command afterward reenables the display.
func (d *Dev) Halt() error {
	d.halted = false
	err := d.sendCommand([]byte{_DISPLAYOFF})
	if err == nil {
		d.halted = true
	}
	return err
}

func (d *Dev) writePage(page int, b []byte) error {
	if err := d.sendCommand(encode(window(0, Width-1, page, page)...)); err != nil {
		return err
	}
	return d.sendData(b)
}

// readPage rewinds the address pointer to the start of page and reads it.
func (d *Dev) readPage(page int, b []byte) error {
	if err := d.sendCommand(encode(window(0, Width-1, page, page)...)); err != nil {
		return err
	}
	return common.Transport("read data", d.c.Tx([]byte{i2cData}, b))
}

func (d *Dev) sendData(b []byte) error {
	if d.halted {
		// Transparently enable the display.
		if err := d.sendCommand(nil); err != nil {
			return err
		}
	}
	return common.Transport("write data", d.c.Tx(append([]byte{i2cData}, b...), nil))
}

func (d *Dev) sendCommand(c []byte) error {
	if d.halted {
		// Transparently enable the display.
		c = append([]byte{_DISPLAYON}, c...)
		d.halted = false
	}
	return common.Transport("write command", d.c.Tx(append([]byte{i2cCmd}, c...), nil))
}

var _ conn.Resource = &Dev{}
