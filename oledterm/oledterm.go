// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package oledterm implements a 128x64 monochrome display.Drawer that outputs
// to the terminal using ANSI color codes.
//
// It mirrors what the OLED shows, for bench runs without a panel attached.
package oledterm

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/GermanBionicSystems/ozonemon/ssd1306"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// DefaultOpts renders lit pixels in the usual OLED cyan.
var DefaultOpts = Opts{
	On:  color.NRGBA{0x40, 0xE0, 0xFF, 0xFF},
	Off: color.NRGBA{0x00, 0x00, 0x00, 0xFF},
}

// Opts represents the options available for this display.
type Opts struct {
	// W defaults to a colorable stdout.
	W       io.Writer
	On      color.NRGBA
	Off     color.NRGBA
	Palette *ansi256.Palette

	_ struct{}
}

// Dev is an OLED emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	on, off string

	img   *image1bit.VerticalLSB
	drawn bool
	buf   bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Dev{
		w:   w,
		on:  p.Block(opts.On),
		off: p.Block(opts.Off),
		img: image1bit.NewVerticalLSB(image.Rect(0, 0, ssd1306.Width, ssd1306.Height)),
	}
}

func (d *Dev) String() string {
	return "OLEDTerm"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the shell is not left corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Bounds()
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	draw.Draw(d.img, r, src, sp, draw.Src)
	return d.refresh()
}

// Mirror shows frame, typically ssd1306.Dev.Frame().
func (d *Dev) Mirror(frame *image1bit.VerticalLSB) error {
	return d.Draw(d.Bounds(), frame, image.Point{})
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	if d.drawn {
		// Move back over the previous frame.
		fmt.Fprintf(&d.buf, "\033[%dA", d.img.Rect.Dy())
	}
	for y := d.img.Rect.Min.Y; y < d.img.Rect.Max.Y; y++ {
		_, _ = d.buf.WriteString("\r\033[0m")
		for x := d.img.Rect.Min.X; x < d.img.Rect.Max.X; x++ {
			if d.img.BitAt(x, y) {
				_, _ = d.buf.WriteString(d.on)
			} else {
				_, _ = d.buf.WriteString(d.off)
			}
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.drawn = true
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
