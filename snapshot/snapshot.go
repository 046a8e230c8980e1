// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package snapshot renders the OLED frame to a PNG with a caption, for
// reports and for bench runs without a panel.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Scale:    4,
	FontSize: 14,
	On:       color.NRGBA{0x40, 0xE0, 0xFF, 0xFF},
	Off:      color.NRGBA{0x00, 0x00, 0x00, 0xFF},
	Bezel:    color.NRGBA{0x20, 0x20, 0x20, 0xFF},
}

// Opts defines the rendering options.
type Opts struct {
	// Scale is the size of one OLED pixel in the output.
	Scale int
	// Caption is printed under the screen when not empty.
	Caption  string
	FontSize float64
	On       color.Color
	Off      color.Color
	Bezel    color.Color
}

// Render draws frame, a monochrome image such as ssd1306.Dev.Frame().
func Render(frame image.Image, opts *Opts) (image.Image, error) {
	dc, err := render(frame, opts)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Write encodes the rendering as PNG to w.
func Write(w io.Writer, frame image.Image, opts *Opts) error {
	dc, err := render(frame, opts)
	if err != nil {
		return err
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// Save writes the rendering as a PNG file.
func Save(path string, frame image.Image, opts *Opts) error {
	dc, err := render(frame, opts)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

func render(frame image.Image, opts *Opts) (*gg.Context, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Scale <= 0 {
		o.Scale = DefaultOpts.Scale
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultOpts.FontSize
	}
	if o.On == nil {
		o.On = DefaultOpts.On
	}
	if o.Off == nil {
		o.Off = DefaultOpts.Off
	}
	if o.Bezel == nil {
		o.Bezel = DefaultOpts.Bezel
	}

	b := frame.Bounds()
	s := o.Scale
	pad := 2 * s
	caption := 0
	var face font.Face
	if o.Caption != "" {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		face = truetype.NewFace(f, &truetype.Options{Size: o.FontSize})
		caption = int(o.FontSize*1.6) + pad
	}
	w := b.Dx()*s + 2*pad
	h := b.Dy()*s + 2*pad + caption

	dc := gg.NewContext(w, h)
	dc.SetColor(o.Bezel)
	dc.Clear()
	dc.SetColor(o.Off)
	dc.DrawRectangle(float64(pad), float64(pad), float64(b.Dx()*s), float64(b.Dy()*s))
	dc.Fill()

	dc.SetColor(o.On)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !lit(frame.At(x, y)) {
				continue
			}
			dc.DrawRectangle(float64(pad+(x-b.Min.X)*s), float64(pad+(y-b.Min.Y)*s), float64(s), float64(s))
		}
	}
	dc.Fill()

	if face != nil {
		dc.SetFontFace(face)
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(o.Caption, float64(w)/2, float64(h-caption/2), 0.5, 0.35)
	}
	return dc, nil
}

func lit(c color.Color) bool {
	g := color.GrayModel.Convert(c).(color.Gray)
	return g.Y >= 0x80
}
